// Package param provides the node parameter registry and diff/patch
// protocol nodes use to implement node.Diffable: a lock-free atomic
// value store per parameter, linear/exponential/logarithmic smoothing to
// avoid zipper noise, and a string-path diff between two registry
// snapshots that the controller turns into event.PatchPayload values.
package param

import (
	"fmt"
	"math"
	"strconv"
	"sync/atomic"
)

// Flags mirrors the automatable/read-only/hidden bitset a node declares
// per parameter.
type Flags uint32

const (
	CanAutomate Flags = 1 << iota
	IsReadOnly
	IsHidden
)

// Parameter is one node-owned control value: a normalized [0,1] atomic
// store plus the plain-value range it maps onto. The audio thread reads
// GetValue/GetPlainValue without blocking the controller's writes.
type Parameter struct {
	Path         string
	Name         string
	Unit         string
	Min          float64
	Max          float64
	DefaultValue float64
	Flags        Flags

	value atomic.Uint64

	formatFunc func(float64) string
	parseFunc  func(string) (float64, error)
}

// NewParameter builds a Parameter initialized to DefaultValue's
// normalized position within [min, max].
func NewParameter(path, name string, min, max, def float64) *Parameter {
	p := &Parameter{Path: path, Name: name, Min: min, Max: max, DefaultValue: def}
	p.SetPlainValue(def)
	return p
}

// GetValue returns the current normalized value in [0, 1].
func (p *Parameter) GetValue() float64 {
	return math.Float64frombits(p.value.Load())
}

// SetValue sets the normalized value, clamped to [0, 1].
func (p *Parameter) SetValue(value float64) {
	if value < 0 {
		value = 0
	} else if value > 1 {
		value = 1
	}
	p.value.Store(math.Float64bits(value))
}

// GetPlainValue returns the current value in the parameter's own units.
func (p *Parameter) GetPlainValue() float64 {
	return p.Denormalize(p.GetValue())
}

// SetPlainValue sets the value from the parameter's own units.
func (p *Parameter) SetPlainValue(plain float64) {
	p.SetValue(p.Normalize(plain))
}

// Normalize converts a plain value into [0, 1].
func (p *Parameter) Normalize(plain float64) float64 {
	if p.Max <= p.Min {
		return 0
	}
	n := (plain - p.Min) / (p.Max - p.Min)
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

// Denormalize converts a normalized [0, 1] value back to plain units.
func (p *Parameter) Denormalize(normalized float64) float64 {
	return p.Min + normalized*(p.Max-p.Min)
}

// SetFormatter installs custom display formatting and parsing.
func (p *Parameter) SetFormatter(format func(float64) string, parse func(string) (float64, error)) {
	p.formatFunc = format
	p.parseFunc = parse
}

// FormatValue renders a normalized value using the custom formatter if
// one is set, or a plain 2-decimal default otherwise.
func (p *Parameter) FormatValue(normalized float64) string {
	plain := p.Denormalize(normalized)
	if p.formatFunc != nil {
		return p.formatFunc(plain)
	}
	return fmt.Sprintf("%.2f", plain)
}

// ParseValue parses a display string into a normalized value.
func (p *Parameter) ParseValue(str string) (float64, error) {
	if p.parseFunc != nil {
		plain, err := p.parseFunc(str)
		if err != nil {
			return 0, err
		}
		return p.Normalize(plain), nil
	}
	plain, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, err
	}
	return p.Normalize(plain), nil
}
