// Package config loads the host/driver-side engine configuration: the
// settings a standalone driver binary reads from a YAML file before it
// constructs an engine.Engine and a processor.Processor. The core
// packages under pkg/... take a Go struct at construction and know
// nothing about files or tags; this package is the one place the
// on-disk format lives, kept out of pkg/ so the core stays a pure
// library, matching the `other_examples/manifests` phase4 server's
// config-loading convention.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"github.com/firewheel-audio/firewheel-go/pkg/event"
)

// OverflowMode mirrors event.OverflowMode as a YAML-friendly string enum
// (Allocate|Panic|Drop) instead of the core's integer constant.
type OverflowMode string

const (
	OverflowAllocate OverflowMode = "Allocate"
	OverflowPanic    OverflowMode = "Panic"
	OverflowDrop     OverflowMode = "Drop"
)

// ToEvent converts m to the core's event.OverflowMode, defaulting to
// OverflowAllocate for an empty/unrecognized value.
func (m OverflowMode) ToEvent() event.OverflowMode {
	switch m {
	case OverflowPanic:
		return event.OverflowPanic
	case OverflowDrop:
		return event.OverflowDrop
	default:
		return event.OverflowAllocate
	}
}

// Config is the on-disk shape of the engine/driver configuration file.
// Field names match spec's configuration-option names; yaml tags use
// their snake_case on-disk spelling.
type Config struct {
	SampleRate      uint32 `yaml:"sample_rate" validate:"required,gt=0"`
	MaxBlockFrames  uint32 `yaml:"max_block_frames" validate:"required,gt=0"`
	DeclickFrames   uint32 `yaml:"declick_frames" validate:"gt=0"`
	NumGraphInputs  int    `yaml:"num_graph_inputs" validate:"gte=0"`
	NumGraphOutputs int    `yaml:"num_graph_outputs" validate:"gte=0"`
	HardClipOutputs bool   `yaml:"hard_clip_outputs"`

	InitialNodeCapacity         int `yaml:"initial_node_capacity" validate:"gte=0"`
	InitialEdgeCapacity         int `yaml:"initial_edge_capacity" validate:"gte=0"`
	ChannelCapacity             int `yaml:"channel_capacity" validate:"gt=0"`
	EventQueueCapacity          int `yaml:"event_queue_capacity" validate:"gt=0"`
	InitialEventGroupCapacity   int `yaml:"initial_event_group_capacity" validate:"gte=0"`
	ImmediateEventCapacity      int `yaml:"immediate_event_capacity" validate:"gt=0"`
	ScheduledEventCapacity      int `yaml:"scheduled_event_capacity" validate:"gt=0"`

	BufferOutOfSpaceMode OverflowMode `yaml:"buffer_out_of_space_mode" validate:"omitempty,oneof=Allocate Panic Drop"`
}

// Defaults returns a Config with the spec's documented defaults, for
// callers building a config programmatically instead of from a file.
func Defaults() Config {
	return Config{
		SampleRate:                48000,
		MaxBlockFrames:            512,
		DeclickFrames:             128,
		NumGraphInputs:            0,
		NumGraphOutputs:           2,
		HardClipOutputs:           true,
		InitialNodeCapacity:       64,
		InitialEdgeCapacity:       128,
		ChannelCapacity:           256,
		EventQueueCapacity:        256,
		InitialEventGroupCapacity: 64,
		ImmediateEventCapacity:    256,
		ScheduledEventCapacity:    256,
		BufferOutOfSpaceMode:      OverflowAllocate,
	}
}

var validate = validator.New()

// Load reads and validates a Config from a YAML file at path, filling
// any zero-valued capacity/mode fields from Defaults first so a config
// file only needs to override what it cares about.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates a Config from in-memory YAML bytes.
func Parse(data []byte) (Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing yaml: %w", err)
	}
	if cfg.BufferOutOfSpaceMode == "" {
		cfg.BufferOutOfSpaceMode = OverflowAllocate
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: validating: %w", err)
	}
	return cfg, nil
}
