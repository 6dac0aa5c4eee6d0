// Package midi decodes the subset of MIDI channel messages a control
// surface or sequencer would send a graph, and offers a note-to-event
// translation for nodes that want to react to them (the sampler's
// one-shot voice trigger is the only consumer today). It is a
// supplemented feature: no [MODULE] names a MIDI input surface, but an
// audio graph engine without any way to turn MIDI into a node event
// would be missing an obvious piece of a real system.
package midi

import (
	"fmt"
	"math"
)

// EventType tags the channel message kind a decoded Event carries.
type EventType uint8

const (
	EventTypeNoteOff EventType = iota
	EventTypeNoteOn
	EventTypeControlChange
	EventTypePitchBend
)

// Event is a single decoded channel message, timestamped to a sample
// offset within the block it arrived in.
type Event interface {
	Type() EventType
	Channel() uint8
	SampleOffset() int32
	String() string
}

// BaseEvent carries the fields every channel message shares.
type BaseEvent struct {
	EventChannel uint8
	Offset       int32
}

func (e BaseEvent) Channel() uint8      { return e.EventChannel }
func (e BaseEvent) SampleOffset() int32 { return e.Offset }

// NoteOnEvent is a note-on with nonzero velocity; a note-on with zero
// velocity is conventionally a note-off and should be decoded as one.
type NoteOnEvent struct {
	BaseEvent
	NoteNumber uint8
	Velocity   uint8
}

func (e NoteOnEvent) Type() EventType { return EventTypeNoteOn }
func (e NoteOnEvent) String() string {
	return fmt.Sprintf("NoteOn{ch:%d, note:%d, vel:%d, offset:%d}", e.EventChannel, e.NoteNumber, e.Velocity, e.Offset)
}

type NoteOffEvent struct {
	BaseEvent
	NoteNumber uint8
	Velocity   uint8
}

func (e NoteOffEvent) Type() EventType { return EventTypeNoteOff }
func (e NoteOffEvent) String() string {
	return fmt.Sprintf("NoteOff{ch:%d, note:%d, vel:%d, offset:%d}", e.EventChannel, e.NoteNumber, e.Velocity, e.Offset)
}

type ControlChangeEvent struct {
	BaseEvent
	Controller uint8
	Value      uint8
}

func (e ControlChangeEvent) Type() EventType { return EventTypeControlChange }
func (e ControlChangeEvent) String() string {
	return fmt.Sprintf("CC{ch:%d, ctrl:%d, val:%d, offset:%d}", e.EventChannel, e.Controller, e.Value, e.Offset)
}

const (
	CCModWheel     uint8 = 1
	CCVolume       uint8 = 7
	CCPan          uint8 = 10
	CCExpression   uint8 = 11
	CCSustain      uint8 = 64
	CCAllSoundOff  uint8 = 120
	CCAllNotesOff  uint8 = 123
)

// PitchBendEvent carries a 14-bit bend value, -8192 to 8191, 0 centered.
type PitchBendEvent struct {
	BaseEvent
	Value int16
}

func (e PitchBendEvent) Type() EventType { return EventTypePitchBend }
func (e PitchBendEvent) String() string {
	return fmt.Sprintf("PitchBend{ch:%d, val:%d, offset:%d}", e.EventChannel, e.Value, e.Offset)
}

// NormalizedValue maps Value to [-1, 1].
func (e PitchBendEvent) NormalizedValue() float64 { return float64(e.Value) / 8192.0 }

// DecodeChannelMessage decodes one 2- or 3-byte MIDI channel message at
// the given sample offset. It returns nil, false for messages outside
// this package's scope (system messages, running status not yet
// resolved by the caller).
func DecodeChannelMessage(status, data1, data2 byte, offset int32) (Event, bool) {
	channel := status & 0x0F
	switch status & 0xF0 {
	case 0x80:
		return NoteOffEvent{BaseEvent{channel, offset}, data1, data2}, true
	case 0x90:
		if data2 == 0 {
			return NoteOffEvent{BaseEvent{channel, offset}, data1, 0}, true
		}
		return NoteOnEvent{BaseEvent{channel, offset}, data1, data2}, true
	case 0xB0:
		return ControlChangeEvent{BaseEvent{channel, offset}, data1, data2}, true
	case 0xE0:
		value := int16(uint16(data2)<<7|uint16(data1)) - 8192
		return PitchBendEvent{BaseEvent{channel, offset}, value}, true
	default:
		return nil, false
	}
}

// NoteToFrequency converts a MIDI note number to Hz using equal
// temperament tuned to tuningA4 (440 if zero).
func NoteToFrequency(note uint8, tuningA4 float64) float64 {
	if tuningA4 == 0 {
		tuningA4 = 440.0
	}
	return tuningA4 * math.Pow(2, (float64(note)-69.0)/12.0)
}

var noteNames = [...]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteNumberToName renders a MIDI note number as e.g. "A4".
func NoteNumberToName(note uint8) string {
	octave := int(note/12) - 1
	return fmt.Sprintf("%s%d", noteNames[note%12], octave)
}
