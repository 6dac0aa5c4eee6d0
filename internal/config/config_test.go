package config

import (
	"testing"

	"github.com/firewheel-audio/firewheel-go/pkg/event"
)

func TestParseFillsDefaultsForOmittedFields(t *testing.T) {
	cfg, err := Parse([]byte(`
sample_rate: 44100
max_block_frames: 256
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", cfg.SampleRate)
	}
	if cfg.NumGraphOutputs != 2 {
		t.Errorf("NumGraphOutputs = %d, want default 2", cfg.NumGraphOutputs)
	}
	if !cfg.HardClipOutputs {
		t.Error("HardClipOutputs should default to true")
	}
	if cfg.BufferOutOfSpaceMode != OverflowAllocate {
		t.Errorf("BufferOutOfSpaceMode = %q, want default Allocate", cfg.BufferOutOfSpaceMode)
	}
}

func TestParseRejectsZeroSampleRate(t *testing.T) {
	_, err := Parse([]byte(`sample_rate: 0`))
	if err == nil {
		t.Fatal("expected a validation error for sample_rate: 0")
	}
}

func TestParseRejectsUnknownOverflowMode(t *testing.T) {
	_, err := Parse([]byte(`
sample_rate: 48000
max_block_frames: 512
buffer_out_of_space_mode: Explode
`))
	if err == nil {
		t.Fatal("expected a validation error for an unrecognized overflow mode")
	}
}

func TestOverflowModeToEvent(t *testing.T) {
	cases := []struct {
		mode OverflowMode
		want event.OverflowMode
	}{
		{OverflowAllocate, event.OverflowAllocate},
		{OverflowPanic, event.OverflowPanic},
		{OverflowDrop, event.OverflowDrop},
		{OverflowMode(""), event.OverflowAllocate},
	}
	for _, tc := range cases {
		if got := tc.mode.ToEvent(); got != tc.want {
			t.Errorf("%q.ToEvent() = %v, want %v", tc.mode, got, tc.want)
		}
	}
}

func TestEngineConfigDerivesStreamInfoFromSampleRate(t *testing.T) {
	cfg, err := Parse([]byte(`
sample_rate: 48000
max_block_frames: 128
declick_frames: 64
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ec := cfg.EngineConfig()
	if ec.StreamInfo.SampleRate != 48000 {
		t.Errorf("StreamInfo.SampleRate = %d, want 48000", ec.StreamInfo.SampleRate)
	}
	if ec.StreamInfo.MaxBlockFrames != 128 {
		t.Errorf("StreamInfo.MaxBlockFrames = %d, want 128", ec.StreamInfo.MaxBlockFrames)
	}
}
