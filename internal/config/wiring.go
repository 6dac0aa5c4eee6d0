package config

import (
	"github.com/firewheel-audio/firewheel-go/pkg/clock"
	"github.com/firewheel-audio/firewheel-go/pkg/ctrlchan"
	"github.com/firewheel-audio/firewheel-go/pkg/engine"
	"github.com/firewheel-audio/firewheel-go/pkg/engine/processor"
	"github.com/firewheel-audio/firewheel-go/pkg/node"
)

// EngineConfig builds the pkg/engine.Config this configuration describes.
func (c Config) EngineConfig() engine.Config {
	return engine.Config{
		NumGraphInputs:  c.NumGraphInputs,
		NumGraphOutputs: c.NumGraphOutputs,
		MaxBlockFrames:  int(c.MaxBlockFrames),
		ChannelCapacity: c.ChannelCapacity,
		StreamInfo:      c.StreamInfo(),
	}
}

// StreamInfo builds the node.StreamInfo every node factory receives at
// stream start, derived from this configuration's sample rate and block
// size.
func (c Config) StreamInfo() node.StreamInfo {
	sr, err := clock.NewSampleRate(c.SampleRate)
	if err != nil {
		sr = clock.SampleRate{Rate: 48000, Recip: 1.0 / 48000.0}
	}
	return node.StreamInfo{
		SampleRate:           sr.Rate,
		SampleRateRecip:      sr.Recip,
		MaxBlockFrames:       c.MaxBlockFrames,
		NumStreamInChannels:  c.NumGraphInputs,
		NumStreamOutChannels: c.NumGraphOutputs,
		DeclickFrames:        c.DeclickFrames,
	}
}

// ProcessorConfig builds the pkg/engine/processor.Config this
// configuration describes. ch and sharedClock are supplied by the
// caller because they are live objects shared with the paired
// engine.Engine, not something a config file can describe.
func (c Config) ProcessorConfig(ch *ctrlchan.Channel, sharedClock clock.Shared) processor.Config {
	sr, err := clock.NewSampleRate(c.SampleRate)
	if err != nil {
		sr = clock.SampleRate{Rate: 48000, Recip: 1.0 / 48000.0}
	}
	return processor.Config{
		SampleRate:      sr,
		MaxBlockFrames:  int(c.MaxBlockFrames),
		NumGraphInputs:  c.NumGraphInputs,
		NumGraphOutputs: c.NumGraphOutputs,
		HardClipOutputs: c.HardClipOutputs,
		EventCapacity:   c.EventQueueCapacity,
		OverflowMode:    c.BufferOutOfSpaceMode.ToEvent(),
		DeclickFrames:   c.DeclickFrames,
		Clock:           sharedClock,
		Channel:         ch,
	}
}
