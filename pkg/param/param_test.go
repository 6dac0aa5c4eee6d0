package param

import (
	"testing"

	"github.com/firewheel-audio/firewheel-go/pkg/event"
	"github.com/firewheel-audio/firewheel-go/pkg/node"
)

func TestParameterNormalizeDenormalizeRoundTrip(t *testing.T) {
	p := NewParameter("gain", "Gain", -60, 12, 0)
	p.SetPlainValue(-6)
	if got := p.GetPlainValue(); got < -6.01 || got > -5.99 {
		t.Errorf("GetPlainValue() = %f, want ~-6", got)
	}
}

func TestParameterSetValueClampsToUnitRange(t *testing.T) {
	p := NewParameter("gain", "Gain", 0, 1, 0)
	p.SetValue(2)
	if p.GetValue() != 1 {
		t.Errorf("GetValue() = %f, want 1 after over-range set", p.GetValue())
	}
	p.SetValue(-1)
	if p.GetValue() != 0 {
		t.Errorf("GetValue() = %f, want 0 after under-range set", p.GetValue())
	}
}

func TestSmootherLinearReachesTargetAfterRateSamples(t *testing.T) {
	s := NewSmoother(LinearSmoothing, 4)
	s.Reset(0)
	s.SetTarget(1)
	var last float64
	for i := 0; i < 4; i++ {
		last = s.Next()
	}
	if last != 1 {
		t.Errorf("Next() after rate samples = %f, want 1", last)
	}
	if s.IsSmoothing() {
		t.Error("smoother should have settled")
	}
}

func TestSmootherExponentialConverges(t *testing.T) {
	s := NewSmoother(ExponentialSmoothing, 0.9)
	s.Reset(0)
	s.SetTarget(1)
	for i := 0; i < 500; i++ {
		s.Next()
	}
	if got := s.Next(); got < 0.99 {
		t.Errorf("Next() after many iterations = %f, want close to 1", got)
	}
}

func TestRegistryDiffReportsOnlyChangedParameters(t *testing.T) {
	r := NewRegistry()
	gain := NewParameter("gain", "Gain", -60, 12, 0)
	pan := NewParameter("pan", "Pan", -1, 1, 0)
	r.Add(gain, pan)

	baseline := r.Snapshot()
	gain.SetPlainValue(-3)

	patches := r.DiffSnapshot(baseline)
	if len(patches) != 1 {
		t.Fatalf("got %d patches, want 1", len(patches))
	}
	if patches[0].Path != "gain" {
		t.Errorf("patch path = %q, want gain", patches[0].Path)
	}
}

func TestRegistryApplyPatchSetsNamedParameter(t *testing.T) {
	r := NewRegistry()
	gain := NewParameter("gain", "Gain", -60, 12, 0)
	r.Add(gain)

	if err := r.ApplyPatch(event.PatchPayload{Path: "gain", Data: -12.0}); err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}
	if got := gain.GetPlainValue(); got < -12.01 || got > -11.99 {
		t.Errorf("GetPlainValue() = %f, want ~-12", got)
	}
}

func TestRegistryApplyPatchUnknownPathErrors(t *testing.T) {
	r := NewRegistry()
	if err := r.ApplyPatch(event.PatchPayload{Path: "missing", Data: 1.0}); err == nil {
		t.Error("expected an error for an unregistered path")
	}
}

func TestRegistrySatisfiesNodeDiffable(t *testing.T) {
	var _ node.Diffable = NewRegistry()

	base := NewRegistry()
	gain := NewParameter("gain", "Gain", -60, 12, 0)
	base.Add(gain)

	live := NewRegistry()
	liveGain := NewParameter("gain", "Gain", -60, 12, 0)
	live.Add(liveGain)
	liveGain.SetPlainValue(3)

	patches := live.Diff(base)
	if len(patches) != 1 || patches[0].Path != "gain" {
		t.Fatalf("Diff(base) = %+v, want one gain patch", patches)
	}
}
