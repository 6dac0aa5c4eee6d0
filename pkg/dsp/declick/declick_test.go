package declick

import (
	"math"
	"testing"
)

func TestNewTableRejectsZeroFrames(t *testing.T) {
	if _, err := NewTable(0); err == nil {
		t.Error("expected error for zero frames")
	}
}

func TestTableRampEndpoints(t *testing.T) {
	tbl, err := NewTable(8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tbl.fade0to1[0] != 0 {
		t.Errorf("fade0to1[0] = %f, want 0", tbl.fade0to1[0])
	}
	if tbl.fade1to0[0] <= tbl.fade1to0[7] {
		t.Error("fade1to0 should descend from near 1 toward 0")
	}
}

func TestDeclickerSettledAt0ZeroesBuffer(t *testing.T) {
	d := NewDeclicker()
	d.ResetTo0()
	tbl, _ := NewTable(4)

	buf := []float32{1, 1, 1, 1}
	d.Process([][]float32{buf}, 0, 4, tbl, 1.0)
	for i, v := range buf {
		if v != 0 {
			t.Errorf("buf[%d] = %f, want 0", i, v)
		}
	}
}

func TestDeclickerFadeTo0ReachesSettled(t *testing.T) {
	d := NewDeclicker() // starts settled at 1
	tbl, _ := NewTable(4)
	d.FadeTo0(tbl)

	buf := []float32{1, 1, 1, 1}
	d.Process([][]float32{buf}, 0, 4, tbl, 1.0)

	if !d.IsSettled() {
		t.Error("declicker should be settled after consuming the whole ramp")
	}
	if buf[0] != 0.75 {
		t.Errorf("first ramp sample should be scaled by the top of the 1->0 ramp (3/4), got %f", buf[0])
	}
	if math.Abs(float64(buf[3])) > 1e-6 {
		t.Errorf("last ramp sample should reach ~0, got %f", buf[3])
	}
}

func TestDeclickerFadeSpanningMultipleBlocks(t *testing.T) {
	d := NewDeclicker()
	d.ResetTo0()
	tbl, _ := NewTable(8)
	d.FadeTo1(tbl)

	first := []float32{1, 1, 1, 1}
	d.Process([][]float32{first}, 0, 4, tbl, 1.0)
	if d.IsSettled() {
		t.Error("declicker should not be settled mid-ramp")
	}

	second := []float32{1, 1, 1, 1}
	d.Process([][]float32{second}, 0, 4, tbl, 1.0)
	if !d.IsSettled() {
		t.Error("declicker should be settled after the ramp's full length has elapsed")
	}
	if math.Abs(float64(second[3])-0.875) > 1e-3 {
		t.Errorf("final ramp sample should be the last 0->1 ramp value (7/8), got %f", second[3])
	}
}

func TestDeclickerFadeRedirectContinuesFromCurrentPosition(t *testing.T) {
	d := NewDeclicker()
	d.ResetTo0()
	tbl, _ := NewTable(10)
	d.FadeTo1(tbl)

	buf := []float32{1, 1, 1}
	d.Process([][]float32{buf}, 0, 3, tbl, 1.0) // 3 of 10 frames consumed

	d.FadeTo0(tbl) // redirect before settling
	if d.IsSettled() {
		t.Error("redirected fade should not be immediately settled")
	}
}
