package stream

import "testing"

// TestUpdateApply_ChangesOnlyGivenFields verifies nil fields keep their values.
func TestUpdateApply_ChangesOnlyGivenFields(t *testing.T) {
	q := 60
	got, err := Update{Quality: &q}.Apply(Default())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := Default()
	want.Quality = 60
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

// TestUpdateApply_ScaleFactor verifies a scale factor maps onto the percent grid.
func TestUpdateApply_ScaleFactor(t *testing.T) {
	s := 0.7
	got, err := Update{Scale: &s}.Apply(Default())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got.ScalePct != 70 {
		t.Fatalf("expected 70%%, got %d", got.ScalePct)
	}
}

// TestUpdateApply_RejectsOffGrid verifies invalid values leave the config unchanged.
func TestUpdateApply_RejectsOffGrid(t *testing.T) {
	fps := 7
	c := Default()
	got, err := Update{FPS: &fps}.Apply(c)
	if err == nil {
		t.Fatalf("expected error for fps 7")
	}
	if got != c {
		t.Fatalf("expected unchanged config, got %+v", got)
	}

	bad := CursorStyle("arrow")
	if _, err := (Update{Cursor: &bad}).Apply(c); err == nil {
		t.Fatalf("expected error for unknown cursor")
	}

	pct, scale := 50, 0.5
	if _, err := (Update{ScalePct: &pct, Scale: &scale}).Apply(c); err == nil {
		t.Fatalf("expected error when both scale fields are set")
	}
}

// TestUpdateEmpty verifies empty detection.
func TestUpdateEmpty(t *testing.T) {
	if !(Update{}).Empty() {
		t.Fatalf("expected zero update to be empty")
	}
	if (Update{Reset: true}).Empty() {
		t.Fatalf("expected reset update to be non-empty")
	}
}
