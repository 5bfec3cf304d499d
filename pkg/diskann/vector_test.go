package diskann

import (
	"math"
	"testing"
)

func vecEq(t *testing.T, got, want []float32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d want %d", len(got), len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("element %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestParseTextEmpty(t *testing.T) {
	v, err := ParseText("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Dim() != 0 {
		t.Fatalf("expected dim 0, got %d", v.Dim())
	}
}

func TestParseTextMissingBracket(t *testing.T) {
	if _, err := ParseText("1,2,3"); err == nil {
		t.Fatal("expected error for missing leading '['")
	}
}

func TestParseTextUnterminated(t *testing.T) {
	if _, err := ParseText("[1,2"); err == nil {
		t.Fatal("expected error for missing closing ']'")
	}
}

func TestParseTextDimensionLimit(t *testing.T) {
	s := "["
	for i := 0; i < MaxVectorDims+1; i++ {
		if i > 0 {
			s += ","
		}
		s += "1"
	}
	s += "]"
	_, err := ParseText(s)
	if err == nil {
		t.Fatal("expected LimitExceeded error")
	}
	ierr, ok := err.(*IndexError)
	if !ok || ierr.Code != LimitExceeded {
		t.Fatalf("expected LimitExceeded, got %v", err)
	}
}

func TestCodecRoundTripS1(t *testing.T) {
	v, err := ParseText("[1, 2, 3]")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	blob := v.SerializeBlob()
	want := []byte{
		0x03, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x80, 0x3F,
		0x00, 0x00, 0x00, 0x40,
		0x00, 0x00, 0x40, 0x40,
	}
	if len(blob) != len(want) {
		t.Fatalf("blob length: got %d want %d", len(blob), len(want))
	}
	for i := range want {
		if blob[i] != want[i] {
			t.Fatalf("byte %d: got %#x want %#x", i, blob[i], want[i])
		}
	}

	reparsed, err := ParseBlob(blob)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	vecEq(t, reparsed.Elements, []float32{1, 2, 3})

	if got := reparsed.FormatText(); got != "[1,2,3]" {
		t.Fatalf("FormatText: got %q want [1,2,3]", got)
	}
}

func TestDistanceCosS2(t *testing.T) {
	a, _ := ParseText("[1,0,0]")
	b, _ := ParseText("[0,1,0]")
	d, err := DistanceCos(a, b)
	if err != nil {
		t.Fatalf("distance: %v", err)
	}
	if math.Abs(d-1.0) > 1e-9 {
		t.Fatalf("expected 1.0, got %v", d)
	}

	c, _ := ParseText("[1,2,3]")
	d2, err := DistanceCos(c, c)
	if err != nil {
		t.Fatalf("distance: %v", err)
	}
	if d2 >= 1e-6 {
		t.Fatalf("expected near-zero self distance, got %v", d2)
	}
}

func TestDistanceCosDimensionMismatchS6(t *testing.T) {
	a, _ := ParseText("[1,2]")
	b, _ := ParseText("[1,2,3]")
	_, err := DistanceCos(a, b)
	if err == nil {
		t.Fatal("expected dimension-mismatch error")
	}
	if err.Error() == "" {
		t.Fatal("expected non-empty error message")
	}
	ierr, ok := err.(*IndexError)
	if !ok || ierr.Code != InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
	if ierr.Message != "vectors must have the same length" {
		t.Fatalf("unexpected message: %q", ierr.Message)
	}
}

func TestDistanceCosZeroNorm(t *testing.T) {
	zero, _ := ParseText("[0,0,0]")
	other, _ := ParseText("[1,2,3]")
	d, err := DistanceCos(zero, other)
	if err != nil {
		t.Fatalf("distance: %v", err)
	}
	if d != 1.0 {
		t.Fatalf("expected 1.0 for zero-norm operand, got %v", d)
	}
}

func TestDistanceCosSymmetryAndBounds(t *testing.T) {
	a, _ := ParseText("[0.3,-1.2,5.0]")
	b, _ := ParseText("[2.1,0.4,-3.3]")
	d1, _ := DistanceCos(a, b)
	d2, _ := DistanceCos(b, a)
	if math.Abs(d1-d2) > 1e-9 {
		t.Fatalf("distance not symmetric: %v vs %v", d1, d2)
	}
	if d1 < 0 || d1 > 2 {
		t.Fatalf("distance out of bounds: %v", d1)
	}
}

func TestFormatTextScientificFallback(t *testing.T) {
	v := Vector{Type: TypeF32, Elements: []float32{1.5}}
	got := v.FormatText()
	if got == "[1]" || got == "[2]" {
		t.Fatalf("expected non-integer rendering, got %q", got)
	}
}
