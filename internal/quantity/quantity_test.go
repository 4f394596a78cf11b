package quantity

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestCelsiusKelvinRoundTrip(t *testing.T) {
	q := Celsius(25)
	if !almostEqual(q.Base(), 298.15) {
		t.Fatalf("Celsius(25).Base() = %v, want 298.15", q.Base())
	}
	back, err := q.In("degC")
	if err != nil {
		t.Fatalf("In(degC): %v", err)
	}
	if !almostEqual(back, 25) {
		t.Fatalf("round trip = %v, want 25", back)
	}
}

func TestParseVariants(t *testing.T) {
	cases := []struct {
		in   string
		unit string
		want float64
	}{
		{"350K", "K", 350},
		{"25degC", "degC", 25},
		{"60 K/min", "K/min", 60},
		{"5Hz", "Hz", 5},
		{"-10degC", "degC", -10},
		{"1.5e2K", "K", 150},
	}
	for _, c := range cases {
		q, err := Parse(c.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.in, err)
		}
		got, err := q.In(c.unit)
		if err != nil {
			t.Fatalf("Parse(%q).In(%q): %v", c.in, c.unit, err)
		}
		if !almostEqual(got, c.want) {
			t.Errorf("Parse(%q).In(%q) = %v, want %v", c.in, c.unit, got, c.want)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "K", "abcK", "5bogus"} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", in)
		}
	}
}

func TestInRejectsDimensionMismatch(t *testing.T) {
	q := Kelvin(300)
	if _, err := q.In("Hz"); err == nil {
		t.Fatal("In(Hz) on a temperature succeeded, want BadUnit")
	}
}

func TestKelvinPerMinuteBaseIsPerSecond(t *testing.T) {
	r := KelvinPerMinute(60)
	if !almostEqual(r.Base(), 1) {
		t.Fatalf("KelvinPerMinute(60).Base() = %v, want 1 (K/s)", r.Base())
	}
}

func TestAffineArithmeticDoneInKelvin(t *testing.T) {
	// A 10 degC delta must be 10 K regardless of offset: converting two
	// Celsius quantities to their base kelvin values before subtracting is
	// the whole point of storing everything in an absolute unit.
	a := Celsius(20)
	b := Celsius(30)
	delta := b.Base() - a.Base()
	if !almostEqual(delta, 10) {
		t.Fatalf("delta = %v, want 10", delta)
	}
}
