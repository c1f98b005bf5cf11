package fixed

import (
	"errors"
	"testing"
)

func TestDefaultFormatRanges(t *testing.T) {
	f := DefaultFormat()
	if err := f.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if f.MaxPotential() != 1<<34-1 || f.MinPotential() != -(1 << 34) {
		t.Fatalf("unexpected potential range: [%d, %d]", f.MinPotential(), f.MaxPotential())
	}
	if f.MaxWeight() != 32767 || f.MinWeight() != -32768 {
		t.Fatalf("unexpected weight range: [%d, %d]", f.MinWeight(), f.MaxWeight())
	}
}

func TestFormatValidate(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		ok     bool
	}{
		{name: "default", format: DefaultFormat(), ok: true},
		{name: "narrow", format: Format{PotentialBits: 8, WeightBits: 8}, ok: true},
		{name: "potential-too-small", format: Format{PotentialBits: 4, WeightBits: 2}},
		{name: "potential-too-wide", format: Format{PotentialBits: 64, WeightBits: 16}},
		{name: "weight-too-wide", format: Format{PotentialBits: 48, WeightBits: 40}},
		{name: "weight-wider-than-potential", format: Format{PotentialBits: 12, WeightBits: 16}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.format.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidFormat) {
				t.Fatalf("expected ErrInvalidFormat, got %v", err)
			}
		})
	}
}

func TestAddPotentialOverflow(t *testing.T) {
	f := Format{PotentialBits: 8, WeightBits: 8}

	got, err := f.AddPotential(100, 27)
	if err != nil || got != 127 {
		t.Fatalf("unexpected add result: got=%d err=%v", got, err)
	}

	got, err = f.AddPotential(100, 28)
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if got != 100 {
		t.Fatalf("expected unchanged potential on overflow, got %d", got)
	}

	if _, err := f.AddPotential(-100, -29); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected negative overflow, got %v", err)
	}
	if got, err := f.AddPotential(-100, -28); err != nil || got != -128 {
		t.Fatalf("unexpected negative bound: got=%d err=%v", got, err)
	}
}

func TestCheckWeight(t *testing.T) {
	f := DefaultFormat()
	if err := f.CheckWeight(1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.CheckWeight(40000); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestLeak(t *testing.T) {
	tests := []struct {
		name  string
		v     int64
		shift int
		want  int64
	}{
		{name: "no-leak", v: 3000, shift: NoLeak, want: 3000},
		{name: "no-leak-negative", v: -3000, shift: NoLeak, want: -3000},
		{name: "full-leak", v: 3000, shift: 0, want: 0},
		{name: "half", v: 3000, shift: 1, want: 1500},
		{name: "eighth", v: 800, shift: 3, want: 700},
		{name: "negative-toward-zero", v: -800, shift: 3, want: -700},
		{name: "small-value-stays", v: 3, shift: 2, want: 3},
		{name: "zero", v: 0, shift: 1, want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Leak(tc.v, tc.shift); got != tc.want {
				t.Fatalf("unexpected leak: got=%d want=%d", got, tc.want)
			}
		})
	}
}
