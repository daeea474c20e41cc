package utils

import "testing"

func TestXMRToAtomic(t *testing.T) {
	tests := []struct {
		xmr  float64
		want uint64
	}{
		{0, 0},
		{-1, 0},
		{1, 1000000000000},
		{0.5, 500000000000},
		{2.25, 2250000000000},
	}
	for _, test := range tests {
		if got := XMRToAtomic(test.xmr); got != test.want {
			t.Errorf("XMRToAtomic(%v) = %d, want %d", test.xmr, got, test.want)
		}
	}
}

func TestAtomicToXMR(t *testing.T) {
	if got := AtomicToXMR(1500000000000); got != 1.5 {
		t.Errorf("AtomicToXMR(1.5 XMR) = %v, want 1.5", got)
	}
	if got := AtomicToXMR(0); got != 0 {
		t.Errorf("AtomicToXMR(0) = %v, want 0", got)
	}
}

func TestFormatXMR(t *testing.T) {
	tests := []struct {
		atomic uint64
		want   string
	}{
		{0, "0.000000000000"},
		{1, "0.000000000001"},
		{1000000000000, "1.000000000000"},
		{1234567891234, "1.234567891234"},
		{25000000000000, "25.000000000000"},
	}
	for _, test := range tests {
		if got := FormatXMR(test.atomic); got != test.want {
			t.Errorf("FormatXMR(%d) = %q, want %q", test.atomic, got, test.want)
		}
	}
}

func TestGenerateOrderReference(t *testing.T) {
	ref := GenerateOrderReference()
	if len(ref) != len("order-")+orderRefLen {
		t.Errorf("reference %q has unexpected length", ref)
	}
	if ref[:6] != "order-" {
		t.Errorf("reference %q lacks the order- prefix", ref)
	}
}
