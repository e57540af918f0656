package pflock

import "testing"

func TestWordHelpers32(t *testing.T) {
	var w uint32 = 0xffff_ff01
	if got := fetchAdd(&w, 0x100); got != 0xffff_ff01 {
		t.Fatalf("fetchAdd returned %#x, want the previous value", got)
	}
	if w != 0x01 {
		t.Fatalf("fetchAdd did not wrap: %#x", w)
	}
	w = 0x1203
	if got := fetchAnd(&w, ^uint32(0xff)); got != 0x1203 {
		t.Fatalf("fetchAnd returned %#x, want 0x1203", got)
	}
	if got := loadWord(&w); got != 0x1200 {
		t.Fatalf("loadWord = %#x, want 0x1200", got)
	}
	if casWord(&w, 0x1201, 0) {
		t.Fatal("casWord succeeded with a stale old value")
	}
	if !casWord(&w, 0x1200, 7) || w != 7 {
		t.Fatalf("casWord failed, w = %#x", w)
	}
}

func TestWordHelpersPtr(t *testing.T) {
	w := ^uintptr(0)
	if got := fetchAdd(&w, 1); got != ^uintptr(0) {
		t.Fatalf("fetchAdd returned %#x, want the previous value", got)
	}
	if w != 0 {
		t.Fatalf("fetchAdd did not wrap: %#x", w)
	}
	w = 0x3ff
	fetchAnd(&w, ^uintptr(wByte))
	if got := loadWord(&w); got != 0x300 {
		t.Fatalf("loadWord = %#x, want 0x300", got)
	}
	if !casWord(&w, 0x300, 0x301) || w != 0x301 {
		t.Fatalf("casWord failed, w = %#x", w)
	}
}

func TestDelay(t *testing.T) {
	spins := 0
	for range 100 {
		delay(&spins)
	}
	if spins < 0 {
		t.Fatalf("spins = %d", spins)
	}
}
