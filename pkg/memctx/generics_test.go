package memctx

import "testing"

type point struct {
	X, Y int32
}

func TestNewZeroesMemory(t *testing.T) {
	ctx := New()
	defer ctx.Free()

	p := New[point](ctx)
	if p.X != 0 || p.Y != 0 {
		t.Fatalf("expected zeroed point, got %+v", *p)
	}
	p.X = 3
	p.Y = 4
	if p.X != 3 || p.Y != 4 {
		t.Fatalf("write through pointer failed: %+v", *p)
	}
}

func TestNewSlice(t *testing.T) {
	ctx := New()
	defer ctx.Free()

	s := NewSlice[point](ctx, 10)
	if len(s) != 10 {
		t.Fatalf("got len %d, want 10", len(s))
	}
	for i := range s {
		s[i].X = int32(i)
	}
	for i := range s {
		if s[i].X != int32(i) {
			t.Fatalf("element %d corrupted: %+v", i, s[i])
		}
	}
}
