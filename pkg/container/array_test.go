package container

import (
	"testing"

	"github.com/jespajo/votemap/pkg/memctx"
)

func TestArrayAddAndGet(t *testing.T) {
	ctx := memctx.New()
	defer ctx.Free()

	a := NewArray[int](ctx)
	for i := 0; i < 1000; i++ {
		a.Add(i * i)
	}
	if a.Len() != 1000 {
		t.Fatalf("got len %d, want 1000", a.Len())
	}
	for i := 0; i < 1000; i++ {
		if got := a.Get(i); got != i*i {
			t.Fatalf("index %d: got %d, want %d", i, got, i*i)
		}
	}
}

func TestArrayUnorderedRemoveByIndex(t *testing.T) {
	ctx := memctx.New()
	defer ctx.Free()

	a := NewArray[string](ctx)
	a.Add("a")
	a.Add("b")
	a.Add("c")

	a.UnorderedRemoveByIndex(0)
	if a.Len() != 2 {
		t.Fatalf("got len %d, want 2", a.Len())
	}
	if a.Get(0) != "c" {
		t.Fatalf("expected last element swapped into removed slot, got %q", a.Get(0))
	}
}

func TestArrayReverse(t *testing.T) {
	ctx := memctx.New()
	defer ctx.Free()

	a := NewArray[int](ctx)
	for i := 1; i <= 5; i++ {
		a.Add(i)
	}
	a.Reverse()
	want := []int{5, 4, 3, 2, 1}
	for i, w := range want {
		if a.Get(i) != w {
			t.Fatalf("index %d: got %d, want %d", i, a.Get(i), w)
		}
	}
}
