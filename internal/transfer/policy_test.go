package transfer

import (
	"testing"

	"github.com/dropshare/dropget/internal/models"
)

func sizedUnit(size int64) Unit {
	return Unit{Descriptor: models.FileDescriptor{Name: "f", Size: size}}
}

func TestFixedPolicy(t *testing.T) {
	p := NewFixedPolicy(2)
	u := sizedUnit(0)
	if !p.TryAcquire(u) || !p.TryAcquire(u) {
		t.Fatal("first two acquisitions should succeed")
	}
	if p.TryAcquire(u) {
		t.Error("third acquisition should be refused")
	}
	p.Release(u)
	if !p.TryAcquire(u) {
		t.Error("acquisition after release should succeed")
	}
	if p.Name() != "fixed(2)" {
		t.Errorf("Name() = %s", p.Name())
	}
	if NewFixedPolicy(0).k != 3 {
		t.Error("zero capacity should select the default")
	}
}

func TestBudgetPolicyWeight(t *testing.T) {
	p := NewBudgetPolicy(20<<20, 1<<20)
	tests := []struct {
		size int64
		want int64
	}{
		{5 << 20, 5 << 20},
		{0, 1 << 20},
		{25 << 20, 20 << 20},
	}
	for _, tt := range tests {
		if got := p.Weight(sizedUnit(tt.size)); got != tt.want {
			t.Errorf("Weight(%d) = %d, want %d", tt.size, got, tt.want)
		}
	}
}

func TestBudgetPolicyOversizedAlone(t *testing.T) {
	p := NewBudgetPolicy(20<<20, 1<<20)
	small := sizedUnit(1 << 20)
	big := sizedUnit(25 << 20)

	if !p.TryAcquire(small) {
		t.Fatal("small unit should fit")
	}
	if p.TryAcquire(big) {
		t.Fatal("oversized unit must wait while anything is in flight")
	}
	p.Release(small)

	if !p.TryAcquire(big) {
		t.Fatal("oversized unit should be admitted alone")
	}
	if p.TryAcquire(small) {
		t.Error("nothing may join an oversized unit")
	}
	p.Release(big)
}

func TestBudgetPolicyCeilingHolds(t *testing.T) {
	p := NewBudgetPolicy(10, 1)
	var held []Unit
	for _, size := range []int64{4, 4, 3, 2} {
		u := sizedUnit(size)
		if p.TryAcquire(u) {
			held = append(held, u)
		}
	}
	var sum int64
	for _, u := range held {
		sum += p.Weight(u)
	}
	if sum > 10 {
		t.Errorf("in-flight weight %d exceeds ceiling", sum)
	}
	if len(held) != 3 {
		t.Errorf("admitted %d units, want 3 (4+4+2)", len(held))
	}
}
