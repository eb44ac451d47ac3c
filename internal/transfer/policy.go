package transfer

import (
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/dropshare/dropget/internal/constants"
	"github.com/dropshare/dropget/internal/resources"
)

// Policy decides whether a unit may start now.
type Policy interface {
	// TryAcquire reserves capacity for u without blocking.
	TryAcquire(u Unit) bool
	// Release returns the capacity reserved for u.
	Release(u Unit)
	Name() string
}

// FixedPolicy admits at most K units at once.
type FixedPolicy struct {
	sem *semaphore.Weighted
	k   int
}

// NewFixedPolicy creates a policy with capacity k. Values below 1 select
// the default.
func NewFixedPolicy(k int) *FixedPolicy {
	if k < 1 {
		k = constants.DefaultConcurrency
	}
	return &FixedPolicy{sem: semaphore.NewWeighted(int64(k)), k: k}
}

func (p *FixedPolicy) TryAcquire(Unit) bool { return p.sem.TryAcquire(1) }
func (p *FixedPolicy) Release(Unit)         { p.sem.Release(1) }
func (p *FixedPolicy) Name() string         { return fmt.Sprintf("fixed(%d)", p.k) }

// BudgetPolicy admits units while the sum of their declared sizes stays
// within a ceiling. A unit larger than the ceiling is weighed at the
// ceiling, so it starts only when nothing else is in flight.
type BudgetPolicy struct {
	sem           *semaphore.Weighted
	ceiling       int64
	unknownWeight int64
}

// NewBudgetPolicy creates a byte budget policy. Units without a declared
// size weigh unknownWeight.
func NewBudgetPolicy(ceiling, unknownWeight int64) *BudgetPolicy {
	if ceiling <= 0 {
		ceiling = constants.DefaultByteBudget
	}
	if unknownWeight <= 0 {
		unknownWeight = constants.DefaultUnknownSizeWeight
	}
	return &BudgetPolicy{
		sem:           semaphore.NewWeighted(ceiling),
		ceiling:       ceiling,
		unknownWeight: unknownWeight,
	}
}

// Weight returns the budget u consumes while in flight.
func (p *BudgetPolicy) Weight(u Unit) int64 {
	w := u.Descriptor.Size
	if w <= 0 {
		w = p.unknownWeight
	}
	if w > p.ceiling {
		w = p.ceiling
	}
	return w
}

func (p *BudgetPolicy) TryAcquire(u Unit) bool { return p.sem.TryAcquire(p.Weight(u)) }
func (p *BudgetPolicy) Release(u Unit)         { p.sem.Release(p.Weight(u)) }

func (p *BudgetPolicy) Name() string {
	return fmt.Sprintf("budget(%s)", resources.FormatBytes(p.ceiling))
}

// Ceiling returns the byte budget.
func (p *BudgetPolicy) Ceiling() int64 {
	return p.ceiling
}
