// Package resources sizes the admission budget against the host's memory.
package resources

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/dropshare/dropget/internal/constants"
)

// MemoryFunc reports the memory available to the process in bytes.
type MemoryFunc func() (uint64, error)

// Config holds configuration for the resource manager
type Config struct {
	ByteBudget     int64      // Requested budget (0 = default)
	MemoryFraction float64    // Share of available memory the budget may use (0 = default)
	Memory         MemoryFunc // nil = read from the OS
}

// Manager decides how many bytes may be in flight at once.
// Fetched bodies stay in memory, so the budget must leave room for them.
type Manager struct {
	requested int64
	budget    int64
	available uint64
	fraction  float64
}

// ManagerStats holds statistics about the resource manager
type ManagerStats struct {
	RequestedBudget int64
	EffectiveBudget int64
	AvailableMemory uint64
	Clamped         bool
}

// NewManager creates a new resource manager
func NewManager(config Config) *Manager {
	requested := config.ByteBudget
	if requested <= 0 {
		requested = constants.DefaultByteBudget
	}
	fraction := config.MemoryFraction
	if fraction <= 0 || fraction > 1 {
		fraction = constants.BudgetMemoryFraction
	}
	memFn := config.Memory
	if memFn == nil {
		memFn = systemAvailableMemory
	}

	available, err := memFn()
	if err != nil || available == 0 {
		available = constants.MinSystemMemory
	}

	budget := requested
	limit := int64(float64(available) * fraction)
	if limit < constants.ReadChunkSize {
		limit = constants.ReadChunkSize
	}
	if budget > limit {
		budget = limit
	}

	return &Manager{
		requested: requested,
		budget:    budget,
		available: available,
		fraction:  fraction,
	}
}

// Budget returns the effective byte budget.
func (m *Manager) Budget() int64 {
	return m.budget
}

// Clamped reports whether the requested budget was reduced to fit memory.
func (m *Manager) Clamped() bool {
	return m.budget < m.requested
}

// GetStats returns current resource manager statistics
func (m *Manager) GetStats() ManagerStats {
	return ManagerStats{
		RequestedBudget: m.requested,
		EffectiveBudget: m.budget,
		AvailableMemory: m.available,
		Clamped:         m.Clamped(),
	}
}

// String returns a human-readable description of the manager state
func (m *Manager) String() string {
	return fmt.Sprintf("ResourceManager{budget=%s requested=%s available=%s fraction=%.2f}",
		FormatBytes(m.budget), FormatBytes(m.requested), FormatBytes(int64(m.available)), m.fraction)
}

func systemAvailableMemory() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}

// FormatBytes renders n using binary units.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
