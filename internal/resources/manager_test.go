package resources

import (
	"errors"
	"strings"
	"testing"

	"github.com/dropshare/dropget/internal/constants"
)

func fixedMemory(n uint64) MemoryFunc {
	return func() (uint64, error) { return n, nil }
}

func TestNewManager(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		wantBudget  int64
		wantClamped bool
	}{
		{
			name:       "Default budget fits",
			config:     Config{Memory: fixedMemory(8 << 30)},
			wantBudget: constants.DefaultByteBudget,
		},
		{
			name:       "Requested budget fits",
			config:     Config{ByteBudget: 100 << 20, Memory: fixedMemory(8 << 30)},
			wantBudget: 100 << 20,
		},
		{
			name:        "Clamped to memory fraction",
			config:      Config{ByteBudget: 1 << 30, MemoryFraction: 0.5, Memory: fixedMemory(1 << 30)},
			wantBudget:  512 << 20,
			wantClamped: true,
		},
		{
			name:        "Memory read failure uses floor",
			config:      Config{ByteBudget: 1 << 30, Memory: func() (uint64, error) { return 0, errors.New("no /proc") }},
			wantBudget:  int64(float64(constants.MinSystemMemory) * constants.BudgetMemoryFraction),
			wantClamped: true,
		},
		{
			name:        "Never below one read chunk",
			config:      Config{ByteBudget: 1 << 20, Memory: fixedMemory(1024)},
			wantBudget:  constants.ReadChunkSize,
			wantClamped: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := NewManager(tt.config)
			if got := mgr.Budget(); got != tt.wantBudget {
				t.Errorf("Budget() = %d, want %d", got, tt.wantBudget)
			}
			if got := mgr.Clamped(); got != tt.wantClamped {
				t.Errorf("Clamped() = %v, want %v", got, tt.wantClamped)
			}
			stats := mgr.GetStats()
			if stats.EffectiveBudget != tt.wantBudget {
				t.Errorf("stats.EffectiveBudget = %d, want %d", stats.EffectiveBudget, tt.wantBudget)
			}
		})
	}
}

func TestManagerString(t *testing.T) {
	mgr := NewManager(Config{Memory: fixedMemory(4 << 30)})
	s := mgr.String()
	if !strings.Contains(s, "budget=20.0 MiB") {
		t.Errorf("String() = %s", s)
	}
}

func TestSystemMemoryReadable(t *testing.T) {
	mgr := NewManager(Config{})
	if mgr.Budget() <= 0 {
		t.Errorf("expected positive budget, got %d", mgr.Budget())
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{20 << 20, "20.0 MiB"},
		{3 << 30, "3.0 GiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %s, want %s", tt.n, got, tt.want)
		}
	}
}
