package session

import "github.com/dropshare/dropget/internal/transfer"

// Aggregate summarizes every unit of a session.
type Aggregate struct {
	transfer.Counts

	// Percent is the mean unit progress, 0..100.
	Percent float64
	// Started is the share of units that have reported any progress, 0..100.
	Started float64
	// Received and Expected are byte totals over the current attempts.
	// Expected counts only units whose size is known.
	Received int64
	Expected int64
}

// Active reports whether an overall progress bar is worth showing.
func (a Aggregate) Active() bool {
	return a.Total() > 0 && a.Percent < 100
}

// Done reports whether every unit reached a final state.
func (a Aggregate) Done() bool {
	return a.Pending == 0 && a.Downloading == 0
}

func aggregate(units []transfer.Unit) Aggregate {
	var agg Aggregate
	if len(units) == 0 {
		return agg
	}

	sum, started := 0, 0
	for _, u := range units {
		switch u.Status {
		case transfer.StatusPending:
			agg.Pending++
		case transfer.StatusDownloading:
			agg.Downloading++
		case transfer.StatusComplete:
			agg.Complete++
		case transfer.StatusError:
			agg.Failed++
		}
		sum += u.Progress
		if u.Progress != 0 {
			started++
		}
		agg.Received += u.Received
		agg.Expected += u.Total
	}
	n := float64(len(units))
	agg.Percent = float64(sum) / (n * 100) * 100
	agg.Started = float64(started) / n * 100
	return agg
}
