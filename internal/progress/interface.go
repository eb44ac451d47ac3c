package progress

import "io"

// UnitDisplay shows the progress of one transfer unit.
type UnitDisplay interface {
	// Update reports bytes received and the throttled 0..100 value
	Update(received int64, progress int)

	// SetRetry marks the display with the current attempt number
	SetRetry(attempt int)

	// Complete marks the unit as finished, successfully when err is nil
	Complete(err error)

	// Remove drops the display without a summary line
	Remove()
}

// UnitsUI owns one display per unit.
type UnitsUI interface {
	AddUnit(index int, unitID, name string, size int64) UnitDisplay

	// Wait blocks until all displays complete
	Wait()

	// Writer returns an io.Writer that safely outputs above the progress bars.
	Writer() io.Writer

	// IsTerminal returns true if output is to a terminal (progress bars are active)
	IsTerminal() bool
}
