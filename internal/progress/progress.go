// Package progress turns processed-item counts into percentages and relays log
// messages to an optional subscriber.
package progress

import "math"

// Callback receives the current percentage (0-100) and a human-readable message.
// It is invoked synchronously from the run and must return quickly.
type Callback func(percent int, message string)

// Percent computes min(99, round(100*processed/total)). A zero total yields 0.
func Percent(processed, total int) int {
	if total <= 0 || processed <= 0 {
		return 0
	}
	p := int(math.Round(100 * float64(processed) / float64(total)))
	if p > 99 {
		return 99
	}
	return p
}

// Accountant tracks progress through one run. The percentage never decreases and
// stays below 100 until Complete is called.
type Accountant struct {
	total     int
	processed int
	percent   int
	done      bool
}

// NewAccountant creates an accountant for total countable items.
func NewAccountant(total int) *Accountant {
	return &Accountant{total: total}
}

// Advance records one processed item and returns the new percentage.
func (a *Accountant) Advance() int {
	if a.done {
		return a.percent
	}
	a.processed++
	if p := Percent(a.processed, a.total); p > a.percent {
		a.percent = p
	}
	return a.percent
}

// Complete marks the run finished; the percentage becomes 100.
func (a *Accountant) Complete() int {
	a.done = true
	a.percent = 100
	return a.percent
}

// Percent returns the current percentage.
func (a *Accountant) Percent() int {
	return a.percent
}

// Processed returns the number of items advanced so far.
func (a *Accountant) Processed() int {
	return a.processed
}

// Total returns the precomputed item count.
func (a *Accountant) Total() int {
	return a.total
}
