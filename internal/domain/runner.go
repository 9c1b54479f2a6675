package domain

import "time"

// RunnerState is the persisted trailing state for a runner position (first
// profit target already taken, no fixed target left). Owned exclusively by
// the position monitor, keyed by (instrument, direction).
type RunnerState struct {
	Instrument    string
	Direction     Direction
	EntryPrice    float64
	TrailDistance float64 // last distance used to trail, fallback when ATR is unavailable
	PeakPrice     float64 // max favorable excursion since detection
	BreakevenSet  bool    // initial stop-to-entry adjustment done
	UpdatedAt     time.Time
}

// Key identifies the record in storage.
func (r *RunnerState) Key() string {
	return r.Instrument + ":" + string(r.Direction)
}

// UpdatePeak folds a new price observation into the max favorable excursion.
func (r *RunnerState) UpdatePeak(price float64) {
	if r.Direction == DirectionBuy {
		if price > r.PeakPrice {
			r.PeakPrice = price
		}
	} else {
		if r.PeakPrice == 0 || price < r.PeakPrice {
			r.PeakPrice = price
		}
	}
}

// CandidateStop computes the trailing stop from the current peak. The caller
// still has to verify it improves on the existing stop.
func (r *RunnerState) CandidateStop(trail float64) float64 {
	if r.Direction == DirectionBuy {
		return r.PeakPrice - trail
	}
	return r.PeakPrice + trail
}
