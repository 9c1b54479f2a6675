package usecase

import (
	"github.com/maksym/trade_sentinel/internal/domain"
)

// Block reasons. "correlated" flags same-direction exposure inside one
// correlation group; "conflict" flags an inverse pair trading the same
// nominal direction.
const (
	BlockReasonCorrelated = "correlated"
	BlockReasonConflict   = "conflict"
)

// CheckResult reports whether a candidate trade may proceed.
type CheckResult struct {
	OK                    bool
	Reason                string
	ConflictingInstrument string
}

// CorrelationGuard vets a candidate (instrument, direction) against all open
// positions and pending orders. Deliberately conservative: ambiguity blocks,
// never allows.
type CorrelationGuard struct{}

func NewCorrelationGuard() *CorrelationGuard {
	return &CorrelationGuard{}
}

// Check inspects every existing exposure on a different instrument.
// Same-instrument exposure is a separate, prior check and is skipped here.
func (g *CorrelationGuard) Check(instrument string, direction domain.Direction, snap *domain.AccountSnapshot) CheckResult {
	for _, p := range snap.Positions {
		if res := checkExisting(instrument, direction, p.Instrument, p.Direction); !res.OK {
			return res
		}
	}
	for _, o := range snap.PendingOrders {
		if res := checkExisting(instrument, direction, o.Instrument, o.Direction); !res.OK {
			return res
		}
	}
	return CheckResult{OK: true}
}

func checkExisting(candidate string, candidateDir domain.Direction, existing string, existingDir domain.Direction) CheckResult {
	if existing == candidate {
		return CheckResult{OK: true}
	}
	if existingDir != candidateDir {
		// Opposite-direction exposure is not double risk under either rule.
		return CheckResult{OK: true}
	}
	if len(domain.SharedGroups(candidate, existing)) > 0 {
		return CheckResult{
			Reason:                BlockReasonCorrelated,
			ConflictingInstrument: existing,
		}
	}
	if domain.IsInversePair(candidate, existing) {
		return CheckResult{
			Reason:                BlockReasonConflict,
			ConflictingInstrument: existing,
		}
	}
	return CheckResult{OK: true}
}
