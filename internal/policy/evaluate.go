package policy

import (
	ledgerdomain "github.com/rentstack/rentflow/internal/ledger/domain"
)

// StageResult reports how far a ledger is from satisfying one payment gate.
type StageResult struct {
	OperatingTotalCents     int64 `json:"operating_total_cents"`
	DepositTotalCents       int64 `json:"deposit_total_cents"`
	OperatingRemainingCents int64 `json:"operating_remaining_cents"`
	DepositRemainingCents   int64 `json:"deposit_remaining_cents"`
	RemainingTotalCents     int64 `json:"remaining_total_cents"`
	Met                     bool  `json:"met"`
}

// EvaluateStage1 computes the pre-signing gate. Money credited beyond a
// bucket's signing threshold counts toward stage 2, never double toward
// stage 1.
func EvaluateStage1(p StagePolicy, ledger *ledgerdomain.Ledger) StageResult {
	credited := bucketCredits(ledger)
	return stageResult(
		p.SigningUpfrontThresholdCents, credited.upfront, 0,
		p.SigningDepositThresholdCents, credited.deposit, 0,
	)
}

// EvaluateStage2 computes the pre-move-in gate, which covers only what
// stage 1 did not require. When the signing threshold already covers the
// whole plan for a bucket the stage-2 total clamps to zero and the bucket is
// trivially met.
func EvaluateStage2(p StagePolicy, ledger *ledgerdomain.Ledger) StageResult {
	credited := bucketCredits(ledger)
	opTotal := p.TotalUpfrontCents - p.SigningUpfrontThresholdCents
	if opTotal < 0 {
		opTotal = 0
	}
	depTotal := p.SecurityDepositCents - p.SigningDepositThresholdCents
	if depTotal < 0 {
		depTotal = 0
	}
	return stageResult(
		opTotal, credited.upfront, p.SigningUpfrontThresholdCents,
		depTotal, credited.deposit, p.SigningDepositThresholdCents,
	)
}

type credits struct {
	upfront int64
	deposit int64
}

func bucketCredits(ledger *ledgerdomain.Ledger) credits {
	up := ledgerdomain.BucketUpfront
	dep := ledgerdomain.BucketDeposit
	return credits{
		upfront: ledger.Credited(ledgerdomain.Filter{Bucket: &up}),
		deposit: ledger.Credited(ledgerdomain.Filter{Bucket: &dep}),
	}
}

// stageResult computes remaining cents for one stage. priorCents is what the
// preceding stage consumed: credits below it belong to that stage, credits
// above it count here, capped at this stage's own total.
func stageResult(opTotal, opCredited, opPrior, depTotal, depCredited, depPrior int64) StageResult {
	result := StageResult{
		OperatingTotalCents:     opTotal,
		DepositTotalCents:       depTotal,
		OperatingRemainingCents: remainingForStage(opTotal, opCredited, opPrior),
		DepositRemainingCents:   remainingForStage(depTotal, depCredited, depPrior),
	}
	result.RemainingTotalCents = result.OperatingRemainingCents + result.DepositRemainingCents
	result.Met = result.RemainingTotalCents == 0
	return result
}

func remainingForStage(total, credited, prior int64) int64 {
	toward := credited - prior
	if toward < 0 {
		toward = 0
	}
	if toward > total {
		toward = total
	}
	remaining := total - toward
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}
