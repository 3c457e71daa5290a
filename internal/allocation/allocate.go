// Package allocation distributes an incoming payment across the charges of
// one application's ledger. The ordering rules here decide who gets paid
// first and must not change without a product decision.
package allocation

import (
	"errors"
	"sort"

	ledgerdomain "github.com/rentstack/rentflow/internal/ledger/domain"
)

var (
	ErrInvalidAmount = errors.New("invalid_amount")
	ErrInvalidBucket = errors.New("invalid_bucket")
)

// Piece records a non-zero credit against a single charge.
type Piece struct {
	ChargeKey    string `json:"charge_key"`
	Label        string `json:"label"`
	AmountCents  int64  `json:"amount_cents"`
	FullyCovered bool   `json:"fully_covered"`
}

// Result is the full distribution of one payment. The conservation invariant
// holds: sum(pieces) + leftover == payment amount.
type Result struct {
	Pieces        []Piece `json:"pieces"`
	LeftoverCents int64   `json:"leftover_cents"`
}

// Allocate distributes amountCents across the ledger's charges for the
// target bucket.
//
// deposit: deposit-bucket charges in ascending code priority; the excess
// beyond what deposit charges need is reported as leftover.
//
// upfront: strict priority last_month, then first_month, then key_fee, each
// up to its remaining cents; whatever is left after key_fee is fully covered
// is reported as leftover for the caller to roll into rent.
//
// No charge ever receives more than its remaining cents, and the ledger is
// not mutated; callers apply the resulting pieces as credits.
func Allocate(ledger *ledgerdomain.Ledger, amountCents int64, bucket ledgerdomain.Bucket) (Result, error) {
	if amountCents <= 0 {
		return Result{}, ErrInvalidAmount
	}
	switch bucket {
	case ledgerdomain.BucketUpfront, ledgerdomain.BucketDeposit:
	default:
		return Result{}, ErrInvalidBucket
	}

	candidates := make([]ledgerdomain.Charge, 0, len(ledger.Charges))
	for _, c := range ledger.Charges {
		if c.Bucket == bucket {
			candidates = append(candidates, c)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		pi, pj := ledgerdomain.CodePriority(candidates[i].Code), ledgerdomain.CodePriority(candidates[j].Code)
		if pi != pj {
			return pi < pj
		}
		return candidates[i].ChargeKey < candidates[j].ChargeKey
	})

	result := Result{}
	remaining := amountCents
	for _, c := range candidates {
		if remaining == 0 {
			break
		}
		need := c.RemainingCents()
		if need == 0 {
			continue
		}
		credit := need
		if credit > remaining {
			credit = remaining
		}
		result.Pieces = append(result.Pieces, Piece{
			ChargeKey:    c.ChargeKey,
			Label:        labelFor(c.Code),
			AmountCents:  credit,
			FullyCovered: credit == need,
		})
		remaining -= credit
	}
	result.LeftoverCents = remaining
	return result, nil
}

func labelFor(code ledgerdomain.Code) string {
	switch code {
	case ledgerdomain.CodeFirstMonth:
		return "First month"
	case ledgerdomain.CodeLastMonth:
		return "Last month"
	case ledgerdomain.CodeKeyFee:
		return "Key fee"
	case ledgerdomain.CodeSecurityDeposit:
		return "Security deposit"
	case ledgerdomain.CodeRent:
		return "Monthly rent"
	}
	return string(code)
}
