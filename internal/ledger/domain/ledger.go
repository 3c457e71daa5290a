package domain

import (
	"fmt"
	"sort"
	"time"
)

// Ledger is the full charge set for one application. It is a plain value:
// persistence and locking are the caller's concern.
type Ledger struct {
	Charges []Charge
}

// Filter narrows aggregate queries. Nil fields match everything.
type Filter struct {
	Bucket *Bucket
	Code   *Code
}

func (f Filter) matches(c Charge) bool {
	if f.Bucket != nil && c.Bucket != *f.Bucket {
		return false
	}
	if f.Code != nil && c.Code != *f.Code {
		return false
	}
	return true
}

// Remaining sums the uncredited cents over charges matching the filter.
func (l *Ledger) Remaining(f Filter) int64 {
	var total int64
	for _, c := range l.Charges {
		if f.matches(c) {
			total += c.RemainingCents()
		}
	}
	return total
}

// Credited sums posted plus pending cents over charges matching the filter.
func (l *Ledger) Credited(f Filter) int64 {
	var total int64
	for _, c := range l.Charges {
		if f.matches(c) {
			total += c.CreditedCents()
		}
	}
	return total
}

// DueNow sums the remaining cents of charges with no due date or a due date
// at or before asOf. Display only; it never gates a transition.
func (l *Ledger) DueNow(asOf time.Time) int64 {
	var total int64
	for _, c := range l.Charges {
		if c.DueDate == nil || !c.DueDate.After(asOf) {
			total += c.RemainingCents()
		}
	}
	return total
}

// Find returns the charge with the given key, or nil.
func (l *Ledger) Find(chargeKey string) *Charge {
	for i := range l.Charges {
		if l.Charges[i].ChargeKey == chargeKey {
			return &l.Charges[i]
		}
	}
	return nil
}

// ApplyCredit increases posted/pending on one charge. It refuses any delta
// that would push credited cents above the charge amount.
func (l *Ledger) ApplyCredit(chargeKey string, postedDeltaCents, pendingDeltaCents int64) error {
	charge := l.Find(chargeKey)
	if charge == nil {
		return ErrChargeNotFound
	}
	posted := charge.PostedCents + postedDeltaCents
	pending := charge.PendingCents + pendingDeltaCents
	if posted < 0 || pending < 0 {
		return ErrInvalidAmount
	}
	if posted+pending > charge.AmountCents {
		return ErrOverpayment
	}
	charge.PostedCents = posted
	charge.PendingCents = pending
	return nil
}

// Validate checks the credited-within-amount invariant on every charge. A
// failure here means the stored ledger is corrupt, not that a caller made a
// recoverable mistake.
func (l *Ledger) Validate() error {
	for _, c := range l.Charges {
		if !ValidBucket(c.Bucket) {
			return fmt.Errorf("%w: charge %s bucket %q", ErrLedgerCorrupt, c.ChargeKey, c.Bucket)
		}
		if !ValidCode(c.Code) {
			return fmt.Errorf("%w: charge %s code %q", ErrLedgerCorrupt, c.ChargeKey, c.Code)
		}
		if c.AmountCents < 0 {
			return fmt.Errorf("%w: charge %s negative amount", ErrLedgerCorrupt, c.ChargeKey)
		}
		if c.PostedCents < 0 || c.PendingCents < 0 {
			return fmt.Errorf("%w: charge %s negative credit", ErrLedgerCorrupt, c.ChargeKey)
		}
		if c.PostedCents+c.PendingCents > c.AmountCents {
			return fmt.Errorf("%w: charge %s credited beyond amount", ErrLedgerCorrupt, c.ChargeKey)
		}
	}
	return nil
}

// SortByPriority orders charges by allocation priority within their code,
// then by key for a stable order.
func (l *Ledger) SortByPriority() {
	sort.SliceStable(l.Charges, func(i, j int) bool {
		pi, pj := CodePriority(l.Charges[i].Code), CodePriority(l.Charges[j].Code)
		if pi != pj {
			return pi < pj
		}
		return l.Charges[i].ChargeKey < l.Charges[j].ChargeKey
	})
}

// CodePriority orders codes for allocation: within the upfront bucket money
// covers last month, then first month, then the key fee. Changing this order
// changes who gets paid first.
func CodePriority(c Code) int {
	switch c {
	case CodeLastMonth:
		return 1
	case CodeFirstMonth:
		return 2
	case CodeKeyFee:
		return 3
	case CodeSecurityDeposit:
		return 4
	case CodeRent:
		return 5
	}
	return 99
}
