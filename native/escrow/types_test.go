package escrow

import (
	"math/big"
	"testing"
)

func TestHoldingStatusValid(t *testing.T) {
	for _, s := range []HoldingStatus{StatusInProgress, StatusProcessed, StatusRefunded} {
		if !s.Valid() {
			t.Fatalf("status %d should be valid", s)
		}
	}
	if HoldingStatus(3).Valid() {
		t.Fatalf("out-of-range status must be rejected")
	}
}

func TestHoldingCloneIsDeep(t *testing.T) {
	h := &Holding{ID: 7, ChallengeID: "c", Amount: big.NewInt(10), ServerAmount: big.NewInt(2)}
	clone := h.Clone()
	clone.Amount.SetInt64(99)
	clone.ServerAmount.SetInt64(99)
	if h.Amount.Int64() != 10 || h.ServerAmount.Int64() != 2 {
		t.Fatalf("clone mutation leaked into the original")
	}
}

func TestSanitizeHolding(t *testing.T) {
	if _, err := SanitizeHolding(nil); err == nil {
		t.Fatalf("nil holding must be rejected")
	}
	sanitized, err := SanitizeHolding(&Holding{ID: 1})
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if sanitized.Amount == nil || sanitized.ServerAmount == nil {
		t.Fatalf("sanitize must backfill nil amounts")
	}
	if _, err := SanitizeHolding(&Holding{Amount: big.NewInt(-1)}); err == nil {
		t.Fatalf("negative amount must be rejected")
	}
	if _, err := SanitizeHolding(&Holding{Status: HoldingStatus(9)}); err == nil {
		t.Fatalf("invalid status must be rejected")
	}
}
