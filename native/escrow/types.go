package escrow

import (
	"fmt"
	"math/big"
)

// HoldingStatus represents the lifecycle states of a custodied holding.
type HoldingStatus uint8

const (
	StatusInProgress HoldingStatus = iota
	StatusProcessed
	StatusRefunded
)

// Valid reports whether the status value is within the supported range.
func (s HoldingStatus) Valid() bool {
	switch s {
	case StatusInProgress, StatusProcessed, StatusRefunded:
		return true
	default:
		return false
	}
}

// Role selects which side of a holding an aggregate query matches on.
type Role uint8

const (
	RoleSender Role = iota
	RoleRecipient
)

// Valid reports whether the role value is within the supported range.
func (r Role) Valid() bool {
	return r == RoleSender || r == RoleRecipient
}

// Holding captures one escrowed value record between a sender and a
// recipient. Identifiers are sequential and 1-indexed; a zero id marks the
// "not found" sentinel returned by lookups. Amount is the authoritative
// remaining balance and is zeroed exactly once at settlement.
type Holding struct {
	ID               uint64
	ChallengeID      string
	Sender           [20]byte
	Recipient        [20]byte
	ServerFeeAddress [20]byte
	Amount           *big.Int
	ServerAmount     *big.Int
	Status           HoldingStatus
	CreatedAt        int64
}

// Clone returns a deep copy of the holding so callers can safely mutate the
// copy without affecting the stored instance.
func (h *Holding) Clone() *Holding {
	if h == nil {
		return nil
	}
	clone := *h
	if h.Amount != nil {
		clone.Amount = new(big.Int).Set(h.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	if h.ServerAmount != nil {
		clone.ServerAmount = new(big.Int).Set(h.ServerAmount)
	} else {
		clone.ServerAmount = big.NewInt(0)
	}
	return &clone
}

// SanitizeHolding validates and normalises the supplied holding, returning a
// cloned instance with non-nil amount fields. The original value is not
// mutated.
func SanitizeHolding(h *Holding) (*Holding, error) {
	if h == nil {
		return nil, fmt.Errorf("nil holding")
	}
	clone := h.Clone()
	if clone.Amount.Sign() < 0 {
		return nil, fmt.Errorf("holding amount must be non-negative")
	}
	if clone.ServerAmount.Sign() < 0 {
		return nil, fmt.Errorf("holding server amount must be non-negative")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("invalid holding status: %d", clone.Status)
	}
	return clone, nil
}
