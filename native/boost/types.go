package boost

import (
	"fmt"
	"math/big"
)

// Boost is one referral entry: the sender paid amount, the agent is credited
// for the referral, and the leaderboard share stays in custody until the next
// payout round.
type Boost struct {
	ID        uint64
	BoostID   string
	Sender    [20]byte
	Recipient [20]byte
	Agent     [20]byte
	Amount    *big.Int
	CreatedAt int64
}

// Clone returns a deep copy of the boost record.
func (b *Boost) Clone() *Boost {
	if b == nil {
		return nil
	}
	clone := *b
	if b.Amount != nil {
		clone.Amount = new(big.Int).Set(b.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// SanitizeBoost validates the supplied record and returns a clone with a
// non-nil amount.
func SanitizeBoost(b *Boost) (*Boost, error) {
	if b == nil {
		return nil, fmt.Errorf("nil boost")
	}
	clone := b.Clone()
	if clone.Amount.Sign() < 0 {
		return nil, fmt.Errorf("boost amount must be non-negative")
	}
	return clone, nil
}
