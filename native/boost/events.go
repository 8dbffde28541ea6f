package boost

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"sidekick/core/types"
)

const (
	EventTypeBoostCreated     = "boost.created"
	EventTypePayout           = "boost.payout"
	EventTypeLeaderboardReset = "boost.leaderboard_reset"
)

// NewBoostCreatedEvent returns the canonical payload for a newly created
// boost, including the share routed to the sidekick wallet.
func NewBoostCreatedEvent(b *Boost, sidekickShare *big.Int) *types.Event {
	attrs := make(map[string]string)
	if b != nil {
		sanitized, err := SanitizeBoost(b)
		if err == nil {
			attrs["id"] = strconv.FormatUint(sanitized.ID, 10)
			attrs["boostId"] = sanitized.BoostID
			attrs["sender"] = hex.EncodeToString(sanitized.Sender[:])
			attrs["recipient"] = hex.EncodeToString(sanitized.Recipient[:])
			attrs["agent"] = hex.EncodeToString(sanitized.Agent[:])
			attrs["amount"] = sanitized.Amount.String()
			attrs["createdAt"] = strconv.FormatInt(sanitized.CreatedAt, 10)
		}
	}
	if sidekickShare != nil {
		attrs["sidekickShare"] = sidekickShare.String()
	}
	return &types.Event{Type: EventTypeBoostCreated, Attributes: attrs}
}

// NewPayoutEvent returns the payload for one leaderboard payout round.
func NewPayoutEvent(winners int) *types.Event {
	return &types.Event{Type: EventTypePayout, Attributes: map[string]string{
		"winners": strconv.Itoa(winners),
	}}
}

// NewLeaderboardResetEvent returns the payload for an accumulator reset.
func NewLeaderboardResetEvent() *types.Event {
	return &types.Event{Type: EventTypeLeaderboardReset, Attributes: map[string]string{}}
}
