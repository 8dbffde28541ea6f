package escrow

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"sidekick/core/types"
)

const (
	EventTypeHoldingCreated = "escrow.holding_created"
	EventTypeDecided        = "escrow.decided"
	EventTypeSettled        = "escrow.settled"
	EventTypeAdminTransfer  = "escrow.admin_transfer"
	EventTypeFeeTransfer    = "escrow.fee_transfer"
)

// NewHoldingCreatedEvent returns the canonical event payload for a newly
// created holding.
func NewHoldingCreatedEvent(h *Holding) *types.Event {
	return newHoldingEvent(EventTypeHoldingCreated, h, nil)
}

// NewDecidedEvent returns the event payload emitted when an admin flags a
// holding for refund.
func NewDecidedEvent(h *Holding) *types.Event {
	return newHoldingEvent(EventTypeDecided, h, nil)
}

// NewSettledEvent returns the event payload for a terminal settlement,
// carrying the resolved route and the original custodied amount.
func NewSettledEvent(h *Holding, refund bool, total *big.Int) *types.Event {
	extra := map[string]string{
		"refund": strconv.FormatBool(refund),
	}
	if total != nil {
		extra["settledAmount"] = total.String()
	}
	return newHoldingEvent(EventTypeSettled, h, extra)
}

// NewAdminTransferEvent returns the event payload for an emergency extraction
// from the vault.
func NewAdminTransferEvent(to [20]byte, amount *big.Int) *types.Event {
	attrs := map[string]string{
		"to": hex.EncodeToString(to[:]),
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return &types.Event{Type: EventTypeAdminTransfer, Attributes: attrs}
}

// NewFeeTransferEvent returns the event payload for a fee-on-send forward.
func NewFeeTransferEvent(from, to [20]byte, forwarded, fee *big.Int) *types.Event {
	attrs := map[string]string{
		"from": hex.EncodeToString(from[:]),
		"to":   hex.EncodeToString(to[:]),
	}
	if forwarded != nil {
		attrs["forwarded"] = forwarded.String()
	}
	if fee != nil {
		attrs["fee"] = fee.String()
	}
	return &types.Event{Type: EventTypeFeeTransfer, Attributes: attrs}
}

func newHoldingEvent(eventType string, h *Holding, extra map[string]string) *types.Event {
	attrs := make(map[string]string)
	if h == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := SanitizeHolding(h)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(sanitized.ID, 10)
	attrs["challengeId"] = sanitized.ChallengeID
	attrs["sender"] = hex.EncodeToString(sanitized.Sender[:])
	attrs["recipient"] = hex.EncodeToString(sanitized.Recipient[:])
	attrs["amount"] = sanitized.Amount.String()
	attrs["serverAmount"] = sanitized.ServerAmount.String()
	attrs["status"] = strconv.FormatUint(uint64(sanitized.Status), 10)
	attrs["createdAt"] = strconv.FormatInt(sanitized.CreatedAt, 10)
	if sanitized.ServerFeeAddress != ([20]byte{}) {
		attrs["serverFeeAddress"] = hex.EncodeToString(sanitized.ServerFeeAddress[:])
	}
	for k, v := range extra {
		attrs[k] = v
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
