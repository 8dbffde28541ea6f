package transfer

import "encoding/hex"

// EventTypeTransferWithFee is emitted for every completed forward.
const EventTypeTransferWithFee = "transfer.with_fee"

func hexAddr(addr [20]byte) string {
	return hex.EncodeToString(addr[:])
}
