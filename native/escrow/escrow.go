// Package escrow implements the custody ledger at the heart of the SideKick
// settlement stack. It accepts deposits from a sender on behalf of a
// recipient, holds the funds under a challenge identifier, and resolves each
// holding exactly once: a time-locked payout with fee deduction, a full
// refund to the sender, or an admin-forced decision.
package escrow
