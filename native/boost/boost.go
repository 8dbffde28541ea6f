// Package boost implements the referral ledger that sits beside the escrow
// custody engine. Each boost pulls the full amount from the sender, routes a
// fixed percentage to the sidekick wallet and custodies the remainder for the
// leaderboard payout round.
package boost
