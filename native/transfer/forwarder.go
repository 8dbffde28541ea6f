// Package transfer implements the fee-on-send forwarder: every transfer
// deducts a basis-point fee to the admin wallet and the forwarder keeps
// running statistics on volume, unique recipients and transfer count.
package transfer

import (
	"errors"
	"math/big"
	"sync"

	"sidekick/core/events"
	"sidekick/core/types"
)

const feeDenominator = 10_000

var (
	ErrNotOwner             = errors.New("transfer: caller is not the admin wallet")
	ErrInvalidFeePercentage = errors.New("transfer: fee percentage above 10000 bps")
	ErrInvalidRecipient     = errors.New("transfer: zero recipient address")
	ErrInvalidAmount        = errors.New("transfer: zero amount")
	ErrInsufficientBalance  = errors.New("transfer: insufficient balance")

	errNilState = errors.New("transfer forwarder: state not configured")
)

type forwarderState interface {
	TransferRecipientSeen(addr [20]byte) bool
	TransferRecipientMark(addr [20]byte) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

type forwardEvent struct {
	evt *types.Event
}

func (e forwardEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e forwardEvent) Event() *types.Event { return e.evt }

// Forwarder moves value between parties with a basis-point fee to the admin
// wallet. The admin wallet is also the owner for configuration changes.
type Forwarder struct {
	// mu serializes whole operations. Handlers run concurrently and the
	// state backend only locks per call, so the fee legs and the running
	// statistics need a single holder.
	mu             sync.Mutex
	state          forwarderState
	emitter        events.Emitter
	adminWallet    [20]byte
	feeBps         uint64
	totalSent      *big.Int
	uniqueCount    uint64
	totalTransfers uint64
}

// NewForwarder creates a forwarder with the given admin wallet and fee in
// basis points.
func NewForwarder(adminWallet [20]byte, feeBps uint64) *Forwarder {
	return &Forwarder{
		emitter:     events.NoopEmitter{},
		adminWallet: adminWallet,
		feeBps:      feeBps,
		totalSent:   big.NewInt(0),
	}
}

// SetState configures the state backend used by the forwarder.
func (f *Forwarder) SetState(state forwarderState) { f.state = state }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (f *Forwarder) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		f.emitter = events.NoopEmitter{}
		return
	}
	f.emitter = emitter
}

// AdminWallet returns the fee recipient and owner wallet.
func (f *Forwarder) AdminWallet() [20]byte { return f.adminWallet }

// FeePercentage returns the current fee in basis points.
func (f *Forwarder) FeePercentage() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.feeBps
}

// TotalSent returns the cumulative transferred volume, fees included.
func (f *Forwarder) TotalSent() *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.totalSent)
}

// UniqueWalletCount returns the number of distinct recipients served.
func (f *Forwarder) UniqueWalletCount() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uniqueCount
}

// TotalTransfers returns the number of completed transfers.
func (f *Forwarder) TotalTransfers() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.totalTransfers
}

// SetFeePercentage updates the fee in basis points. Owner only; capped at
// 10000 bps.
func (f *Forwarder) SetFeePercentage(caller [20]byte, bps uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if caller != f.adminWallet {
		return ErrNotOwner
	}
	if bps > feeDenominator {
		return ErrInvalidFeePercentage
	}
	f.feeBps = bps
	return nil
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{BalanceUSDT: big.NewInt(0)}
	}
	if acc.BalanceUSDT == nil {
		acc.BalanceUSDT = big.NewInt(0)
	}
	return acc
}

func (f *Forwarder) transferToken(from, to [20]byte, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	fromAcc, err := f.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := f.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	toAcc = ensureAccount(toAcc)
	if fromAcc.BalanceUSDT.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	fromAcc.BalanceUSDT = new(big.Int).Sub(fromAcc.BalanceUSDT, amount)
	toAcc.BalanceUSDT = new(big.Int).Add(toAcc.BalanceUSDT, amount)
	if err := f.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return f.state.PutAccount(to[:], toAcc)
}

// Send forwards amount from sender to recipient, deducting the basis-point
// fee to the admin wallet, and updates the running statistics.
func (f *Forwarder) Send(from, to [20]byte, amount *big.Int) error {
	if f == nil || f.state == nil {
		return errNilState
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if to == ([20]byte{}) {
		return ErrInvalidRecipient
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	amt := new(big.Int).Set(amount)

	fromAcc, err := f.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	if ensureAccount(fromAcc).BalanceUSDT.Cmp(amt) < 0 {
		return ErrInsufficientBalance
	}

	fee := new(big.Int).Mul(amt, new(big.Int).SetUint64(f.feeBps))
	fee.Div(fee, big.NewInt(feeDenominator))
	forwarded := new(big.Int).Sub(amt, fee)

	if fee.Sign() > 0 {
		if err := f.transferToken(from, f.adminWallet, fee); err != nil {
			return err
		}
	}
	if err := f.transferToken(from, to, forwarded); err != nil {
		return err
	}

	f.totalSent.Add(f.totalSent, amt)
	f.totalTransfers++
	if !f.state.TransferRecipientSeen(to) {
		if err := f.state.TransferRecipientMark(to); err != nil {
			return err
		}
		f.uniqueCount++
	}
	f.emit(&types.Event{Type: EventTypeTransferWithFee, Attributes: map[string]string{
		"from":      hexAddr(from),
		"to":        hexAddr(to),
		"amount":    amt.String(),
		"fee":       fee.String(),
		"forwarded": forwarded.String(),
	}})
	return nil
}

func (f *Forwarder) emit(event *types.Event) {
	if f == nil || f.emitter == nil || event == nil {
		return
	}
	f.emitter.Emit(forwardEvent{evt: event})
}
