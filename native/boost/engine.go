package boost

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"sidekick/core/events"
	"sidekick/core/types"
)

var errNilState = errors.New("boost engine: state not configured")

const defaultSidekickPercentage = 5

type engineState interface {
	BoostPut(*Boost) error
	BoostGet(id uint64) (*Boost, bool)
	BoostIDUsed(boostID string) bool
	NextBoostID() (uint64, error)
	BoostCount() uint64
	BoostWinnerAdd(addr [20]byte, amount *big.Int) error
	BoostWinnerGet(addr [20]byte) *big.Int
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

type boostEvent struct {
	evt *types.Event
}

func (e boostEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e boostEvent) Event() *types.Event { return e.evt }

// Engine owns the referral ledger. The sidekick wallet doubles as the admin
// for payouts, pausing and configuration; there is no separate role tier.
type Engine struct {
	// mu serializes whole operations. Handlers run concurrently and the
	// state backend only locks per call, so multi-step flows need it.
	mu                     sync.Mutex
	state                  engineState
	emitter                events.Emitter
	vault                  [20]byte
	sidekickWallet         [20]byte
	sidekickPercentage     uint64
	paused                 bool
	totalAmount            *big.Int
	totalLeaderboardAmount *big.Int
	nowFn                  func() int64
}

// NewEngine creates a referral engine with the default five percent sidekick
// share and a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter:                events.NoopEmitter{},
		sidekickPercentage:     defaultSidekickPercentage,
		totalAmount:            big.NewInt(0),
		totalLeaderboardAmount: big.NewInt(0),
		nowFn:                  func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetVaultAddress configures the module account that custodies the
// leaderboard share.
func (e *Engine) SetVaultAddress(addr [20]byte) { e.vault = addr }

// SetSidekickWallet seeds the admin wallet at start-up.
func (e *Engine) SetSidekickWallet(addr [20]byte) { e.sidekickWallet = addr }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SidekickWallet returns the current admin wallet.
func (e *Engine) SidekickWallet() [20]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sidekickWallet
}

// SidekickPercentage returns the percentage routed to the sidekick wallet.
func (e *Engine) SidekickPercentage() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sidekickPercentage
}

// Paused reports whether boost creation is suspended.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// TotalAmount returns the lifetime volume pulled through the ledger.
func (e *Engine) TotalAmount() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return new(big.Int).Set(e.totalAmount)
}

// TotalLeaderboardAmount returns the accumulated leaderboard share since the
// last reset.
func (e *Engine) TotalLeaderboardAmount() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return new(big.Int).Set(e.totalLeaderboardAmount)
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(boostEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
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

func (e *Engine) transferToken(from, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return nil
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	toAcc = ensureAccount(toAcc)
	if fromAcc.BalanceUSDT.Cmp(amt) < 0 {
		return ErrInsufficientBalance
	}
	fromAcc.BalanceUSDT = new(big.Int).Sub(fromAcc.BalanceUSDT, amt)
	toAcc.BalanceUSDT = new(big.Int).Add(toAcc.BalanceUSDT, amt)
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], toAcc)
}

func (e *Engine) vaultBalance() (*big.Int, error) {
	acc, err := e.state.GetAccount(e.vault[:])
	if err != nil {
		return nil, err
	}
	return cloneBigInt(ensureAccount(acc).BalanceUSDT), nil
}

// Boost pulls amount from the sender, pays the sidekick share out immediately
// and custodies the remainder for the leaderboard.
func (e *Engine) Boost(sender, recipient, agent [20]byte, amount *big.Int, boostID string) (*Boost, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused {
		return nil, ErrPaused
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	if sender == ([20]byte{}) || recipient == ([20]byte{}) || agent == ([20]byte{}) {
		return nil, ErrZeroAddress
	}
	if boostID == "" {
		return nil, ErrBoostIDEmpty
	}
	if e.state.BoostIDUsed(boostID) {
		return nil, ErrBoostIDUsed
	}

	// The full amount must be covered before either leg moves, otherwise a
	// sender who can pay the share but not the custody would leave the
	// share behind on a failed boost.
	senderAcc, err := e.state.GetAccount(sender[:])
	if err != nil {
		return nil, err
	}
	if ensureAccount(senderAcc).BalanceUSDT.Cmp(amt) < 0 {
		return nil, ErrInsufficientBalance
	}

	share := new(big.Int).Mul(amt, new(big.Int).SetUint64(e.sidekickPercentage))
	share.Div(share, big.NewInt(100))
	custody := new(big.Int).Sub(amt, share)

	if err := e.transferToken(sender, e.sidekickWallet, share); err != nil {
		return nil, err
	}
	if err := e.transferToken(sender, e.vault, custody); err != nil {
		return nil, err
	}

	id, err := e.state.NextBoostID()
	if err != nil {
		return nil, err
	}
	record := &Boost{
		ID:        id,
		BoostID:   boostID,
		Sender:    sender,
		Recipient: recipient,
		Agent:     agent,
		Amount:    amt,
		CreatedAt: e.now(),
	}
	if err := e.state.BoostPut(record); err != nil {
		return nil, err
	}
	e.totalAmount.Add(e.totalAmount, amt)
	e.totalLeaderboardAmount.Add(e.totalLeaderboardAmount, custody)
	e.emit(NewBoostCreatedEvent(record, share))
	return record.Clone(), nil
}

// PayTo distributes custody to the given winners. Recipients and amounts must
// line up; per-winner totals accumulate for leaderboard queries.
func (e *Engine) PayTo(caller [20]byte, recipients [][20]byte, amounts []*big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.sidekickWallet {
		return ErrNotAdmin
	}
	if len(recipients) != len(amounts) {
		return ErrLessInputs
	}
	// The batch is all-or-nothing: the summed payout must fit the vault
	// before the first winner is paid.
	total := big.NewInt(0)
	for _, amount := range amounts {
		amt := cloneBigInt(amount)
		if amt.Sign() > 0 {
			total.Add(total, amt)
		}
	}
	balance, err := e.vaultBalance()
	if err != nil {
		return err
	}
	if balance.Cmp(total) < 0 {
		return ErrInsufficientBalance
	}
	for i := range recipients {
		if err := e.transferToken(e.vault, recipients[i], amounts[i]); err != nil {
			return err
		}
		if err := e.state.BoostWinnerAdd(recipients[i], cloneBigInt(amounts[i])); err != nil {
			return err
		}
	}
	e.emit(NewPayoutEvent(len(recipients)))
	return nil
}

// WinnerTotal returns the accumulated payout for one leaderboard winner.
func (e *Engine) WinnerTotal(addr [20]byte) *big.Int {
	if e == nil || e.state == nil {
		return big.NewInt(0)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.BoostWinnerGet(addr)
}

// ResetLeaderboard zeroes the accumulator once every custodied unit has been
// paid out.
func (e *Engine) ResetLeaderboard(caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.sidekickWallet {
		return ErrNotAdmin
	}
	balance, err := e.vaultBalance()
	if err != nil {
		return err
	}
	if balance.Sign() != 0 {
		return ErrBalanceNotZero
	}
	e.totalLeaderboardAmount = big.NewInt(0)
	e.emit(NewLeaderboardResetEvent())
	return nil
}

// GetInTimeRange returns all boosts created within [start, end] inclusive in
// creation order.
func (e *Engine) GetInTimeRange(start, end int64) ([]*Boost, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if start > end {
		return nil, ErrTimeError
	}
	count := e.state.BoostCount()
	matched := []*Boost{}
	for i := uint64(1); i < count; i++ {
		record, ok := e.state.BoostGet(i)
		if !ok {
			continue
		}
		if record.CreatedAt >= start && record.CreatedAt <= end {
			matched = append(matched, record.Clone())
		}
	}
	return matched, nil
}

// ChangeSidekickPercentage updates the share routed to the sidekick wallet.
func (e *Engine) ChangeSidekickPercentage(caller [20]byte, percentage uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.sidekickWallet {
		return ErrNotAdmin
	}
	e.sidekickPercentage = percentage
	return nil
}

// ChangePause toggles the boost-creation pause flag.
func (e *Engine) ChangePause(caller [20]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.sidekickWallet {
		return ErrNotAdmin
	}
	e.paused = !e.paused
	return nil
}

// ChangeSidekickWallet rotates the admin wallet.
func (e *Engine) ChangeSidekickWallet(caller, wallet [20]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.sidekickWallet {
		return ErrNotAdmin
	}
	if wallet == ([20]byte{}) {
		return ErrZeroAddress
	}
	e.sidekickWallet = wallet
	return nil
}
