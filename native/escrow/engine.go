package escrow

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"sidekick/core/events"
	"sidekick/core/types"
)

var errNilState = errors.New("escrow engine: state not configured")

const (
	// RoleAdmin authorises settlement and decision calls.
	RoleAdmin = "ROLE_ADMIN"
	// RoleDefaultAdmin authorises configuration changes and emergency
	// value extraction.
	RoleDefaultAdmin = "ROLE_DEFAULT_ADMIN"
)

type engineState interface {
	HoldingPut(*Holding) error
	HoldingGet(id uint64) (*Holding, bool)
	HoldingIDByChallenge(challengeID string) (uint64, bool)
	// NextHoldingID allocates the next sequential identifier. The counter
	// starts at one and is never reused.
	NextHoldingID() (uint64, error)
	// HoldingCount returns the next unallocated identifier, i.e. one past
	// the most recently created holding.
	HoldingCount() uint64
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	HasRole(role string, addr []byte) bool
}

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// Engine wires the custody ledger business logic with external state and
// event emitters. All value movement happens through account mutations on the
// state backend; the engine itself never holds funds.
type Engine struct {
	// mu serializes whole operations. Handlers run concurrently and the
	// state backend only locks per call, so multi-step flows such as
	// Settle need a single holder from the status read to the last leg.
	mu         sync.Mutex
	state      engineState
	emitter    events.Emitter
	vault      [20]byte
	feeAddress [20]byte
	feePercent uint64
	feeForGas  *big.Int
	blockTime  int64
	nowFn      func() int64
}

// NewEngine creates a custody engine with a no-op emitter and a zero fee
// schedule. Callers configure the state backend, vault and fees before use.
func NewEngine() *Engine {
	return &Engine{
		emitter:   events.NoopEmitter{},
		feeForGas: big.NewInt(0),
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetVaultAddress configures the module account that custodies deposits.
func (e *Engine) SetVaultAddress(addr [20]byte) { e.vault = addr }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Configure seeds the fee schedule and time lock without an authorisation
// check. It is intended for process start-up; runtime changes go through the
// role-gated setters.
func (e *Engine) Configure(blockTime int64, feePercent uint64, feeForGas *big.Int, feeAddress [20]byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.blockTime = blockTime
	e.feePercent = feePercent
	e.feeForGas = cloneBigInt(feeForGas)
	e.feeAddress = feeAddress
}

// BlockTime returns the current time-lock duration in seconds.
func (e *Engine) BlockTime() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.blockTime
}

// FeePercent returns the percentage fee applied on settlement.
func (e *Engine) FeePercent() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feePercent
}

// FeeForGas returns the fixed fee deducted on payout.
func (e *Engine) FeeForGas() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneBigInt(e.feeForGas)
}

// FeeAddress returns the recipient of both fee components.
func (e *Engine) FeeAddress() [20]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feeAddress
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: event})
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
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return ErrTransferError
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

func (e *Engine) requireRole(role string, caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if !e.state.HasRole(role, caller[:]) {
		return ErrNotAdmin
	}
	return nil
}

// CreateHolding pulls amount from the sender into ledger custody and records
// a new holding under the supplied challenge identifier. The returned holding
// carries the freshly minted sequential id.
func (e *Engine) CreateHolding(sender, recipient [20]byte, amount *big.Int, challengeID string, serverFeeAddr [20]byte, serverAmount *big.Int) (*Holding, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	if sender == ([20]byte{}) || recipient == ([20]byte{}) {
		return nil, ErrZeroAddress
	}
	srvAmt := cloneBigInt(serverAmount)
	if srvAmt.Sign() > 0 && serverFeeAddr == ([20]byte{}) {
		return nil, ErrZeroAddress
	}
	if challengeID == "" {
		return nil, ErrEmptyChallengeID
	}
	if srvAmt.Cmp(amt) > 0 {
		return nil, ErrServerAmountExceedsLimit
	}
	if _, exists := e.state.HoldingIDByChallenge(challengeID); exists {
		return nil, ErrDuplicateChallengeID
	}
	if err := e.transferToken(sender, e.vault, amt); err != nil {
		return nil, err
	}
	id, err := e.state.NextHoldingID()
	if err != nil {
		return nil, err
	}
	holding := &Holding{
		ID:               id,
		ChallengeID:      challengeID,
		Sender:           sender,
		Recipient:        recipient,
		ServerFeeAddress: serverFeeAddr,
		Amount:           amt,
		ServerAmount:     srvAmt,
		Status:           StatusInProgress,
		CreatedAt:        e.now(),
	}
	if err := e.state.HoldingPut(holding); err != nil {
		return nil, err
	}
	e.emit(NewHoldingCreatedEvent(holding))
	return holding.Clone(), nil
}

// Decide records the admin verdict for an in-progress holding. The only
// accepted outcome is StatusRefunded: it flags the holding so the next Settle
// call routes the full remaining amount back to the sender with no fees and
// without waiting for the time lock. No funds move here.
func (e *Engine) Decide(caller [20]byte, id uint64, outcome HoldingStatus) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireRole(RoleAdmin, caller); err != nil {
		return err
	}
	holding, ok := e.state.HoldingGet(id)
	if !ok {
		return ErrHoldingNotFound
	}
	if holding.Status != StatusInProgress || outcome != StatusRefunded {
		return ErrNotStatus
	}
	holding.Status = StatusRefunded
	if err := e.state.HoldingPut(holding); err != nil {
		return err
	}
	e.emit(NewDecidedEvent(holding))
	return nil
}

// Settle resolves a holding exactly once. Holdings still in progress pay out
// after the time lock: the fixed gas fee is carved off first, the percentage
// fee is taken on the remainder, the creation-time server amount goes to the
// server fee address and the rest goes to the recipient. Holdings flagged
// StatusRefunded return the full amount to the sender with no fees and no
// time lock. A missing id resolves to the zero-valued sentinel holding, which
// fails with ErrTransferError once the amount check runs.
func (e *Engine) Settle(caller [20]byte, id uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireRole(RoleAdmin, caller); err != nil {
		return err
	}
	holding, ok := e.state.HoldingGet(id)
	if !ok {
		holding = &Holding{ID: id, Amount: big.NewInt(0), ServerAmount: big.NewInt(0)}
	}
	if holding.Status != StatusInProgress && holding.Status != StatusRefunded {
		return ErrNotStatus
	}
	refund := holding.Status == StatusRefunded
	now := e.now()
	if !refund && now < holding.CreatedAt+e.blockTime {
		return ErrNotTime
	}
	total := cloneBigInt(holding.Amount)
	if total.Sign() <= 0 {
		return ErrTransferError
	}

	var legs []paymentLeg
	if refund {
		legs = append(legs, paymentLeg{to: holding.Sender, amount: total})
	} else {
		var err error
		legs, err = e.splitPayout(holding, total)
		if err != nil {
			return err
		}
	}

	// Sufficiency is checked up front so the status flip and the transfers
	// commit together; a short vault aborts before any mutation.
	vaultAcc, err := e.state.GetAccount(e.vault[:])
	if err != nil {
		return err
	}
	if ensureAccount(vaultAcc).BalanceUSDT.Cmp(total) < 0 {
		return ErrInsufficientBalance
	}

	holding.Amount = big.NewInt(0)
	holding.Status = StatusProcessed
	if err := e.state.HoldingPut(holding); err != nil {
		return err
	}
	for _, leg := range legs {
		if err := e.transferToken(e.vault, leg.to, leg.amount); err != nil {
			return err
		}
	}
	e.emit(NewSettledEvent(holding, refund, total))
	return nil
}

type paymentLeg struct {
	to     [20]byte
	amount *big.Int
}

// splitPayout computes the fee legs for a normal settlement. The legs always
// reconcile exactly to total; floor-division remainder from the percentage
// fee stays with the recipient.
func (e *Engine) splitPayout(holding *Holding, total *big.Int) ([]paymentLeg, error) {
	gas := cloneBigInt(e.feeForGas)
	if gas.Cmp(total) > 0 {
		gas = cloneBigInt(total)
	}
	remainder := new(big.Int).Sub(total, gas)
	pctFee := new(big.Int).Mul(remainder, new(big.Int).SetUint64(e.feePercent))
	pctFee.Div(pctFee, big.NewInt(100))
	server := cloneBigInt(holding.ServerAmount)
	recipientShare := new(big.Int).Sub(remainder, pctFee)
	recipientShare.Sub(recipientShare, server)
	if recipientShare.Sign() < 0 {
		return nil, ErrTransferError
	}
	fee := new(big.Int).Add(gas, pctFee)
	legs := make([]paymentLeg, 0, 3)
	if fee.Sign() > 0 {
		legs = append(legs, paymentLeg{to: e.feeAddress, amount: fee})
	}
	if server.Sign() > 0 {
		legs = append(legs, paymentLeg{to: holding.ServerFeeAddress, amount: server})
	}
	if recipientShare.Sign() > 0 {
		legs = append(legs, paymentLeg{to: holding.Recipient, amount: recipientShare})
	}
	return legs, nil
}

// GetByChallengeID resolves a holding by its external challenge identifier.
// Absent identifiers yield the zero-valued sentinel holding with ID == 0.
func (e *Engine) GetByChallengeID(challengeID string) *Holding {
	if e == nil || e.state == nil {
		return &Holding{Amount: big.NewInt(0), ServerAmount: big.NewInt(0)}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if id, ok := e.state.HoldingIDByChallenge(challengeID); ok {
		if holding, found := e.state.HoldingGet(id); found {
			return holding.Clone()
		}
	}
	return &Holding{Amount: big.NewInt(0), ServerAmount: big.NewInt(0)}
}

// GetHolding resolves a holding by id, reporting whether it exists.
func (e *Engine) GetHolding(id uint64) (*Holding, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	holding, ok := e.state.HoldingGet(id)
	if !ok {
		return nil, false
	}
	return holding.Clone(), true
}

// window yields the page of ids selected by startIndex and pageSize. The
// window is anchored at the next-id counter and walks backwards, so a zero
// startIndex inspects the not-yet-created slot first; callers paginate
// around that.
func (e *Engine) window(startIndex, pageSize uint64, visit func(*Holding)) {
	count := e.state.HoldingCount()
	if startIndex >= count {
		return
	}
	from := count - startIndex
	for i := from; i > 0 && from-i < pageSize; i-- {
		holding, ok := e.state.HoldingGet(i)
		if !ok {
			continue
		}
		visit(holding)
	}
}

// Total sums the remaining custodied amount for the given address acting in
// the given role across one backward-paginated window. Settled holdings carry
// a zero amount and therefore drop out naturally.
func (e *Engine) Total(addr [20]byte, role Role, startIndex, pageSize uint64) *big.Int {
	total := big.NewInt(0)
	if e == nil || e.state == nil || !role.Valid() {
		return total
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.window(startIndex, pageSize, func(h *Holding) {
		switch role {
		case RoleSender:
			if h.Sender != addr {
				return
			}
		case RoleRecipient:
			if h.Recipient != addr {
				return
			}
		}
		if h.Amount != nil {
			total.Add(total, h.Amount)
		}
	})
	return total
}

// Redeemable reports the holdings within one backward-paginated window that
// the given sender could have settled right now: still in progress with an
// elapsed time lock. It returns the summed amount and the matching ids in
// scan order (newest first).
func (e *Engine) Redeemable(addr [20]byte, startIndex, pageSize uint64) (*big.Int, []uint64) {
	total := big.NewInt(0)
	ids := []uint64{}
	if e == nil || e.state == nil {
		return total, ids
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	e.window(startIndex, pageSize, func(h *Holding) {
		if h.Sender != addr || h.Status != StatusInProgress {
			return
		}
		if now < h.CreatedAt+e.blockTime {
			return
		}
		if h.Amount != nil {
			total.Add(total, h.Amount)
		}
		ids = append(ids, h.ID)
	})
	return total, ids
}

// GetInTimeRange returns all holdings created within [start, end] inclusive,
// preserving creation order. This is a linear scan over the full history.
func (e *Engine) GetInTimeRange(start, end int64) ([]*Holding, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if start > end {
		return nil, ErrTimeError
	}
	count := e.state.HoldingCount()
	matched := []*Holding{}
	for i := uint64(1); i < count; i++ {
		holding, ok := e.state.HoldingGet(i)
		if !ok {
			continue
		}
		if holding.CreatedAt >= start && holding.CreatedAt <= end {
			matched = append(matched, holding.Clone())
		}
	}
	return matched, nil
}

// SetBlockTime updates the time-lock duration for subsequent settlements.
func (e *Engine) SetBlockTime(caller [20]byte, seconds int64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireRole(RoleDefaultAdmin, caller); err != nil {
		return err
	}
	e.blockTime = seconds
	return nil
}

// SetFeePercent updates the percentage fee applied on subsequent settlements.
func (e *Engine) SetFeePercent(caller [20]byte, percent uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireRole(RoleDefaultAdmin, caller); err != nil {
		return err
	}
	e.feePercent = percent
	return nil
}

// SetFeeForGasAndAddress updates the fixed payout fee and its recipient.
func (e *Engine) SetFeeForGasAndAddress(caller [20]byte, amount *big.Int, addr [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireRole(RoleDefaultAdmin, caller); err != nil {
		return err
	}
	e.feeForGas = cloneBigInt(amount)
	e.feeAddress = addr
	return nil
}

// TransferFromAdmin moves value out of the vault to an arbitrary address.
// Emergency extraction, gated on the default-admin tier.
func (e *Engine) TransferFromAdmin(caller, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireRole(RoleDefaultAdmin, caller); err != nil {
		return err
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return ErrZeroAmount
	}
	if err := e.transferToken(e.vault, to, amt); err != nil {
		return err
	}
	e.emit(NewAdminTransferEvent(to, amt))
	return nil
}

// TransferWithFee forwards value between two parties, deducting the fixed gas
// fee to the fee address. The fee never exceeds the transferred amount.
func (e *Engine) TransferWithFee(from, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if to == ([20]byte{}) {
		return ErrZeroAddress
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return ErrZeroAmount
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	if ensureAccount(fromAcc).BalanceUSDT.Cmp(amt) < 0 {
		return ErrInsufficientBalance
	}
	fee := cloneBigInt(e.feeForGas)
	if fee.Cmp(amt) > 0 {
		fee = cloneBigInt(amt)
	}
	if fee.Sign() > 0 {
		if err := e.transferToken(from, e.feeAddress, fee); err != nil {
			return err
		}
	}
	forwarded := new(big.Int).Sub(amt, fee)
	if forwarded.Sign() > 0 {
		if err := e.transferToken(from, to, forwarded); err != nil {
			return err
		}
	}
	e.emit(NewFeeTransferEvent(from, to, forwarded, fee))
	return nil
}
