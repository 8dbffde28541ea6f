// Package state persists the custody ledger: accounts, holdings, boosts,
// daily-action marks and role grants, all behind a single-writer manager over
// a key-value database. Engines observe only fully committed records.
package state

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"sidekick/core/types"
	"sidekick/native/boost"
	"sidekick/native/dailyaction"
	"sidekick/native/escrow"
	"sidekick/storage"
)

const (
	keyAccountPrefix      = "account/"
	keyRolePrefix         = "role/"
	keyHoldingPrefix      = "escrow/holding/"
	keyHoldingChallenge   = "escrow/challenge/"
	keyHoldingNext        = "escrow/meta/next-id"
	keyBoostPrefix        = "boost/record/"
	keyBoostExternal      = "boost/external/"
	keyBoostNext          = "boost/meta/next-id"
	keyBoostWinnerPrefix  = "boost/winner/"
	keyDailyLastPrefix    = "daily/last/"
	keyDailyMarkPrefix    = "daily/mark/"
	keyDailyNext          = "daily/meta/next-id"
	keyTransferSeenPrefix = "transfer/seen/"
	escrowVaultDerivation = "sidekick/module/escrow/vault"
	boostVaultDerivation  = "sidekick/module/boost/vault"
)

// EscrowVaultAddress returns the module account that custodies escrow
// deposits. Derived deterministically so every node agrees without storing
// it.
func EscrowVaultAddress() [20]byte {
	return deriveVault(escrowVaultDerivation)
}

// BoostVaultAddress returns the module account that custodies the boost
// leaderboard share.
func BoostVaultAddress() [20]byte {
	return deriveVault(boostVaultDerivation)
}

func deriveVault(label string) [20]byte {
	var addr [20]byte
	digest := ethcrypto.Keccak256([]byte(label))
	copy(addr[:], digest[12:])
	return addr
}

// Ledger is the single-writer state manager. Every public method takes the
// lock, so concurrent RPC handlers serialise into a total order and no
// partially applied mutation is ever visible.
//
// Atomically additionally serialises whole multi-call operations and stages
// their writes into one database batch, so a failed operation leaves no
// partial record behind.
type Ledger struct {
	// opMu serialises Atomically transactions end-to-end; mu guards
	// individual calls and the staging map. Lock order: opMu before mu.
	opMu   sync.Mutex
	mu     sync.Mutex
	db     storage.Database
	staged map[string][]byte
}

// NewLedger wraps the supplied database.
func NewLedger(db storage.Database) *Ledger {
	return &Ledger{db: db}
}

// Atomically runs fn as one state transaction. Calls made on the ledger
// inside fn read their own staged writes; when fn returns nil every staged
// write commits in a single database batch, otherwise all of them are
// discarded.
func (l *Ledger) Atomically(fn func() error) error {
	l.opMu.Lock()
	defer l.opMu.Unlock()
	l.mu.Lock()
	l.staged = make(map[string][]byte)
	l.mu.Unlock()

	err := fn()

	l.mu.Lock()
	defer l.mu.Unlock()
	staged := l.staged
	l.staged = nil
	if err != nil {
		return err
	}
	if len(staged) == 0 {
		return nil
	}
	batch := l.db.NewBatch()
	for key, value := range staged {
		batch.Put([]byte(key), value)
	}
	return l.db.Write(batch)
}

// rawGet and rawPut route reads and writes through the staging map of the
// active transaction, if any. Both run under l.mu.
func (l *Ledger) rawGet(key string) ([]byte, bool) {
	if l.staged != nil {
		if value, ok := l.staged[key]; ok {
			return value, true
		}
	}
	raw, err := l.db.Get([]byte(key))
	if err != nil {
		// Both backends report missing keys through the error return.
		return nil, false
	}
	return raw, true
}

func (l *Ledger) rawPut(key string, value []byte) error {
	if l.staged != nil {
		l.staged[key] = value
		return nil
	}
	return l.db.Put([]byte(key), value)
}

func (l *Ledger) get(key string, out interface{}) (bool, error) {
	raw, ok := l.rawGet(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

func (l *Ledger) put(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return l.rawPut(key, raw)
}

func (l *Ledger) counter(key string) uint64 {
	raw, ok := l.rawGet(key)
	if !ok || len(raw) != 8 {
		return 1
	}
	return binary.BigEndian.Uint64(raw)
}

func (l *Ledger) setCounter(key string, value uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, value)
	return l.rawPut(key, buf)
}

func idKey(prefix string, id uint64) string {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return prefix + string(buf)
}

func hashKey(prefix, value string) string {
	return prefix + string(ethcrypto.Keccak256([]byte(value)))
}

func addrKey(prefix string, addr [20]byte) string {
	return prefix + string(addr[:])
}

// --- Accounts (Value Transfer collaborator) ---

type storedAccount struct {
	Nonce       uint64 `json:"nonce"`
	BalanceUSDT string `json:"balanceUSDT"`
}

// GetAccount loads the account for addr, returning a zero-balance account
// when none exists yet.
func (l *Ledger) GetAccount(addr []byte) (*types.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.getAccountLocked(addr)
}

func (l *Ledger) getAccountLocked(addr []byte) (*types.Account, error) {
	var stored storedAccount
	ok, err := l.get(keyAccountPrefix+string(addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &types.Account{BalanceUSDT: big.NewInt(0)}, nil
	}
	balance, valid := new(big.Int).SetString(stored.BalanceUSDT, 10)
	if !valid {
		return nil, fmt.Errorf("state: corrupt balance for account %x", addr)
	}
	return &types.Account{Nonce: stored.Nonce, BalanceUSDT: balance}, nil
}

// PutAccount persists the account for addr.
func (l *Ledger) PutAccount(addr []byte, account *types.Account) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	balance := account.BalanceUSDT
	if balance == nil {
		balance = big.NewInt(0)
	}
	if balance.Sign() < 0 {
		return fmt.Errorf("state: negative balance for account %x", addr)
	}
	return l.put(keyAccountPrefix+string(addr), storedAccount{
		Nonce:       account.Nonce,
		BalanceUSDT: balance.String(),
	})
}

// --- Roles (Access Control collaborator) ---

// GrantRole associates addr with role.
func (l *Ledger) GrantRole(role string, addr []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.put(keyRolePrefix+role+"/"+string(addr), true)
}

// RevokeRole removes the association between addr and role.
func (l *Ledger) RevokeRole(role string, addr []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.put(keyRolePrefix+role+"/"+string(addr), false)
}

// HasRole reports whether addr currently carries role.
func (l *Ledger) HasRole(role string, addr []byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	var granted bool
	ok, err := l.get(keyRolePrefix+role+"/"+string(addr), &granted)
	if err != nil || !ok {
		return false
	}
	return granted
}

// --- Escrow holdings ---

type storedHolding struct {
	ID               uint64               `json:"id"`
	ChallengeID      string               `json:"challengeId"`
	Sender           []byte               `json:"sender"`
	Recipient        []byte               `json:"recipient"`
	ServerFeeAddress []byte               `json:"serverFeeAddress"`
	Amount           string               `json:"amount"`
	ServerAmount     string               `json:"serverAmount"`
	Status           escrow.HoldingStatus `json:"status"`
	CreatedAt        int64                `json:"createdAt"`
}

// HoldingPut persists the holding and indexes its challenge identifier.
func (l *Ledger) HoldingPut(h *escrow.Holding) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	sanitized, err := escrow.SanitizeHolding(h)
	if err != nil {
		return err
	}
	stored := storedHolding{
		ID:               sanitized.ID,
		ChallengeID:      sanitized.ChallengeID,
		Sender:           sanitized.Sender[:],
		Recipient:        sanitized.Recipient[:],
		ServerFeeAddress: sanitized.ServerFeeAddress[:],
		Amount:           sanitized.Amount.String(),
		ServerAmount:     sanitized.ServerAmount.String(),
		Status:           sanitized.Status,
		CreatedAt:        sanitized.CreatedAt,
	}
	if err := l.put(idKey(keyHoldingPrefix, sanitized.ID), stored); err != nil {
		return err
	}
	if sanitized.ChallengeID != "" {
		if err := l.put(hashKey(keyHoldingChallenge, sanitized.ChallengeID), sanitized.ID); err != nil {
			return err
		}
	}
	return nil
}

// HoldingGet loads a holding by id.
func (l *Ledger) HoldingGet(id uint64) (*escrow.Holding, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var stored storedHolding
	ok, err := l.get(idKey(keyHoldingPrefix, id), &stored)
	if err != nil || !ok {
		return nil, false
	}
	holding := &escrow.Holding{
		ID:          stored.ID,
		ChallengeID: stored.ChallengeID,
		Status:      stored.Status,
		CreatedAt:   stored.CreatedAt,
	}
	copy(holding.Sender[:], stored.Sender)
	copy(holding.Recipient[:], stored.Recipient)
	copy(holding.ServerFeeAddress[:], stored.ServerFeeAddress)
	amount, okAmt := new(big.Int).SetString(stored.Amount, 10)
	serverAmount, okSrv := new(big.Int).SetString(stored.ServerAmount, 10)
	if !okAmt || !okSrv {
		return nil, false
	}
	holding.Amount = amount
	holding.ServerAmount = serverAmount
	return holding, true
}

// HoldingIDByChallenge resolves a challenge identifier to its holding id.
func (l *Ledger) HoldingIDByChallenge(challengeID string) (uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var id uint64
	ok, err := l.get(hashKey(keyHoldingChallenge, challengeID), &id)
	if err != nil || !ok {
		return 0, false
	}
	return id, true
}

// NextHoldingID allocates the next sequential holding identifier.
func (l *Ledger) NextHoldingID() (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.counter(keyHoldingNext)
	if err := l.setCounter(keyHoldingNext, id+1); err != nil {
		return 0, err
	}
	return id, nil
}

// HoldingCount returns one past the most recently allocated holding id.
func (l *Ledger) HoldingCount() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counter(keyHoldingNext)
}

// --- Boost records ---

type storedBoost struct {
	ID        uint64 `json:"id"`
	BoostID   string `json:"boostId"`
	Sender    []byte `json:"sender"`
	Recipient []byte `json:"recipient"`
	Agent     []byte `json:"agent"`
	Amount    string `json:"amount"`
	CreatedAt int64  `json:"createdAt"`
}

// BoostPut persists the boost and indexes its external identifier.
func (l *Ledger) BoostPut(b *boost.Boost) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	sanitized, err := boost.SanitizeBoost(b)
	if err != nil {
		return err
	}
	stored := storedBoost{
		ID:        sanitized.ID,
		BoostID:   sanitized.BoostID,
		Sender:    sanitized.Sender[:],
		Recipient: sanitized.Recipient[:],
		Agent:     sanitized.Agent[:],
		Amount:    sanitized.Amount.String(),
		CreatedAt: sanitized.CreatedAt,
	}
	if err := l.put(idKey(keyBoostPrefix, sanitized.ID), stored); err != nil {
		return err
	}
	if sanitized.BoostID != "" {
		if err := l.put(hashKey(keyBoostExternal, sanitized.BoostID), sanitized.ID); err != nil {
			return err
		}
	}
	return nil
}

// BoostGet loads a boost by id.
func (l *Ledger) BoostGet(id uint64) (*boost.Boost, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var stored storedBoost
	ok, err := l.get(idKey(keyBoostPrefix, id), &stored)
	if err != nil || !ok {
		return nil, false
	}
	record := &boost.Boost{
		ID:        stored.ID,
		BoostID:   stored.BoostID,
		CreatedAt: stored.CreatedAt,
	}
	copy(record.Sender[:], stored.Sender)
	copy(record.Recipient[:], stored.Recipient)
	copy(record.Agent[:], stored.Agent)
	amount, valid := new(big.Int).SetString(stored.Amount, 10)
	if !valid {
		return nil, false
	}
	record.Amount = amount
	return record, true
}

// BoostIDUsed reports whether the external boost identifier was ever used.
func (l *Ledger) BoostIDUsed(boostID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	var id uint64
	ok, err := l.get(hashKey(keyBoostExternal, boostID), &id)
	return err == nil && ok
}

// NextBoostID allocates the next sequential boost identifier.
func (l *Ledger) NextBoostID() (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.counter(keyBoostNext)
	if err := l.setCounter(keyBoostNext, id+1); err != nil {
		return 0, err
	}
	return id, nil
}

// BoostCount returns one past the most recently allocated boost id.
func (l *Ledger) BoostCount() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counter(keyBoostNext)
}

// BoostWinnerAdd accumulates a payout for one leaderboard winner.
func (l *Ledger) BoostWinnerAdd(addr [20]byte, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount == nil {
		amount = big.NewInt(0)
	}
	current := l.winnerLocked(addr)
	current.Add(current, amount)
	return l.put(addrKey(keyBoostWinnerPrefix, addr), current.String())
}

// BoostWinnerGet returns the accumulated payout for one winner.
func (l *Ledger) BoostWinnerGet(addr [20]byte) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.winnerLocked(addr)
}

func (l *Ledger) winnerLocked(addr [20]byte) *big.Int {
	var stored string
	ok, err := l.get(addrKey(keyBoostWinnerPrefix, addr), &stored)
	if err != nil || !ok {
		return big.NewInt(0)
	}
	total, valid := new(big.Int).SetString(stored, 10)
	if !valid {
		return big.NewInt(0)
	}
	return total
}

// --- Daily action marks ---

// DailyActionLast returns the timestamp of the most recent action for addr.
func (l *Ledger) DailyActionLast(addr [20]byte) (int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var ts int64
	ok, err := l.get(addrKey(keyDailyLastPrefix, addr), &ts)
	if err != nil || !ok {
		return 0, false
	}
	return ts, true
}

// DailyActionAppend records one performed action.
func (l *Ledger) DailyActionAppend(mark dailyaction.Mark) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.counter(keyDailyNext)
	if err := l.put(idKey(keyDailyMarkPrefix, id), mark); err != nil {
		return err
	}
	if err := l.setCounter(keyDailyNext, id+1); err != nil {
		return err
	}
	return l.put(addrKey(keyDailyLastPrefix, mark.Address), mark.Timestamp)
}

// DailyActionMarks returns every recorded action in append order.
func (l *Ledger) DailyActionMarks() ([]dailyaction.Mark, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	count := l.counter(keyDailyNext)
	marks := make([]dailyaction.Mark, 0, count-1)
	for i := uint64(1); i < count; i++ {
		var mark dailyaction.Mark
		ok, err := l.get(idKey(keyDailyMarkPrefix, i), &mark)
		if err != nil {
			return nil, err
		}
		if ok {
			marks = append(marks, mark)
		}
	}
	return marks, nil
}

// --- Transfer forwarder recipients ---

// TransferRecipientSeen reports whether addr has received a forward before.
func (l *Ledger) TransferRecipientSeen(addr [20]byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	var seen bool
	ok, err := l.get(addrKey(keyTransferSeenPrefix, addr), &seen)
	return err == nil && ok && seen
}

// TransferRecipientMark records addr as a served recipient.
func (l *Ledger) TransferRecipientMark(addr [20]byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.put(addrKey(keyTransferSeenPrefix, addr), true)
}
