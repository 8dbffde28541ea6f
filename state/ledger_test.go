package state

import (
	"bytes"
	"errors"
	"math/big"
	"sync"
	"testing"

	"sidekick/core/types"
	"sidekick/native/boost"
	"sidekick/native/dailyaction"
	"sidekick/native/escrow"
	"sidekick/storage"
)

func newTestLedger() *Ledger {
	return NewLedger(storage.NewMemDB())
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func TestVaultAddressesAreStableAndDistinct(t *testing.T) {
	escrowVault := EscrowVaultAddress()
	if escrowVault != EscrowVaultAddress() {
		t.Fatalf("escrow vault derivation not deterministic")
	}
	if escrowVault == BoostVaultAddress() {
		t.Fatalf("module vaults must not collide")
	}
	if escrowVault == ([20]byte{}) {
		t.Fatalf("vault derived to the zero address")
	}
}

func TestAccountRoundTrip(t *testing.T) {
	ledger := newTestLedger()
	addr := newTestAddress(0x01)

	acc, err := ledger.GetAccount(addr[:])
	if err != nil {
		t.Fatalf("get fresh account: %v", err)
	}
	if acc.BalanceUSDT.Sign() != 0 || acc.Nonce != 0 {
		t.Fatalf("fresh account must be zero valued")
	}

	acc.Nonce = 3
	acc.BalanceUSDT = big.NewInt(1_500)
	if err := ledger.PutAccount(addr[:], acc); err != nil {
		t.Fatalf("put account: %v", err)
	}
	loaded, err := ledger.GetAccount(addr[:])
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if loaded.Nonce != 3 || loaded.BalanceUSDT.Cmp(big.NewInt(1_500)) != 0 {
		t.Fatalf("loaded = nonce %d balance %s", loaded.Nonce, loaded.BalanceUSDT)
	}

	if err := ledger.PutAccount(addr[:], &types.Account{BalanceUSDT: big.NewInt(-1)}); err == nil {
		t.Fatalf("negative balance must be rejected")
	}
}

func TestRoleGrantRevoke(t *testing.T) {
	ledger := newTestLedger()
	admin := newTestAddress(0x0A)

	if ledger.HasRole("ROLE_ADMIN", admin[:]) {
		t.Fatalf("role present before grant")
	}
	if err := ledger.GrantRole("ROLE_ADMIN", admin[:]); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if !ledger.HasRole("ROLE_ADMIN", admin[:]) {
		t.Fatalf("role missing after grant")
	}
	if ledger.HasRole("ROLE_DEFAULT_ADMIN", admin[:]) {
		t.Fatalf("grant leaked into another role")
	}
	if err := ledger.RevokeRole("ROLE_ADMIN", admin[:]); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ledger.HasRole("ROLE_ADMIN", admin[:]) {
		t.Fatalf("role present after revoke")
	}
}

func TestHoldingPersistence(t *testing.T) {
	ledger := newTestLedger()

	id, err := ledger.NextHoldingID()
	if err != nil {
		t.Fatalf("next id: %v", err)
	}
	if id != 1 {
		t.Fatalf("first id = %d, want 1", id)
	}
	holding := &escrow.Holding{
		ID:           id,
		ChallengeID:  "challenge-1",
		Sender:       newTestAddress(0x01),
		Recipient:    newTestAddress(0x02),
		Amount:       big.NewInt(1_000),
		ServerAmount: big.NewInt(0),
		Status:       escrow.StatusInProgress,
		CreatedAt:    42,
	}
	if err := ledger.HoldingPut(holding); err != nil {
		t.Fatalf("put holding: %v", err)
	}

	loaded, ok := ledger.HoldingGet(id)
	if !ok {
		t.Fatalf("holding not found after put")
	}
	if loaded.ChallengeID != "challenge-1" || loaded.Amount.Cmp(big.NewInt(1_000)) != 0 ||
		loaded.Sender != holding.Sender || loaded.CreatedAt != 42 {
		t.Fatalf("loaded holding mismatch: %+v", loaded)
	}

	byChallenge, ok := ledger.HoldingIDByChallenge("challenge-1")
	if !ok || byChallenge != id {
		t.Fatalf("challenge index = (%d, %v)", byChallenge, ok)
	}
	if _, ok := ledger.HoldingIDByChallenge("unknown"); ok {
		t.Fatalf("unknown challenge resolved")
	}
	if _, ok := ledger.HoldingGet(99); ok {
		t.Fatalf("missing id resolved")
	}
	if ledger.HoldingCount() != 2 {
		t.Fatalf("count = %d, want 2", ledger.HoldingCount())
	}
}

func TestBoostPersistence(t *testing.T) {
	ledger := newTestLedger()

	id, err := ledger.NextBoostID()
	if err != nil {
		t.Fatalf("next id: %v", err)
	}
	record := &boost.Boost{
		ID:        id,
		BoostID:   "boost-1",
		Sender:    newTestAddress(0x01),
		Recipient: newTestAddress(0x02),
		Agent:     newTestAddress(0x03),
		Amount:    big.NewInt(950),
		CreatedAt: 7,
	}
	if err := ledger.BoostPut(record); err != nil {
		t.Fatalf("put boost: %v", err)
	}
	loaded, ok := ledger.BoostGet(id)
	if !ok || loaded.BoostID != "boost-1" || loaded.Amount.Cmp(big.NewInt(950)) != 0 {
		t.Fatalf("loaded boost mismatch: %+v ok=%v", loaded, ok)
	}
	if !ledger.BoostIDUsed("boost-1") || ledger.BoostIDUsed("boost-2") {
		t.Fatalf("external id index wrong")
	}

	winner := newTestAddress(0x04)
	if err := ledger.BoostWinnerAdd(winner, big.NewInt(100)); err != nil {
		t.Fatalf("winner add: %v", err)
	}
	if err := ledger.BoostWinnerAdd(winner, big.NewInt(25)); err != nil {
		t.Fatalf("winner add: %v", err)
	}
	if got := ledger.BoostWinnerGet(winner); got.Cmp(big.NewInt(125)) != 0 {
		t.Fatalf("winner total = %s, want 125", got)
	}
}

func TestDailyActionMarks(t *testing.T) {
	ledger := newTestLedger()
	user := newTestAddress(0x01)

	if _, ok := ledger.DailyActionLast(user); ok {
		t.Fatalf("mark present before append")
	}
	marks := []dailyaction.Mark{
		{Address: user, Timestamp: 100},
		{Address: newTestAddress(0x02), Timestamp: 200},
		{Address: user, Timestamp: 300},
	}
	for _, mark := range marks {
		if err := ledger.DailyActionAppend(mark); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	last, ok := ledger.DailyActionLast(user)
	if !ok || last != 300 {
		t.Fatalf("last = (%d, %v), want 300", last, ok)
	}
	loaded, err := ledger.DailyActionMarks()
	if err != nil {
		t.Fatalf("marks: %v", err)
	}
	if len(loaded) != 3 || loaded[0].Timestamp != 100 || loaded[2].Timestamp != 300 {
		t.Fatalf("marks = %+v", loaded)
	}
}

func TestTransferRecipientTracking(t *testing.T) {
	ledger := newTestLedger()
	addr := newTestAddress(0x01)

	if ledger.TransferRecipientSeen(addr) {
		t.Fatalf("recipient seen before mark")
	}
	if err := ledger.TransferRecipientMark(addr); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if !ledger.TransferRecipientSeen(addr) {
		t.Fatalf("recipient not seen after mark")
	}
}

// The escrow engine must run unmodified on top of the persistent ledger, not
// just the in-package mocks.
func TestEscrowEngineOverLedger(t *testing.T) {
	ledger := newTestLedger()
	vault := EscrowVaultAddress()
	feeAddr := newTestAddress(0xFE)
	admin := newTestAddress(0x0A)
	sender := newTestAddress(0x01)
	recipient := newTestAddress(0x02)

	if err := ledger.GrantRole("ROLE_ADMIN", admin[:]); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := ledger.PutAccount(sender[:], &types.Account{BalanceUSDT: big.NewInt(10_000)}); err != nil {
		t.Fatalf("fund sender: %v", err)
	}

	engine := escrow.NewEngine()
	engine.SetState(ledger)
	engine.SetVaultAddress(vault)
	now := int64(1_000_000)
	engine.SetNowFunc(func() int64 { return now })
	engine.Configure(60, 0, big.NewInt(1), feeAddr)

	holding, err := engine.CreateHolding(sender, recipient, big.NewInt(1_000), "match-1", [20]byte{}, big.NewInt(0))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := holding.ID
	vaultAcc, err := ledger.GetAccount(vault[:])
	if err != nil {
		t.Fatalf("vault account: %v", err)
	}
	if vaultAcc.BalanceUSDT.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("vault = %s after create", vaultAcc.BalanceUSDT)
	}

	now += 61
	if err := engine.Settle(admin, id); err != nil {
		t.Fatalf("settle: %v", err)
	}
	recAcc, err := ledger.GetAccount(recipient[:])
	if err != nil {
		t.Fatalf("recipient account: %v", err)
	}
	if recAcc.BalanceUSDT.Cmp(big.NewInt(999)) != 0 {
		t.Fatalf("recipient = %s, want 999", recAcc.BalanceUSDT)
	}
	settled, ok := ledger.HoldingGet(id)
	if !ok || settled.Status != escrow.StatusProcessed || settled.Amount.Sign() != 0 {
		t.Fatalf("settled holding = %+v ok=%v", settled, ok)
	}
}

// Settlement must pay out exactly once even when several admins race on the
// same holding.
func TestConcurrentSettlePaysOutOnce(t *testing.T) {
	ledger := newTestLedger()
	vault := EscrowVaultAddress()
	admin := newTestAddress(0x0A)
	sender := newTestAddress(0x01)
	recipient := newTestAddress(0x02)

	if err := ledger.GrantRole("ROLE_ADMIN", admin[:]); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := ledger.PutAccount(sender[:], &types.Account{BalanceUSDT: big.NewInt(1_000)}); err != nil {
		t.Fatalf("fund sender: %v", err)
	}

	engine := escrow.NewEngine()
	engine.SetState(ledger)
	engine.SetVaultAddress(vault)
	now := int64(1_000_000)
	engine.SetNowFunc(func() int64 { return now })
	engine.Configure(60, 0, big.NewInt(1), newTestAddress(0xFE))

	holding, err := engine.CreateHolding(sender, recipient, big.NewInt(1_000), "match-1", [20]byte{}, big.NewInt(0))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	now += 61

	const rivals = 8
	results := make(chan error, rivals)
	var wg sync.WaitGroup
	for i := 0; i < rivals; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- engine.Settle(admin, holding.ID)
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, escrow.ErrNotStatus):
		default:
			t.Fatalf("unexpected settle error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("settle succeeded %d times, want exactly 1", succeeded)
	}

	recAcc, err := ledger.GetAccount(recipient[:])
	if err != nil {
		t.Fatalf("recipient account: %v", err)
	}
	if recAcc.BalanceUSDT.Cmp(big.NewInt(999)) != 0 {
		t.Fatalf("recipient = %s, want single payout of 999", recAcc.BalanceUSDT)
	}
}

// Two racing creations with the same challenge id must not both pass the
// duplicate check.
func TestConcurrentCreateHoldingSameChallenge(t *testing.T) {
	ledger := newTestLedger()
	sender := newTestAddress(0x01)
	recipient := newTestAddress(0x02)

	if err := ledger.PutAccount(sender[:], &types.Account{BalanceUSDT: big.NewInt(10_000)}); err != nil {
		t.Fatalf("fund sender: %v", err)
	}

	engine := escrow.NewEngine()
	engine.SetState(ledger)
	engine.SetVaultAddress(EscrowVaultAddress())
	engine.SetNowFunc(func() int64 { return 1_000_000 })
	engine.Configure(60, 0, big.NewInt(0), newTestAddress(0xFE))

	const rivals = 8
	results := make(chan error, rivals)
	var wg sync.WaitGroup
	for i := 0; i < rivals; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.CreateHolding(sender, recipient, big.NewInt(1_000), "match-1", [20]byte{}, big.NewInt(0))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, escrow.ErrDuplicateChallengeID):
		default:
			t.Fatalf("unexpected create error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("create succeeded %d times, want exactly 1", succeeded)
	}

	senderAcc, err := ledger.GetAccount(sender[:])
	if err != nil {
		t.Fatalf("sender account: %v", err)
	}
	if senderAcc.BalanceUSDT.Cmp(big.NewInt(9_000)) != 0 {
		t.Fatalf("sender = %s, want a single 1000 debit", senderAcc.BalanceUSDT)
	}
}

func TestAtomicallyCommitsAndDiscards(t *testing.T) {
	ledger := newTestLedger()
	addr := newTestAddress(0x01)
	boom := errors.New("boom")

	err := ledger.Atomically(func() error {
		if err := ledger.PutAccount(addr[:], &types.Account{BalanceUSDT: big.NewInt(500)}); err != nil {
			return err
		}
		// Writes must be visible inside the transaction.
		acc, err := ledger.GetAccount(addr[:])
		if err != nil {
			return err
		}
		if acc.BalanceUSDT.Cmp(big.NewInt(500)) != 0 {
			t.Fatalf("staged write invisible inside transaction: %s", acc.BalanceUSDT)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
	acc, err := ledger.GetAccount(addr[:])
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if acc.BalanceUSDT.Sign() != 0 {
		t.Fatalf("failed transaction leaked a write: %s", acc.BalanceUSDT)
	}

	if err := ledger.Atomically(func() error {
		return ledger.PutAccount(addr[:], &types.Account{BalanceUSDT: big.NewInt(500)})
	}); err != nil {
		t.Fatalf("atomically: %v", err)
	}
	acc, err = ledger.GetAccount(addr[:])
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if acc.BalanceUSDT.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("committed balance = %s, want 500", acc.BalanceUSDT)
	}
}

// A settlement inside a transaction must leave no trace when a later leg
// cannot commit.
func TestAtomicSettleLeavesNoPartialState(t *testing.T) {
	ledger := newTestLedger()
	vault := EscrowVaultAddress()
	admin := newTestAddress(0x0A)
	sender := newTestAddress(0x01)
	recipient := newTestAddress(0x02)
	boom := errors.New("write rejected")

	if err := ledger.GrantRole("ROLE_ADMIN", admin[:]); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := ledger.PutAccount(sender[:], &types.Account{BalanceUSDT: big.NewInt(1_000)}); err != nil {
		t.Fatalf("fund sender: %v", err)
	}

	engine := escrow.NewEngine()
	engine.SetState(ledger)
	engine.SetVaultAddress(vault)
	now := int64(1_000_000)
	engine.SetNowFunc(func() int64 { return now })
	engine.Configure(60, 0, big.NewInt(1), newTestAddress(0xFE))

	holding, err := engine.CreateHolding(sender, recipient, big.NewInt(1_000), "match-1", [20]byte{}, big.NewInt(0))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	now += 61

	err = ledger.Atomically(func() error {
		if err := engine.Settle(admin, holding.ID); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want write rejected", err)
	}

	after, ok := ledger.HoldingGet(holding.ID)
	if !ok || after.Status != escrow.StatusInProgress || after.Amount.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("holding after aborted settle = %+v ok=%v", after, ok)
	}
	recAcc, err := ledger.GetAccount(recipient[:])
	if err != nil {
		t.Fatalf("recipient account: %v", err)
	}
	if recAcc.BalanceUSDT.Sign() != 0 {
		t.Fatalf("aborted settle paid the recipient: %s", recAcc.BalanceUSDT)
	}
}
