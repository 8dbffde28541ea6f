package rpc

import (
	"math/big"

	"sidekick/native/boost"
)

// BoostResult is the RPC representation of one referral boost.
type BoostResult struct {
	ID        uint64 `json:"id"`
	BoostID   string `json:"boostId"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Agent     string `json:"agent"`
	Amount    string `json:"amount"`
	CreatedAt int64  `json:"createdAt"`
}

func boostResult(b *boost.Boost) *BoostResult {
	if b == nil {
		return nil
	}
	return &BoostResult{
		ID:        b.ID,
		BoostID:   b.BoostID,
		Sender:    formatAddress(b.Sender),
		Recipient: formatAddress(b.Recipient),
		Agent:     formatAddress(b.Agent),
		Amount:    b.Amount.String(),
		CreatedAt: b.CreatedAt,
	}
}

type boostParams struct {
	BoostID   string `json:"boostId"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Agent     string `json:"agent"`
	Amount    string `json:"amount"`
}

func (s *Server) handleBoostBoost(req *RPCRequest) (interface{}, *RPCError) {
	var params boostParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	sender, err := parseAddress(params.Sender)
	if err != nil {
		return nil, invalidParams("sender", err.Error())
	}
	recipient, err := parseAddress(params.Recipient)
	if err != nil {
		return nil, invalidParams("recipient", err.Error())
	}
	agent, err := parseAddress(params.Agent)
	if err != nil {
		return nil, invalidParams("agent", err.Error())
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, invalidParams("amount", err.Error())
	}
	var record *boost.Boost
	err = s.ledger.Atomically(func() error {
		var opErr error
		record, opErr = s.boost.Boost(sender, recipient, agent, amount, params.BoostID)
		return opErr
	})
	if err != nil {
		return nil, serverError(err)
	}
	return boostResult(record), nil
}

type payToParams struct {
	Caller     string   `json:"caller"`
	Recipients []string `json:"recipients"`
	Amounts    []string `json:"amounts"`
}

func (s *Server) handleBoostPayTo(req *RPCRequest) (interface{}, *RPCError) {
	var params payToParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, invalidParams("caller", err.Error())
	}
	recipients := make([][20]byte, 0, len(params.Recipients))
	for _, raw := range params.Recipients {
		addr, err := parseAddress(raw)
		if err != nil {
			return nil, invalidParams("recipients", err.Error())
		}
		recipients = append(recipients, addr)
	}
	amounts := make([]*big.Int, 0, len(params.Amounts))
	for _, raw := range params.Amounts {
		amount, err := parseAmount(raw)
		if err != nil {
			return nil, invalidParams("amounts", err.Error())
		}
		amounts = append(amounts, amount)
	}
	if err := s.ledger.Atomically(func() error {
		return s.boost.PayTo(caller, recipients, amounts)
	}); err != nil {
		return nil, serverError(err)
	}
	return map[string]bool{"ok": true}, nil
}

type callerParams struct {
	Caller string `json:"caller"`
}

func (s *Server) handleBoostResetLeaderboard(req *RPCRequest) (interface{}, *RPCError) {
	var params callerParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, invalidParams("caller", err.Error())
	}
	if err := s.ledger.Atomically(func() error {
		return s.boost.ResetLeaderboard(caller)
	}); err != nil {
		return nil, serverError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleBoostGetInTimeRange(req *RPCRequest) (interface{}, *RPCError) {
	var params timeRangeParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	records, err := s.boost.GetInTimeRange(params.Start, params.End)
	if err != nil {
		return nil, serverError(err)
	}
	results := make([]*BoostResult, 0, len(records))
	for _, record := range records {
		results = append(results, boostResult(record))
	}
	return results, nil
}

func (s *Server) handleBoostStats(req *RPCRequest) (interface{}, *RPCError) {
	return map[string]interface{}{
		"sidekickWallet":         formatAddress(s.boost.SidekickWallet()),
		"sidekickPercentage":     s.boost.SidekickPercentage(),
		"paused":                 s.boost.Paused(),
		"totalAmount":            s.boost.TotalAmount().String(),
		"totalLeaderboardAmount": s.boost.TotalLeaderboardAmount().String(),
	}, nil
}

type addressParams struct {
	Address string `json:"address"`
}

func (s *Server) handleBoostWinnerTotal(req *RPCRequest) (interface{}, *RPCError) {
	var params addressParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		return nil, invalidParams("address", err.Error())
	}
	return map[string]string{"total": s.boost.WinnerTotal(addr).String()}, nil
}

type percentageParams struct {
	Caller     string `json:"caller"`
	Percentage uint64 `json:"percentage"`
}

func (s *Server) handleBoostSetSidekickPercentage(req *RPCRequest) (interface{}, *RPCError) {
	var params percentageParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, invalidParams("caller", err.Error())
	}
	if err := s.boost.ChangeSidekickPercentage(caller, params.Percentage); err != nil {
		return nil, serverError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleBoostTogglePause(req *RPCRequest) (interface{}, *RPCError) {
	var params callerParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, invalidParams("caller", err.Error())
	}
	if err := s.boost.ChangePause(caller); err != nil {
		return nil, serverError(err)
	}
	return map[string]bool{"paused": s.boost.Paused()}, nil
}

type walletParams struct {
	Caller string `json:"caller"`
	Wallet string `json:"wallet"`
}

func (s *Server) handleBoostSetSidekickWallet(req *RPCRequest) (interface{}, *RPCError) {
	var params walletParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, invalidParams("caller", err.Error())
	}
	wallet, err := parseAddress(params.Wallet)
	if err != nil {
		return nil, invalidParams("wallet", err.Error())
	}
	if err := s.boost.ChangeSidekickWallet(caller, wallet); err != nil {
		return nil, serverError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleDailyPerform(req *RPCRequest) (interface{}, *RPCError) {
	var params addressParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		return nil, invalidParams("address", err.Error())
	}
	if err := s.ledger.Atomically(func() error {
		return s.daily.Perform(addr)
	}); err != nil {
		return nil, serverError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleDailyUniqueInPeriod(req *RPCRequest) (interface{}, *RPCError) {
	var params timeRangeParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	total, err := s.daily.UniqueInPeriod(params.Start, params.End)
	if err != nil {
		return nil, serverError(err)
	}
	return map[string]uint64{"unique": total}, nil
}

func (s *Server) handleTransferSend(req *RPCRequest) (interface{}, *RPCError) {
	var params feeTransferParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	from, err := parseAddress(params.From)
	if err != nil {
		return nil, invalidParams("from", err.Error())
	}
	to, err := parseAddress(params.To)
	if err != nil {
		return nil, invalidParams("to", err.Error())
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, invalidParams("amount", err.Error())
	}
	if err := s.ledger.Atomically(func() error {
		return s.transfer.Send(from, to, amount)
	}); err != nil {
		return nil, serverError(err)
	}
	return map[string]bool{"ok": true}, nil
}

type transferFeeParams struct {
	Caller string `json:"caller"`
	Bps    uint64 `json:"bps"`
}

func (s *Server) handleTransferSetFeePercentage(req *RPCRequest) (interface{}, *RPCError) {
	var params transferFeeParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, invalidParams("caller", err.Error())
	}
	if err := s.transfer.SetFeePercentage(caller, params.Bps); err != nil {
		return nil, serverError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleTransferStats(req *RPCRequest) (interface{}, *RPCError) {
	return map[string]interface{}{
		"adminWallet":       formatAddress(s.transfer.AdminWallet()),
		"feePercentage":     s.transfer.FeePercentage(),
		"totalSent":         s.transfer.TotalSent().String(),
		"uniqueWalletCount": s.transfer.UniqueWalletCount(),
		"totalTransfers":    s.transfer.TotalTransfers(),
	}, nil
}

func (s *Server) handleAccountGetBalance(req *RPCRequest) (interface{}, *RPCError) {
	var params addressParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		return nil, invalidParams("address", err.Error())
	}
	account, err := s.ledger.GetAccount(addr[:])
	if err != nil {
		return nil, serverError(err)
	}
	return map[string]interface{}{
		"address":     formatAddress(addr),
		"balanceUSDT": account.BalanceUSDT.String(),
		"nonce":       account.Nonce,
	}, nil
}

type eventsParams struct {
	Prefix string `json:"prefix,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// EventResult is one emitted engine event.
type EventResult struct {
	Sequence   int64             `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func (s *Server) handleGetEvents(req *RPCRequest) (interface{}, *RPCError) {
	var params eventsParams
	if len(req.Params) > 0 {
		if rpcErr := decodeParams(req, &params); rpcErr != nil {
			return nil, rpcErr
		}
	}
	collected := s.collector.List(params.Prefix, params.Limit)
	results := make([]EventResult, 0, len(collected))
	for _, evt := range collected {
		result := EventResult{Sequence: evt.Sequence, Type: evt.Type}
		if evt.Event != nil {
			result.Attributes = evt.Event.Attributes
		}
		results = append(results, result)
	}
	return results, nil
}
