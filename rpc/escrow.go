package rpc

import (
	"fmt"
	"math/big"
	"strings"

	"sidekick/native/escrow"
)

// HoldingResult is the RPC representation of one escrowed holding.
type HoldingResult struct {
	ID               uint64 `json:"id"`
	ChallengeID      string `json:"challengeId"`
	Sender           string `json:"sender"`
	Recipient        string `json:"recipient"`
	ServerFeeAddress string `json:"serverFeeAddress"`
	Amount           string `json:"amount"`
	ServerAmount     string `json:"serverAmount"`
	Status           string `json:"status"`
	CreatedAt        int64  `json:"createdAt"`
}

func statusString(status escrow.HoldingStatus) string {
	switch status {
	case escrow.StatusInProgress:
		return "inProgress"
	case escrow.StatusProcessed:
		return "processed"
	case escrow.StatusRefunded:
		return "refunded"
	default:
		return fmt.Sprintf("unknown(%d)", status)
	}
}

func parseStatus(value string) (escrow.HoldingStatus, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "inprogress":
		return escrow.StatusInProgress, nil
	case "processed":
		return escrow.StatusProcessed, nil
	case "refunded":
		return escrow.StatusRefunded, nil
	default:
		return 0, fmt.Errorf("invalid status %q", value)
	}
}

func holdingResult(h *escrow.Holding) *HoldingResult {
	if h == nil {
		return nil
	}
	return &HoldingResult{
		ID:               h.ID,
		ChallengeID:      h.ChallengeID,
		Sender:           formatAddress(h.Sender),
		Recipient:        formatAddress(h.Recipient),
		ServerFeeAddress: formatAddress(h.ServerFeeAddress),
		Amount:           h.Amount.String(),
		ServerAmount:     h.ServerAmount.String(),
		Status:           statusString(h.Status),
		CreatedAt:        h.CreatedAt,
	}
}

type createHoldingParams struct {
	Sender           string `json:"sender"`
	Recipient        string `json:"recipient"`
	ServerFeeAddress string `json:"serverFeeAddress,omitempty"`
	Amount           string `json:"amount"`
	ServerAmount     string `json:"serverAmount,omitempty"`
	ChallengeID      string `json:"challengeId"`
}

func (s *Server) handleEscrowCreateHolding(req *RPCRequest) (interface{}, *RPCError) {
	var params createHoldingParams
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
	var serverFeeAddr [20]byte
	if params.ServerFeeAddress != "" {
		if serverFeeAddr, err = parseAddress(params.ServerFeeAddress); err != nil {
			return nil, invalidParams("serverFeeAddress", err.Error())
		}
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, invalidParams("amount", err.Error())
	}
	serverAmount := big.NewInt(0)
	if params.ServerAmount != "" {
		if serverAmount, err = parseAmount(params.ServerAmount); err != nil {
			return nil, invalidParams("serverAmount", err.Error())
		}
	}
	var holding *escrow.Holding
	err = s.ledger.Atomically(func() error {
		var opErr error
		holding, opErr = s.escrow.CreateHolding(sender, recipient, amount, params.ChallengeID, serverFeeAddr, serverAmount)
		return opErr
	})
	if err != nil {
		return nil, serverError(err)
	}
	return holdingResult(holding), nil
}

type decideParams struct {
	Caller  string `json:"caller"`
	ID      uint64 `json:"id"`
	Outcome string `json:"outcome"`
}

func (s *Server) handleEscrowDecide(req *RPCRequest) (interface{}, *RPCError) {
	var params decideParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, invalidParams("caller", err.Error())
	}
	outcome, err := parseStatus(params.Outcome)
	if err != nil {
		return nil, invalidParams("outcome", err.Error())
	}
	if err := s.ledger.Atomically(func() error {
		return s.escrow.Decide(caller, params.ID, outcome)
	}); err != nil {
		return nil, serverError(err)
	}
	return map[string]bool{"ok": true}, nil
}

type settleParams struct {
	Caller string `json:"caller"`
	ID     uint64 `json:"id"`
}

func (s *Server) handleEscrowSettle(req *RPCRequest) (interface{}, *RPCError) {
	var params settleParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, invalidParams("caller", err.Error())
	}
	if err := s.ledger.Atomically(func() error {
		return s.escrow.Settle(caller, params.ID)
	}); err != nil {
		return nil, serverError(err)
	}
	return map[string]bool{"ok": true}, nil
}

type getHoldingParams struct {
	ID uint64 `json:"id"`
}

func (s *Server) handleEscrowGetHolding(req *RPCRequest) (interface{}, *RPCError) {
	var params getHoldingParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	holding, ok := s.escrow.GetHolding(params.ID)
	if !ok {
		return nil, &RPCError{Code: codeServerError, Message: escrow.ErrHoldingNotFound.Error()}
	}
	return holdingResult(holding), nil
}

type getByChallengeParams struct {
	ChallengeID string `json:"challengeId"`
}

func (s *Server) handleEscrowGetByChallengeID(req *RPCRequest) (interface{}, *RPCError) {
	var params getByChallengeParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	return holdingResult(s.escrow.GetByChallengeID(params.ChallengeID)), nil
}

type totalParams struct {
	Address    string `json:"address"`
	Role       string `json:"role"`
	StartIndex uint64 `json:"startIndex"`
	PageSize   uint64 `json:"pageSize"`
}

func (s *Server) handleEscrowTotal(req *RPCRequest) (interface{}, *RPCError) {
	var params totalParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		return nil, invalidParams("address", err.Error())
	}
	var role escrow.Role
	switch strings.TrimSpace(strings.ToLower(params.Role)) {
	case "sender":
		role = escrow.RoleSender
	case "recipient":
		role = escrow.RoleRecipient
	default:
		return nil, invalidParams("role", fmt.Sprintf("invalid role %q", params.Role))
	}
	total := s.escrow.Total(addr, role, params.StartIndex, params.PageSize)
	return map[string]string{"total": total.String()}, nil
}

type redeemableParams struct {
	Address    string `json:"address"`
	StartIndex uint64 `json:"startIndex"`
	PageSize   uint64 `json:"pageSize"`
}

func (s *Server) handleEscrowRedeemable(req *RPCRequest) (interface{}, *RPCError) {
	var params redeemableParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		return nil, invalidParams("address", err.Error())
	}
	total, ids := s.escrow.Redeemable(addr, params.StartIndex, params.PageSize)
	if ids == nil {
		ids = []uint64{}
	}
	return map[string]interface{}{"total": total.String(), "ids": ids}, nil
}

type timeRangeParams struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

func (s *Server) handleEscrowGetInTimeRange(req *RPCRequest) (interface{}, *RPCError) {
	var params timeRangeParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	holdings, err := s.escrow.GetInTimeRange(params.Start, params.End)
	if err != nil {
		return nil, serverError(err)
	}
	results := make([]*HoldingResult, 0, len(holdings))
	for _, h := range holdings {
		results = append(results, holdingResult(h))
	}
	return results, nil
}

func (s *Server) handleEscrowConfig(req *RPCRequest) (interface{}, *RPCError) {
	return map[string]interface{}{
		"blockTime":  s.escrow.BlockTime(),
		"feePercent": s.escrow.FeePercent(),
		"feeForGas":  s.escrow.FeeForGas().String(),
		"feeAddress": formatAddress(s.escrow.FeeAddress()),
	}, nil
}

type setBlockTimeParams struct {
	Caller  string `json:"caller"`
	Seconds int64  `json:"seconds"`
}

func (s *Server) handleEscrowSetBlockTime(req *RPCRequest) (interface{}, *RPCError) {
	var params setBlockTimeParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, invalidParams("caller", err.Error())
	}
	if err := s.escrow.SetBlockTime(caller, params.Seconds); err != nil {
		return nil, serverError(err)
	}
	return map[string]bool{"ok": true}, nil
}

type setFeePercentParams struct {
	Caller  string `json:"caller"`
	Percent uint64 `json:"percent"`
}

func (s *Server) handleEscrowSetFeePercent(req *RPCRequest) (interface{}, *RPCError) {
	var params setFeePercentParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, invalidParams("caller", err.Error())
	}
	if err := s.escrow.SetFeePercent(caller, params.Percent); err != nil {
		return nil, serverError(err)
	}
	return map[string]bool{"ok": true}, nil
}

type setFeeForGasParams struct {
	Caller  string `json:"caller"`
	Amount  string `json:"amount"`
	Address string `json:"address"`
}

func (s *Server) handleEscrowSetFeeForGasAndAddress(req *RPCRequest) (interface{}, *RPCError) {
	var params setFeeForGasParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, invalidParams("caller", err.Error())
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, invalidParams("amount", err.Error())
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		return nil, invalidParams("address", err.Error())
	}
	if err := s.escrow.SetFeeForGasAndAddress(caller, amount, addr); err != nil {
		return nil, serverError(err)
	}
	return map[string]bool{"ok": true}, nil
}

type adminTransferParams struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleEscrowTransferFromAdmin(req *RPCRequest) (interface{}, *RPCError) {
	var params adminTransferParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, invalidParams("caller", err.Error())
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
		return s.escrow.TransferFromAdmin(caller, to, amount)
	}); err != nil {
		return nil, serverError(err)
	}
	return map[string]bool{"ok": true}, nil
}

type feeTransferParams struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleEscrowTransferWithFee(req *RPCRequest) (interface{}, *RPCError) {
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
		return s.escrow.TransferWithFee(from, to, amount)
	}); err != nil {
		return nil, serverError(err)
	}
	return map[string]bool{"ok": true}, nil
}
