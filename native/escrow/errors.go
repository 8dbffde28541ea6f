package escrow

import "errors"

var (
	ErrZeroAmount               = errors.New("escrow: zero amount")
	ErrZeroAddress              = errors.New("escrow: zero address")
	ErrEmptyChallengeID         = errors.New("escrow: empty challenge id")
	ErrDuplicateChallengeID     = errors.New("escrow: duplicate challenge id")
	ErrServerAmountExceedsLimit = errors.New("escrow: server amount exceeds holding amount")
	ErrNotStatus                = errors.New("escrow: holding status does not permit the operation")
	ErrNotTime                  = errors.New("escrow: time lock has not elapsed")
	ErrTimeError                = errors.New("escrow: start time after end time")
	ErrTransferError            = errors.New("escrow: nothing to transfer")
	ErrNotAdmin                 = errors.New("escrow: caller missing required role")
	ErrHoldingNotFound          = errors.New("escrow: holding not found")
	ErrInsufficientBalance      = errors.New("escrow: insufficient balance")
)
