package boost

import "errors"

var (
	ErrZeroAmount          = errors.New("boost: zero amount")
	ErrZeroAddress         = errors.New("boost: zero address")
	ErrBoostIDEmpty        = errors.New("boost: empty boost id")
	ErrBoostIDUsed         = errors.New("boost: boost id already used")
	ErrPaused              = errors.New("boost: ledger is paused")
	ErrNotAdmin            = errors.New("boost: caller is not the sidekick wallet")
	ErrLessInputs          = errors.New("boost: recipients and amounts length mismatch")
	ErrBalanceNotZero      = errors.New("boost: custody balance not zero")
	ErrTimeError           = errors.New("boost: start time after end time")
	ErrInsufficientBalance = errors.New("boost: insufficient balance")
)
