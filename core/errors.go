package core

import (
	"errors"

	"github.com/cryptix-network/cryptix-wallet-go/internal/utils"
)

var (
	ErrMissingRPC        = errors.New("wallet has no rpc client, use WithRPC")
	ErrMissingStorage    = errors.New("wallet has no storage, use WithStorage")
	ErrInvalidMnemonic   = errors.New("invalid mnemonic")
	ErrInvalidAddress    = errors.New("invalid address")
	ErrWalletNotFound    = errors.New("no wallet found in storage")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrWalletClosed      = errors.New("wallet closed")
	ErrUnknownNetwork    = errors.New("unknown network")
	ErrWrongPassword     = utils.ErrWrongPassword
)
