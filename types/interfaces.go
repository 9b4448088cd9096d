package types

import (
	"context"
)

// Storage persists everything a wallet needs to be restored: the encrypted
// mnemonic, the derivation cursor and the transaction history. Getters return
// (nil, nil) when nothing has been stored yet.
type Storage interface {
	GetType() string
	GetDatadir() string
	SaveWallet(ctx context.Context, wallet EncryptedWallet) error
	GetWallet(ctx context.Context) (*EncryptedWallet, error)
	SaveState(ctx context.Context, state WalletState) error
	GetState(ctx context.Context) (*WalletState, error)
	AddTransactions(ctx context.Context, txs []TxRecord) (int, error)
	GetTransactions(ctx context.Context) ([]TxRecord, error)
	Clean(ctx context.Context) error
	Close()
}
