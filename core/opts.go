package core

import (
	"github.com/cryptix-network/cryptix-wallet-go/types"
	"github.com/cryptix-network/cryptix-wallet-go/types/rpc"
	"github.com/sirupsen/logrus"
)

type WalletOption func(*Wallet)

// WithRPC connects the wallet to a node; required by Sync, Subscribe and
// SubmitTransaction.
func WithRPC(client rpc.Client) WalletOption {
	return func(w *Wallet) {
		w.rpc = client
	}
}

// WithStorage sets where Save and the sync state persist.
func WithStorage(storage types.Storage) WalletOption {
	return func(w *Wallet) {
		w.storage = storage
	}
}

func WithLogger(logger *logrus.Entry) WalletOption {
	return func(w *Wallet) {
		if logger != nil {
			w.log = logger
		}
	}
}

// WithDiscoveryGap sets how many consecutive unused addresses end address
// discovery. Default: AddressDiscoveryGap.
func WithDiscoveryGap(gap uint32) WalletOption {
	return func(w *Wallet) {
		if gap > 0 {
			w.discoveryGap = gap
		}
	}
}
