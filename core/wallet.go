package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cryptix-network/cryptix-wallet-go/internal/utils"
	"github.com/cryptix-network/cryptix-wallet-go/types"
	"github.com/cryptix-network/cryptix-wallet-go/types/rpc"
	"github.com/sirupsen/logrus"
	"github.com/tyler-smith/go-bip39"
)

const walletDataVersion = 1

// Wallet is an HD wallet over a single account. It derives receive and change
// addresses, tracks the utxos paying to them and persists itself through a
// types.Storage.
type Wallet struct {
	network      Network
	mnemonic     string
	receive      *addressChain
	change       *addressChain
	rpc          rpc.Client
	storage      types.Storage
	log          *logrus.Entry
	events       *utils.Broadcaster[types.WalletEvent]
	discoveryGap uint32

	mu            *sync.RWMutex
	utxos         map[string]types.Utxo
	daaScore      uint64
	synced        bool
	lastBalance   types.Balance
	subscriptions []string
	closed        bool
}

// NewWallet creates a wallet from a fresh 24 words mnemonic.
func NewWallet(network Network, opts ...WalletOption) (*Wallet, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return nil, err
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, err
	}
	return FromMnemonic(mnemonic, network, opts...)
}

func FromMnemonic(mnemonic string, network Network, opts ...WalletOption) (*Wallet, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	if network.Params == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, network.Name)
	}

	account, err := deriveAccount(bip39.NewSeed(mnemonic, ""), network)
	if err != nil {
		return nil, err
	}
	receive, err := newAddressChain(account, receiveBranch, network)
	if err != nil {
		return nil, err
	}
	change, err := newAddressChain(account, changeBranch, network)
	if err != nil {
		return nil, err
	}

	w := &Wallet{
		network:      network,
		mnemonic:     mnemonic,
		receive:      receive,
		change:       change,
		log:          Log,
		events:       utils.NewBroadcaster[types.WalletEvent]("wallet"),
		discoveryGap: AddressDiscoveryGap,
		mu:           &sync.RWMutex{},
		utxos:        make(map[string]types.Utxo),
	}
	for _, opt := range opts {
		opt(w)
	}

	if _, err := w.receive.current(); err != nil {
		return nil, err
	}
	if _, err := w.change.current(); err != nil {
		return nil, err
	}

	return w, nil
}

// ImportWallet restores the wallet saved in storage, decrypting its mnemonic
// with password. The storage is attached to the returned wallet.
func ImportWallet(
	ctx context.Context, storage types.Storage, password string, opts ...WalletOption,
) (*Wallet, error) {
	if storage == nil {
		return nil, ErrMissingStorage
	}

	data, err := storage.GetWallet(ctx)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ErrWalletNotFound
	}

	network, err := NetworkByName(data.Network)
	if err != nil {
		return nil, err
	}
	mnemonic, err := utils.Decrypt(password, data.Cipher)
	if err != nil {
		return nil, err
	}

	opts = append(opts, WithStorage(storage))
	w, err := FromMnemonic(string(mnemonic), network, opts...)
	if err != nil {
		return nil, err
	}

	state, err := storage.GetState(ctx)
	if err != nil {
		return nil, err
	}
	if state != nil {
		w.receive.next = state.ReceiveIndex
		w.change.next = state.ChangeIndex
		w.daaScore = state.DaaScore
		if _, err := w.receive.current(); err != nil {
			return nil, err
		}
		if _, err := w.change.current(); err != nil {
			return nil, err
		}
	}

	w.log.WithFields(logrus.Fields{
		"network": network.Name,
		"storage": storage.GetType(),
	}).Debug("wallet imported")
	return w, nil
}

// Export encrypts the mnemonic with password.
func (w *Wallet) Export(password string) (*types.EncryptedWallet, error) {
	cipher, err := utils.Encrypt(password, []byte(w.mnemonic))
	if err != nil {
		return nil, err
	}
	return &types.EncryptedWallet{
		Version:   walletDataVersion,
		Network:   w.network.Name,
		Cipher:    cipher,
		CreatedAt: time.Now(),
	}, nil
}

// Save writes the encrypted wallet and its derivation state to storage.
func (w *Wallet) Save(ctx context.Context, password string) error {
	if w.storage == nil {
		return ErrMissingStorage
	}
	data, err := w.Export(password)
	if err != nil {
		return err
	}
	if err := w.storage.SaveWallet(ctx, *data); err != nil {
		return fmt.Errorf("failed to save wallet: %w", err)
	}
	return w.saveState(ctx)
}

func (w *Wallet) saveState(ctx context.Context) error {
	if w.storage == nil {
		return nil
	}
	w.mu.RLock()
	state := types.WalletState{
		ReceiveIndex: w.receive.next,
		ChangeIndex:  w.change.next,
		DaaScore:     w.daaScore,
		UpdatedAt:    time.Now(),
	}
	w.mu.RUnlock()

	if err := w.storage.SaveState(ctx, state); err != nil {
		return fmt.Errorf("failed to save wallet state: %w", err)
	}
	return nil
}

func (w *Wallet) Mnemonic() string {
	return w.mnemonic
}

func (w *Wallet) Network() Network {
	return w.network
}

// ReceiveAddress returns the first receive address not known to be used.
func (w *Wallet) ReceiveAddress() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	// nolint
	addr, _ := w.receive.current()
	return addr
}

// NewReceiveAddress moves to the next receive address and returns it.
func (w *Wallet) NewReceiveAddress(ctx context.Context) (string, error) {
	w.mu.Lock()
	addr, err := w.receive.advance()
	live := len(w.subscriptions) > 0
	w.mu.Unlock()
	if err != nil {
		return "", err
	}

	if live {
		if err := w.watchAddresses(ctx, []string{addr}); err != nil {
			w.Logger().WithError(err).Warn("failed to watch new receive address")
		}
	}
	if err := w.saveState(ctx); err != nil {
		w.Logger().WithError(err).Warn("failed to persist derivation state")
	}
	return addr, nil
}

func (w *Wallet) ChangeAddress() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	// nolint
	addr, _ := w.change.current()
	return addr
}

// Addresses returns every derived address, receive branch first.
func (w *Wallet) Addresses() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append(w.receive.derived(), w.change.derived()...)
}

func (w *Wallet) Balance() types.Balance {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.balance()
}

func (w *Wallet) balance() types.Balance {
	var b types.Balance
	for _, u := range w.utxos {
		if w.isMature(u) {
			b.Available += u.Amount
		} else {
			b.Pending += u.Amount
		}
	}
	b.Total = b.Available + b.Pending
	return b
}

func (w *Wallet) isMature(u types.Utxo) bool {
	return u.IsMature(w.daaScore, ConfirmationCount, CoinbaseCfmCount)
}

// Utxos returns the tracked utxos, oldest first.
func (w *Wallet) Utxos() []types.Utxo {
	w.mu.RLock()
	defer w.mu.RUnlock()
	utxos := make([]types.Utxo, 0, len(w.utxos))
	for _, u := range w.utxos {
		utxos = append(utxos, u)
	}
	sort.Slice(utxos, func(i, j int) bool {
		if utxos[i].BlockDaaScore == utxos[j].BlockDaaScore {
			return utxos[i].Outpoint.String() < utxos[j].Outpoint.String()
		}
		return utxos[i].BlockDaaScore < utxos[j].BlockDaaScore
	})
	return utxos
}

func (w *Wallet) DaaScore() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.daaScore
}

func (w *Wallet) IsSynced() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.synced
}

// Events subscribes to wallet events. The channel is dropped if it does not
// keep up and closed when the wallet is closed.
func (w *Wallet) Events(buf int) <-chan types.WalletEvent {
	return w.events.Subscribe(buf)
}

func (w *Wallet) Logger() *logrus.Entry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.log
}

func (w *Wallet) SetLogger(logger *logrus.Entry) {
	if logger == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.log = logger
}

// Close drops node subscriptions and closes event channels. The storage is
// left open, it belongs to the caller.
func (w *Wallet) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	subscriptions := w.subscriptions
	w.subscriptions = nil
	w.mu.Unlock()

	if w.rpc != nil && len(subscriptions) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, uid := range subscriptions {
			if err := w.rpc.Unsubscribe(ctx, uid); err != nil {
				w.Logger().WithError(err).Debug("failed to unsubscribe")
			}
		}
	}
	w.events.Close()
}

func (w *Wallet) publish(event types.WalletEvent) {
	w.events.Publish(event)
}
