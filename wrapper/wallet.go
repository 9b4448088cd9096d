package wrapper

import (
	"context"
	"fmt"
	"sync"

	"github.com/cryptix-network/cryptix-wallet-go/core"
	"github.com/cryptix-network/cryptix-wallet-go/types"
	"github.com/cryptix-network/cryptix-wallet-go/types/rpc"
	log "github.com/sirupsen/logrus"
)

const eventBufferSize = 64

// WalletWrapper is a core wallet bound to the framework: it logs through
// WorkerLog, runs heavy operations on the shared worker pool and turns
// wallet events into callbacks.
type WalletWrapper struct {
	*core.Wallet

	mu          *sync.Mutex
	subscribers *types.SubscriberItemMap[types.WalletEvent]
	events      <-chan types.WalletEvent
	done        chan struct{}
	closeOnce   *sync.Once
}

// NewWalletWrapper adapts w. It fails if the framework is not initialized.
func NewWalletWrapper(w *core.Wallet) (*WalletWrapper, error) {
	if !IsInitialized() {
		return nil, ErrFrameworkNotInitialized
	}
	if w == nil {
		return nil, fmt.Errorf("missing wallet")
	}

	w.SetLogger(WorkerLog)
	ww := &WalletWrapper{
		Wallet:      w,
		mu:          &sync.Mutex{},
		subscribers: types.NewSubscriberItemMap[types.WalletEvent](),
		events:      w.Events(eventBufferSize),
		done:        make(chan struct{}),
		closeOnce:   &sync.Once{},
	}
	go ww.dispatch()
	return ww, nil
}

// CreateWallet creates an adapted wallet from a fresh mnemonic.
func CreateWallet(network core.Network, opts ...core.WalletOption) (*WalletWrapper, error) {
	if !IsInitialized() {
		return nil, ErrFrameworkNotInitialized
	}
	w, err := core.NewWallet(network, opts...)
	if err != nil {
		return nil, err
	}
	return NewWalletWrapper(w)
}

func FromMnemonic(
	mnemonic string, network core.Network, opts ...core.WalletOption,
) (*WalletWrapper, error) {
	if !IsInitialized() {
		return nil, ErrFrameworkNotInitialized
	}
	w, err := core.FromMnemonic(mnemonic, network, opts...)
	if err != nil {
		return nil, err
	}
	return NewWalletWrapper(w)
}

// ImportWallet restores an adapted wallet from storage. Decryption runs on
// the worker pool.
func ImportWallet(
	ctx context.Context, storage types.Storage, password string, opts ...core.WalletOption,
) (*WalletWrapper, error) {
	var w *core.Wallet
	if err := runJob(WorkerLog, "import", func() error {
		var err error
		w, err = core.ImportWallet(ctx, storage, password, opts...)
		return err
	}); err != nil {
		return nil, err
	}
	return NewWalletWrapper(w)
}

func (w *WalletWrapper) Sync(ctx context.Context) error {
	return runJob(w.Logger(), "sync", func() error {
		return w.Wallet.Sync(ctx)
	})
}

func (w *WalletWrapper) Export(password string) (*types.EncryptedWallet, error) {
	var data *types.EncryptedWallet
	if err := runJob(w.Logger(), "export", func() error {
		var err error
		data, err = w.Wallet.Export(password)
		return err
	}); err != nil {
		return nil, err
	}
	return data, nil
}

func (w *WalletWrapper) Save(ctx context.Context, password string) error {
	return runJob(w.Logger(), "save", func() error {
		return w.Wallet.Save(ctx, password)
	})
}

func (w *WalletWrapper) ComposeTransaction(
	to string, amount, fee uint64,
) (*rpc.Transaction, error) {
	var tx *rpc.Transaction
	if err := runJob(w.Logger(), "compose", func() error {
		var err error
		tx, err = w.Wallet.ComposeTransaction(to, amount, fee)
		return err
	}); err != nil {
		return nil, err
	}
	return tx, nil
}

// AddEventListener registers cb for events of the given type and returns the
// uid to remove it. Listeners of one type run in registration order.
func (w *WalletWrapper) AddEventListener(
	eventType types.WalletEventType, cb types.Callback[types.WalletEvent],
) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.subscribers.Add(eventType.String(), cb)
}

func (w *WalletWrapper) RemoveEventListener(uid string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.subscribers.Remove(uid)
	return ok
}

// Close stops event dispatching and closes the wallet.
func (w *WalletWrapper) Close() {
	w.closeOnce.Do(func() {
		w.Wallet.Close()
		<-w.done
	})
}

// dispatch runs listeners until the wallet is closed. The engine drops the
// feed when a slow listener lets it fill up, in which case a new one is
// taken so later events still reach every listener.
func (w *WalletWrapper) dispatch() {
	defer close(w.done)
	events := w.events
	for {
		for event := range events {
			w.mu.Lock()
			items := w.subscribers.Items(event.Type.String())
			w.mu.Unlock()

			for _, item := range items {
				w.notify(item, event)
			}
		}
		if w.Wallet.IsClosed() {
			return
		}
		w.Logger().WithField("buffer", eventBufferSize).
			Warn("event feed dropped by a slow listener, events were lost, resubscribing")
		events = w.Wallet.Events(eventBufferSize)
	}
}

func (w *WalletWrapper) notify(item types.SubscriberItem[types.WalletEvent], event types.WalletEvent) {
	defer func() {
		if r := recover(); r != nil {
			w.Logger().WithFields(log.Fields{
				"uid":   item.UID,
				"event": event.Type,
			}).Errorf("subscriber panicked: %v", r)
		}
	}()
	item.Callback(event)
}
