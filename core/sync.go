package core

import (
	"context"
	"fmt"
	"time"

	"github.com/cryptix-network/cryptix-wallet-go/types"
	"github.com/cryptix-network/cryptix-wallet-go/types/rpc"
	"github.com/sirupsen/logrus"
)

// Sync discovers the used addresses of both branches, reloads their utxos and
// the virtual DAA score from the node and persists the derivation state.
func (w *Wallet) Sync(ctx context.Context) error {
	if w.rpc == nil {
		return ErrMissingRPC
	}
	if w.IsClosed() {
		return ErrWalletClosed
	}
	w.publish(types.WalletEvent{Type: types.SyncStateEvent, Synced: false})

	started := time.Now()
	info, err := w.rpc.GetBlockDagInfo(ctx)
	if err != nil {
		return w.syncFailed(fmt.Errorf("failed to get dag info: %w", err))
	}

	receiveEntries, err := w.discover(ctx, w.receive)
	if err != nil {
		return w.syncFailed(err)
	}
	changeEntries, err := w.discover(ctx, w.change)
	if err != nil {
		return w.syncFailed(err)
	}

	utxos := make(map[string]types.Utxo)
	for _, entry := range append(receiveEntries, changeEntries...) {
		u := utxoFromEntry(entry)
		utxos[u.Outpoint.String()] = u
	}

	w.mu.Lock()
	added := make([]types.Utxo, 0)
	for key, u := range utxos {
		if _, ok := w.utxos[key]; !ok {
			added = append(added, u)
		}
	}
	removed := make([]types.Outpoint, 0)
	for key, u := range w.utxos {
		if _, ok := utxos[key]; !ok {
			removed = append(removed, u.Outpoint)
		}
	}
	w.utxos = utxos
	w.daaScore = info.VirtualDaaScore
	w.synced = true
	balance := w.balance()
	w.lastBalance = balance
	w.mu.Unlock()

	w.recordIncoming(ctx, added)
	if len(added) > 0 || len(removed) > 0 {
		w.publish(types.WalletEvent{Type: types.UtxoChangeEvent, Added: added, Removed: removed})
	}
	w.publish(types.WalletEvent{Type: types.BalanceEvent, Balance: balance})
	w.publish(types.WalletEvent{Type: types.SyncStateEvent, Synced: true, DaaScore: info.VirtualDaaScore})

	if err := w.saveState(ctx); err != nil {
		w.Logger().WithError(err).Warn("failed to persist wallet state")
	}

	w.Logger().WithFields(logrus.Fields{
		"utxos":     len(utxos),
		"available": balance.Available,
		"pending":   balance.Pending,
		"daa_score": info.VirtualDaaScore,
		"took":      time.Since(started),
	}).Info("wallet synced")
	return nil
}

func (w *Wallet) syncFailed(err error) error {
	w.publish(types.WalletEvent{Type: types.SyncStateEvent, Synced: false, Err: err})
	return err
}

// discover queries addresses of chain in windows of discoveryGap until a
// whole window past the last used address comes back empty.
func (w *Wallet) discover(
	ctx context.Context, chain *addressChain,
) ([]rpc.UtxosByAddressesEntry, error) {
	found := make([]rpc.UtxosByAddressesEntry, 0)
	start := uint32(0)
	for {
		w.mu.Lock()
		end := chain.next + w.discoveryGap
		if end <= start {
			w.mu.Unlock()
			return found, nil
		}
		if err := chain.ensure(end - 1); err != nil {
			w.mu.Unlock()
			return nil, err
		}
		batch := append([]string(nil), chain.addresses[start:end]...)
		w.mu.Unlock()

		entries, err := w.rpc.GetUtxosByAddresses(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("failed to get utxos: %w", err)
		}

		w.mu.Lock()
		for _, entry := range entries {
			idx, ok := chain.lookup(entry.Address)
			if !ok {
				continue
			}
			chain.markUsed(idx)
			found = append(found, entry)
		}
		w.mu.Unlock()

		start = end
	}
}

// Subscribe keeps the wallet up to date with utxo changes of its addresses
// and with the virtual DAA score, which drives maturity.
func (w *Wallet) Subscribe(ctx context.Context) error {
	if w.rpc == nil {
		return ErrMissingRPC
	}
	w.mu.RLock()
	closed, live := w.closed, len(w.subscriptions) > 0
	w.mu.RUnlock()
	if closed {
		return ErrWalletClosed
	}
	if live {
		return nil
	}

	if err := w.watchAddresses(ctx, w.Addresses()); err != nil {
		return err
	}
	uid, err := w.rpc.SubscribeVirtualDaaScoreChanged(ctx, w.onDaaScoreChanged)
	if err != nil {
		return fmt.Errorf("failed to subscribe to daa score: %w", err)
	}
	w.addSubscription(uid)
	return nil
}

func (w *Wallet) watchAddresses(ctx context.Context, addresses []string) error {
	uid, err := w.rpc.SubscribeUtxosChanged(ctx, addresses, w.onUtxosChanged)
	if err != nil {
		return fmt.Errorf("failed to subscribe to utxo changes: %w", err)
	}
	w.addSubscription(uid)
	return nil
}

func (w *Wallet) addSubscription(uid string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscriptions = append(w.subscriptions, uid)
}

func (w *Wallet) onUtxosChanged(n *rpc.UtxosChangedNotification) {
	w.mu.Lock()
	added := make([]types.Utxo, 0, len(n.Added))
	for _, entry := range n.Added {
		if !w.owns(entry.Address) {
			continue
		}
		u := utxoFromEntry(entry)
		if _, ok := w.utxos[u.Outpoint.String()]; ok {
			continue
		}
		w.utxos[u.Outpoint.String()] = u
		added = append(added, u)
	}
	removed := make([]types.Outpoint, 0, len(n.Removed))
	for _, entry := range n.Removed {
		key := types.Outpoint{TxID: entry.Outpoint.TransactionID, Index: entry.Outpoint.Index}
		if _, ok := w.utxos[key.String()]; ok {
			delete(w.utxos, key.String())
			removed = append(removed, key)
		}
	}
	balance := w.balance()
	w.lastBalance = balance
	w.mu.Unlock()

	if len(added) == 0 && len(removed) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w.recordIncoming(ctx, added)

	w.publish(types.WalletEvent{Type: types.UtxoChangeEvent, Added: added, Removed: removed})
	w.publish(types.WalletEvent{Type: types.BalanceEvent, Balance: balance})
}

func (w *Wallet) onDaaScoreChanged(n *rpc.VirtualDaaScoreChangedNotification) {
	w.mu.Lock()
	w.daaScore = n.VirtualDaaScore
	balance := w.balance()
	changed := balance != w.lastBalance
	w.lastBalance = balance
	w.mu.Unlock()

	w.publish(types.WalletEvent{Type: types.DaaScoreChangeEvent, DaaScore: n.VirtualDaaScore})
	if changed {
		w.publish(types.WalletEvent{Type: types.BalanceEvent, Balance: balance})
	}
}

// owns must be called with the lock held. A hit marks the address used.
func (w *Wallet) owns(address string) bool {
	if idx, ok := w.receive.lookup(address); ok {
		w.receive.markUsed(idx)
		return true
	}
	if idx, ok := w.change.lookup(address); ok {
		w.change.markUsed(idx)
		return true
	}
	return false
}

func (w *Wallet) recordIncoming(ctx context.Context, utxos []types.Utxo) {
	if w.storage == nil || len(utxos) == 0 {
		return
	}
	records := make([]types.TxRecord, 0, len(utxos))
	for _, u := range utxos {
		records = append(records, types.TxRecord{
			TxID:       u.TxID,
			Index:      u.Index,
			Address:    u.Address,
			Amount:     u.Amount,
			DaaScore:   u.BlockDaaScore,
			IsCoinbase: u.IsCoinbase,
			Direction:  types.TxIncoming,
			CreatedAt:  time.Now(),
		})
	}
	if _, err := w.storage.AddTransactions(ctx, records); err != nil {
		w.Logger().WithError(err).Warn("failed to record transactions")
	}
}

// IsClosed reports whether Close has been called.
func (w *Wallet) IsClosed() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.closed
}

func utxoFromEntry(entry rpc.UtxosByAddressesEntry) types.Utxo {
	return types.Utxo{
		Outpoint: types.Outpoint{
			TxID:  entry.Outpoint.TransactionID,
			Index: entry.Outpoint.Index,
		},
		Address:         entry.Address,
		Amount:          entry.UtxoEntry.Amount,
		ScriptPublicKey: entry.UtxoEntry.ScriptPublicKey.Script,
		BlockDaaScore:   entry.UtxoEntry.BlockDaaScore,
		IsCoinbase:      entry.UtxoEntry.IsCoinbase,
	}
}
