package core

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/bits"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cryptix-network/cryptix-wallet-go/internal/utils"
	"github.com/cryptix-network/cryptix-wallet-go/types"
	"github.com/cryptix-network/cryptix-wallet-go/types/rpc"
	"github.com/sirupsen/logrus"
)

// ComposeTransaction selects mature utxos paying amount to address and
// returns the unsigned transaction. Change goes to the current change address,
// which is then rotated. A zero fee means DefaultFee.
func (w *Wallet) ComposeTransaction(to string, amount, fee uint64) (*rpc.Transaction, error) {
	if err := Helper.ValidateAddress(to, w.network); err != nil {
		return nil, err
	}
	if amount < DustThreshold {
		return nil, fmt.Errorf("amount %d is below the dust threshold %d", amount, DustThreshold)
	}
	if fee == 0 {
		fee = DefaultFee
	}
	if _, carry := bits.Add64(amount, fee, 0); carry != 0 {
		return nil, fmt.Errorf("%w: amount %d plus fee %d overflows", ErrInvalidAmount, amount, fee)
	}
	toScript, err := PayToAddressScript(to)
	if err != nil {
		return nil, err
	}

	tx, rotated, live, err := w.composeLocked(toScript, amount, fee)
	if err != nil {
		return nil, err
	}

	if rotated != "" {
		ctx := context.Background()
		if live {
			if err := w.watchAddresses(ctx, []string{rotated}); err != nil {
				w.Logger().WithError(err).Warn("failed to watch new change address")
			}
		}
		if err := w.saveState(ctx); err != nil {
			w.Logger().WithError(err).Warn("failed to persist derivation state")
		}
	}
	return tx, nil
}

func (w *Wallet) composeLocked(
	toScript string, amount, fee uint64,
) (*rpc.Transaction, string, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	utxos := make([]types.Utxo, 0, len(w.utxos))
	for _, u := range w.utxos {
		utxos = append(utxos, u)
	}
	selected, change, err := utils.CoinSelect(utxos, amount, fee, DustThreshold, w.isMature)
	if err != nil {
		return nil, "", false, fmt.Errorf("%w: %s", ErrInsufficientFunds, err)
	}

	tx := &rpc.Transaction{
		SubnetworkID: subnetworkIDNative,
		Inputs:       make([]rpc.TransactionInput, 0, len(selected)),
		Outputs: []rpc.TransactionOutput{{
			Amount:          amount,
			ScriptPublicKey: rpc.ScriptPublicKey{Script: toScript},
		}},
	}
	total := uint64(0)
	for _, u := range selected {
		tx.Inputs = append(tx.Inputs, rpc.TransactionInput{
			PreviousOutpoint: rpc.Outpoint{TransactionID: u.TxID, Index: u.Index},
			SigOpCount:       1,
		})
		total += u.Amount
	}

	rotated := ""
	if change > 0 {
		changeAddr, err := w.change.current()
		if err != nil {
			return nil, "", false, err
		}
		changeScript, err := PayToAddressScript(changeAddr)
		if err != nil {
			return nil, "", false, err
		}
		tx.Outputs = append(tx.Outputs, rpc.TransactionOutput{
			Amount:          change,
			ScriptPublicKey: rpc.ScriptPublicKey{Script: changeScript},
		})
		if rotated, err = w.change.advance(); err != nil {
			return nil, "", false, err
		}
	}
	tx.Fee = total - amount - change
	live := len(w.subscriptions) > 0

	w.log.WithFields(logrus.Fields{
		"inputs": len(tx.Inputs),
		"amount": amount,
		"change": change,
		"fee":    tx.Fee,
	}).Debug("composed transaction")
	return tx, rotated, live, nil
}

// SubmitTransaction broadcasts a signed transaction and drops the utxos it
// spends from the wallet.
func (w *Wallet) SubmitTransaction(ctx context.Context, tx *rpc.Transaction) (string, error) {
	if w.rpc == nil {
		return "", ErrMissingRPC
	}
	if tx == nil || len(tx.Inputs) == 0 {
		return "", fmt.Errorf("transaction has no inputs")
	}
	if len(tx.Outputs) == 0 {
		return "", fmt.Errorf("transaction has no outputs")
	}

	txid, err := w.rpc.SubmitTransaction(ctx, tx, false)
	if err != nil {
		return "", fmt.Errorf("failed to submit transaction: %w", err)
	}
	if _, err := chainhash.NewHashFromStr(txid); err != nil {
		return "", fmt.Errorf("node returned invalid transaction id %q: %w", txid, err)
	}

	w.mu.Lock()
	removed := make([]types.Outpoint, 0, len(tx.Inputs))
	for _, in := range tx.Inputs {
		key := types.Outpoint{TxID: in.PreviousOutpoint.TransactionID, Index: in.PreviousOutpoint.Index}
		if _, ok := w.utxos[key.String()]; ok {
			delete(w.utxos, key.String())
			removed = append(removed, key)
		}
	}
	balance := w.balance()
	w.lastBalance = balance
	daaScore := w.daaScore
	w.mu.Unlock()

	if w.storage != nil {
		record := types.TxRecord{
			TxID:      txid,
			Amount:    tx.Outputs[0].Amount,
			DaaScore:  daaScore,
			Direction: types.TxOutgoing,
			CreatedAt: time.Now(),
		}
		if _, err := w.storage.AddTransactions(ctx, []types.TxRecord{record}); err != nil {
			w.Logger().WithError(err).Warn("failed to record outgoing transaction")
		}
	}
	if err := w.saveState(ctx); err != nil {
		w.Logger().WithError(err).Warn("failed to persist wallet state")
	}

	w.publish(types.WalletEvent{Type: types.UtxoChangeEvent, Removed: removed})
	w.publish(types.WalletEvent{Type: types.BalanceEvent, Balance: balance})
	w.Logger().WithField("txid", txid).Info("transaction submitted")
	return txid, nil
}

// SignMessage signs message with the key of one of the wallet addresses.
func (w *Wallet) SignMessage(address string, message []byte) (string, error) {
	w.mu.RLock()
	chain := w.receive
	idx, ok := w.receive.lookup(address)
	if !ok {
		chain = w.change
		idx, ok = w.change.lookup(address)
	}
	w.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s is not a wallet address", ErrInvalidAddress, address)
	}

	privKey, err := chain.privateKey(idx)
	if err != nil {
		return "", err
	}
	sig, err := schnorr.Sign(privKey, messageHash(message))
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}
	return hex.EncodeToString(sig.Serialize()), nil
}
