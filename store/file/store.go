package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cryptix-network/cryptix-wallet-go/types"
	"github.com/mitchellh/mapstructure"
	log "github.com/sirupsen/logrus"
)

const (
	walletFile       = "wallet.json"
	stateFile        = "state.json"
	transactionsFile = "transactions.json"
)

type store struct {
	datadir string
	lock    *sync.RWMutex
}

// NewStore keeps the wallet as plain JSON files under datadir.
func NewStore(datadir string) (types.Storage, error) {
	if datadir == "" {
		return nil, fmt.Errorf("missing datadir")
	}
	if err := os.MkdirAll(datadir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create datadir: %s", err)
	}
	return &store{
		datadir: datadir,
		lock:    &sync.RWMutex{},
	}, nil
}

func (s *store) GetType() string {
	return types.FileStore
}

func (s *store) GetDatadir() string {
	return s.datadir
}

func (s *store) SaveWallet(_ context.Context, wallet types.EncryptedWallet) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.writeJSON(walletFile, newWalletData(wallet).asMap())
}

func (s *store) GetWallet(_ context.Context) (*types.EncryptedWallet, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	var data walletData
	found, err := s.readMap(walletFile, &data)
	if err != nil || !found || data.isEmpty() {
		return nil, err
	}
	wallet, err := data.decode()
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %s", walletFile, err)
	}
	return wallet, nil
}

func (s *store) SaveState(_ context.Context, state types.WalletState) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.writeJSON(stateFile, newStateData(state).asMap())
}

func (s *store) GetState(_ context.Context) (*types.WalletState, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	var data stateData
	found, err := s.readMap(stateFile, &data)
	if err != nil || !found || data.isEmpty() {
		return nil, err
	}
	state, err := data.decode()
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %s", stateFile, err)
	}
	return state, nil
}

func (s *store) AddTransactions(_ context.Context, txs []types.TxRecord) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	stored, err := s.readTransactions()
	if err != nil {
		return -1, err
	}
	keys := make(map[string]struct{}, len(stored))
	for _, tx := range stored {
		keys[tx.decode().Key()] = struct{}{}
	}

	count := 0
	for _, tx := range txs {
		if _, ok := keys[tx.Key()]; ok {
			continue
		}
		keys[tx.Key()] = struct{}{}
		stored = append(stored, newTxData(tx))
		count++
	}
	if count == 0 {
		return 0, nil
	}
	if err := s.writeJSON(transactionsFile, stored); err != nil {
		return -1, err
	}
	return count, nil
}

func (s *store) GetTransactions(_ context.Context) ([]types.TxRecord, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	stored, err := s.readTransactions()
	if err != nil {
		return nil, err
	}
	txs := make([]types.TxRecord, 0, len(stored))
	for _, tx := range stored {
		txs = append(txs, tx.decode())
	}
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].DaaScore != txs[j].DaaScore {
			return txs[i].DaaScore < txs[j].DaaScore
		}
		if txs[i].TxID != txs[j].TxID {
			return txs[i].TxID < txs[j].TxID
		}
		return txs[i].Index < txs[j].Index
	})
	return txs, nil
}

func (s *store) Clean(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, name := range []string{walletFile, stateFile, transactionsFile} {
		if err := os.Remove(filepath.Join(s.datadir, name)); err != nil &&
			!errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to clean %s: %s", name, err)
		}
	}
	return nil
}

func (s *store) Close() {}

func (s *store) readTransactions() ([]txData, error) {
	buf, err := os.ReadFile(filepath.Join(s.datadir, transactionsFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var txs []txData
	if err := json.Unmarshal(buf, &txs); err != nil {
		return nil, fmt.Errorf("invalid %s: %s", transactionsFile, err)
	}
	return txs, nil
}

// readMap loads a JSON object from name and decodes it into out. Values are
// weakly typed so files edited by hand with bare numbers still load.
func (s *store) readMap(name string, out any) (bool, error) {
	buf, err := os.ReadFile(filepath.Join(s.datadir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	raw := make(map[string]any)
	if err := json.Unmarshal(buf, &raw); err != nil {
		return false, fmt.Errorf("invalid %s: %s", name, err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return false, err
	}
	if err := decoder.Decode(raw); err != nil {
		return false, fmt.Errorf("invalid %s: %s", name, err)
	}
	return true, nil
}

func (s *store) writeJSON(name string, v any) error {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(s.datadir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %s", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to write %s: %s", name, err)
	}
	log.WithField("file", name).Trace("file store updated")
	return nil
}
