package kvstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cryptix-network/cryptix-wallet-go/types"
	"github.com/dgraph-io/badger/v4"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"
)

const (
	walletStoreDir = "wallet"

	walletKey = "wallet"
	stateKey  = "state"
)

type walletRecord struct {
	Version   int
	Network   string
	Cipher    []byte
	CreatedAt time.Time
}

type stateRecord struct {
	ReceiveIndex uint32
	ChangeIndex  uint32
	DaaScore     uint64
	UpdatedAt    time.Time
}

type txRecord struct {
	TxID       string
	Index      uint32
	Address    string
	Amount     uint64
	DaaScore   uint64
	IsCoinbase bool
	Direction  string
	CreatedAt  time.Time
}

type store struct {
	datadir string
	db      *badgerhold.Store
}

// NewStore opens a badger backed wallet store in dir. An empty dir keeps
// everything in memory.
func NewStore(dir string, logger badger.Logger) (types.Storage, error) {
	dbDir := dir
	if dbDir != "" {
		dbDir = filepath.Join(dir, walletStoreDir)
	}
	badgerDb, err := createDB(dbDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet store: %s", err)
	}
	return &store{
		datadir: dir,
		db:      badgerDb,
	}, nil
}

func (s *store) GetType() string {
	return types.KVStore
}

func (s *store) GetDatadir() string {
	return s.datadir
}

func (s *store) SaveWallet(_ context.Context, wallet types.EncryptedWallet) error {
	record := walletRecord{
		Version:   wallet.Version,
		Network:   wallet.Network,
		Cipher:    wallet.Cipher,
		CreatedAt: wallet.CreatedAt,
	}
	return s.db.Upsert(walletKey, &record)
}

func (s *store) GetWallet(_ context.Context) (*types.EncryptedWallet, error) {
	var record walletRecord
	if err := s.db.Get(walletKey, &record); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &types.EncryptedWallet{
		Version:   record.Version,
		Network:   record.Network,
		Cipher:    record.Cipher,
		CreatedAt: record.CreatedAt,
	}, nil
}

func (s *store) SaveState(_ context.Context, state types.WalletState) error {
	record := stateRecord(state)
	return s.db.Upsert(stateKey, &record)
}

func (s *store) GetState(_ context.Context) (*types.WalletState, error) {
	var record stateRecord
	if err := s.db.Get(stateKey, &record); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	state := types.WalletState(record)
	return &state, nil
}

func (s *store) AddTransactions(_ context.Context, txs []types.TxRecord) (int, error) {
	count := 0
	for _, tx := range txs {
		record := txRecord{
			TxID:       tx.TxID,
			Index:      tx.Index,
			Address:    tx.Address,
			Amount:     tx.Amount,
			DaaScore:   tx.DaaScore,
			IsCoinbase: tx.IsCoinbase,
			Direction:  string(tx.Direction),
			CreatedAt:  tx.CreatedAt,
		}
		if err := s.db.Insert(tx.Key(), &record); err != nil {
			if errors.Is(err, badgerhold.ErrKeyExists) {
				continue
			}
			return -1, err
		}
		count++
	}
	return count, nil
}

func (s *store) GetTransactions(_ context.Context) ([]types.TxRecord, error) {
	var records []txRecord
	query := (&badgerhold.Query{}).SortBy("DaaScore", "TxID", "Index")
	if err := s.db.Find(&records, query); err != nil {
		return nil, err
	}

	txs := make([]types.TxRecord, 0, len(records))
	for _, r := range records {
		txs = append(txs, types.TxRecord{
			TxID:       r.TxID,
			Index:      r.Index,
			Address:    r.Address,
			Amount:     r.Amount,
			DaaScore:   r.DaaScore,
			IsCoinbase: r.IsCoinbase,
			Direction:  types.TxDirection(r.Direction),
			CreatedAt:  r.CreatedAt,
		})
	}
	return txs, nil
}

func (s *store) Clean(_ context.Context) error {
	if err := s.db.Badger().DropAll(); err != nil {
		return fmt.Errorf("failed to clean the wallet db: %s", err)
	}
	return nil
}

func (s *store) Close() {
	if err := s.db.Close(); err != nil {
		log.Debugf("error on closing db: %s", err)
	}
}

func createDB(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger
	if isInMemory {
		opts.InMemory = true
	}

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}
