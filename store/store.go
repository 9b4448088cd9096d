package store

import (
	"fmt"

	filestore "github.com/cryptix-network/cryptix-wallet-go/store/file"
	kvstore "github.com/cryptix-network/cryptix-wallet-go/store/kv"
	sqlstore "github.com/cryptix-network/cryptix-wallet-go/store/sql"
	"github.com/cryptix-network/cryptix-wallet-go/types"
	"github.com/dgraph-io/badger/v4"
)

type Config struct {
	Type    string
	BaseDir string
	// Logger is handed to badger by the kv store, nil silences it.
	Logger badger.Logger
}

// NewStorage opens the backend selected by cfg.Type. The kv store keeps
// everything in memory when BaseDir is empty, the others require a dir.
func NewStorage(cfg Config) (types.Storage, error) {
	switch cfg.Type {
	case types.FileStore:
		return filestore.NewStore(cfg.BaseDir)
	case types.KVStore:
		return kvstore.NewStore(cfg.BaseDir, cfg.Logger)
	case types.SQLStore:
		return sqlstore.NewStore(cfg.BaseDir)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
