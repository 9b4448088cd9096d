package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cryptix-network/cryptix-wallet-go/store"
	"github.com/cryptix-network/cryptix-wallet-go/types"
	"github.com/stretchr/testify/require"
)

var (
	testWallet = types.EncryptedWallet{
		Version:   1,
		Network:   "testnet",
		Cipher:    []byte{0xde, 0xad, 0xbe, 0xef},
		CreatedAt: time.Unix(1_700_000_000, 0),
	}
	testState = types.WalletState{
		ReceiveIndex: 7,
		ChangeIndex:  3,
		DaaScore:     123_456,
		UpdatedAt:    time.Unix(1_700_000_100, 0),
	}
	testTxs = []types.TxRecord{
		{
			TxID:      "bb",
			Index:     1,
			Address:   "cryptixtest1a",
			Amount:    5_000,
			DaaScore:  20,
			Direction: types.TxIncoming,
			CreatedAt: time.Unix(1_700_000_200, 0),
		},
		{
			TxID:       "aa",
			Index:      0,
			Address:    "cryptixtest1b",
			Amount:     10_000,
			DaaScore:   10,
			IsCoinbase: true,
			Direction:  types.TxIncoming,
			CreatedAt:  time.Unix(1_700_000_300, 0),
		},
		{
			TxID:      "bb",
			Index:     0,
			Amount:    2_500,
			DaaScore:  20,
			Direction: types.TxOutgoing,
			CreatedAt: time.Unix(1_700_000_400, 0),
		},
	}
)

func TestStorage(t *testing.T) {
	fixtures := []struct {
		name   string
		config func(t *testing.T) store.Config
	}{
		{
			name: types.FileStore,
			config: func(t *testing.T) store.Config {
				return store.Config{Type: types.FileStore, BaseDir: t.TempDir()}
			},
		},
		{
			name: types.KVStore + " in memory",
			config: func(t *testing.T) store.Config {
				return store.Config{Type: types.KVStore}
			},
		},
		{
			name: types.KVStore + " on disk",
			config: func(t *testing.T) store.Config {
				return store.Config{Type: types.KVStore, BaseDir: t.TempDir()}
			},
		},
		{
			name: types.SQLStore,
			config: func(t *testing.T) store.Config {
				return store.Config{Type: types.SQLStore, BaseDir: t.TempDir()}
			},
		},
	}

	for _, f := range fixtures {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			cfg := f.config(t)
			storage, err := store.NewStorage(cfg)
			require.NoError(t, err)
			defer storage.Close()

			require.Equal(t, cfg.Type, storage.GetType())
			require.Equal(t, cfg.BaseDir, storage.GetDatadir())

			wallet, err := storage.GetWallet(ctx)
			require.NoError(t, err)
			require.Nil(t, wallet)
			state, err := storage.GetState(ctx)
			require.NoError(t, err)
			require.Nil(t, state)
			txs, err := storage.GetTransactions(ctx)
			require.NoError(t, err)
			require.Empty(t, txs)

			require.NoError(t, storage.SaveWallet(ctx, testWallet))
			wallet, err = storage.GetWallet(ctx)
			require.NoError(t, err)
			require.NotNil(t, wallet)
			require.Equal(t, testWallet.Version, wallet.Version)
			require.Equal(t, testWallet.Network, wallet.Network)
			require.Equal(t, testWallet.Cipher, wallet.Cipher)
			require.Equal(t, testWallet.CreatedAt.Unix(), wallet.CreatedAt.Unix())

			updated := testWallet
			updated.Network = "mainnet"
			require.NoError(t, storage.SaveWallet(ctx, updated))
			wallet, err = storage.GetWallet(ctx)
			require.NoError(t, err)
			require.Equal(t, "mainnet", wallet.Network)

			require.NoError(t, storage.SaveState(ctx, testState))
			state, err = storage.GetState(ctx)
			require.NoError(t, err)
			require.NotNil(t, state)
			require.Equal(t, testState.ReceiveIndex, state.ReceiveIndex)
			require.Equal(t, testState.ChangeIndex, state.ChangeIndex)
			require.Equal(t, testState.DaaScore, state.DaaScore)
			require.Equal(t, testState.UpdatedAt.Unix(), state.UpdatedAt.Unix())

			count, err := storage.AddTransactions(ctx, testTxs)
			require.NoError(t, err)
			require.Equal(t, len(testTxs), count)

			count, err = storage.AddTransactions(ctx, testTxs[:2])
			require.NoError(t, err)
			require.Zero(t, count)

			txs, err = storage.GetTransactions(ctx)
			require.NoError(t, err)
			require.Len(t, txs, 3)
			require.Equal(t, "aa:0", txs[0].Key())
			require.Equal(t, "bb:0", txs[1].Key())
			require.Equal(t, "bb:1", txs[2].Key())
			require.True(t, txs[0].IsCoinbase)
			require.Equal(t, types.TxOutgoing, txs[1].Direction)
			require.Equal(t, uint64(5_000), txs[2].Amount)
			require.Equal(t, "cryptixtest1a", txs[2].Address)

			require.NoError(t, storage.Clean(ctx))
			wallet, err = storage.GetWallet(ctx)
			require.NoError(t, err)
			require.Nil(t, wallet)
			state, err = storage.GetState(ctx)
			require.NoError(t, err)
			require.Nil(t, state)
			txs, err = storage.GetTransactions(ctx)
			require.NoError(t, err)
			require.Empty(t, txs)
		})
	}
}

func TestStoragePersistence(t *testing.T) {
	for _, storeType := range []string{types.FileStore, types.KVStore, types.SQLStore} {
		t.Run(storeType, func(t *testing.T) {
			ctx := context.Background()
			cfg := store.Config{Type: storeType, BaseDir: t.TempDir()}

			storage, err := store.NewStorage(cfg)
			require.NoError(t, err)
			require.NoError(t, storage.SaveWallet(ctx, testWallet))
			require.NoError(t, storage.SaveState(ctx, testState))
			_, err = storage.AddTransactions(ctx, testTxs)
			require.NoError(t, err)
			storage.Close()

			reopened, err := store.NewStorage(cfg)
			require.NoError(t, err)
			defer reopened.Close()

			wallet, err := reopened.GetWallet(ctx)
			require.NoError(t, err)
			require.Equal(t, testWallet.Cipher, wallet.Cipher)
			state, err := reopened.GetState(ctx)
			require.NoError(t, err)
			require.Equal(t, testState.DaaScore, state.DaaScore)
			txs, err := reopened.GetTransactions(ctx)
			require.NoError(t, err)
			require.Len(t, txs, len(testTxs))
		})
	}
}

func TestFileStoreHandEditedState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	state := `{"receive_index": 4, "change_index": "2", "daa_score": 99, "updated_at": "0"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), []byte(state), 0o600))

	storage, err := store.NewStorage(store.Config{Type: types.FileStore, BaseDir: dir})
	require.NoError(t, err)

	got, err := storage.GetState(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(4), got.ReceiveIndex)
	require.Equal(t, uint32(2), got.ChangeIndex)
	require.Equal(t, uint64(99), got.DaaScore)
}

func TestNewStorageInvalid(t *testing.T) {
	fixtures := []struct {
		name string
		cfg  store.Config
	}{
		{name: "unknown type", cfg: store.Config{Type: "s3", BaseDir: t.TempDir()}},
		{name: "file without dir", cfg: store.Config{Type: types.FileStore}},
		{name: "sql without dir", cfg: store.Config{Type: types.SQLStore}},
	}
	for _, f := range fixtures {
		t.Run(f.name, func(t *testing.T) {
			storage, err := store.NewStorage(f.cfg)
			require.Error(t, err)
			require.Nil(t, storage)
		})
	}
}
