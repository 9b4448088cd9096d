package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/ccoveille/go-safecast"
	"github.com/cryptix-network/cryptix-wallet-go/types"
	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const (
	sqliteDbFile       = "sqlite.db"
	sqliteOptionPrefix = "_pragma"
)

//go:embed migration/*.sql
var migrations embed.FS

type store struct {
	datadir string
	db      *sql.DB
}

// NewStore opens (creating it if needed) the sqlite wallet db in dir and
// applies pending migrations.
func NewStore(dir string) (types.Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("missing datadir")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create datadir: %s", err)
	}

	db, err := openDB(filepath.Join(dir, sqliteDbFile))
	if err != nil {
		return nil, err
	}
	if err := migrateDB(db); err != nil {
		// nolint
		db.Close()
		return nil, fmt.Errorf("failed to migrate db: %s", err)
	}

	return &store{
		datadir: dir,
		db:      db,
	}, nil
}

func (s *store) GetType() string {
	return types.SQLStore
}

func (s *store) GetDatadir() string {
	return s.datadir
}

func (s *store) SaveWallet(ctx context.Context, wallet types.EncryptedWallet) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallet (id, version, network, cipher, created_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			version = excluded.version,
			network = excluded.network,
			cipher = excluded.cipher,
			created_at = excluded.created_at`,
		wallet.Version, wallet.Network, wallet.Cipher, wallet.CreatedAt.Unix(),
	)
	return err
}

func (s *store) GetWallet(ctx context.Context) (*types.EncryptedWallet, error) {
	var (
		wallet    types.EncryptedWallet
		createdAt int64
	)
	row := s.db.QueryRowContext(ctx,
		"SELECT version, network, cipher, created_at FROM wallet WHERE id = 1",
	)
	if err := row.Scan(&wallet.Version, &wallet.Network, &wallet.Cipher, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	wallet.CreatedAt = time.Unix(createdAt, 0)
	return &wallet, nil
}

func (s *store) SaveState(ctx context.Context, state types.WalletState) error {
	daaScore, err := safecast.ToInt64(state.DaaScore)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO wallet_state (id, receive_index, change_index, daa_score, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			receive_index = excluded.receive_index,
			change_index = excluded.change_index,
			daa_score = excluded.daa_score,
			updated_at = excluded.updated_at`,
		state.ReceiveIndex, state.ChangeIndex, daaScore, state.UpdatedAt.Unix(),
	)
	return err
}

func (s *store) GetState(ctx context.Context) (*types.WalletState, error) {
	var (
		state                 types.WalletState
		daaScore, updatedAt   int64
		receiveIdx, changeIdx int64
	)
	row := s.db.QueryRowContext(ctx, `
		SELECT receive_index, change_index, daa_score, updated_at
		FROM wallet_state WHERE id = 1`,
	)
	if err := row.Scan(&receiveIdx, &changeIdx, &daaScore, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var err error
	if state.ReceiveIndex, err = safecast.ToUint32(receiveIdx); err != nil {
		return nil, err
	}
	if state.ChangeIndex, err = safecast.ToUint32(changeIdx); err != nil {
		return nil, err
	}
	if state.DaaScore, err = safecast.ToUint64(daaScore); err != nil {
		return nil, err
	}
	state.UpdatedAt = time.Unix(updatedAt, 0)
	return &state, nil
}

func (s *store) AddTransactions(ctx context.Context, txs []types.TxRecord) (int, error) {
	count := 0
	txBody := func(tx *sql.Tx) error {
		for _, record := range txs {
			amount, err := safecast.ToInt64(record.Amount)
			if err != nil {
				return err
			}
			daaScore, err := safecast.ToInt64(record.DaaScore)
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, `
				INSERT INTO tx (
					txid, idx, address, amount, daa_score, is_coinbase, direction, created_at
				)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(txid, idx) DO NOTHING`,
				record.TxID, record.Index, record.Address, amount, daaScore,
				record.IsCoinbase, string(record.Direction), record.CreatedAt.Unix(),
			)
			if err != nil {
				return err
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			count += int(affected)
		}
		return nil
	}

	if err := execTx(ctx, s.db, txBody); err != nil {
		return -1, err
	}
	return count, nil
}

func (s *store) GetTransactions(ctx context.Context) ([]types.TxRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT txid, idx, address, amount, daa_score, is_coinbase, direction, created_at
		FROM tx ORDER BY daa_score, txid, idx`,
	)
	if err != nil {
		return nil, err
	}
	// nolint
	defer rows.Close()

	txs := make([]types.TxRecord, 0)
	for rows.Next() {
		var (
			record                      types.TxRecord
			amount, daaScore, createdAt int64
			direction                   string
		)
		if err := rows.Scan(
			&record.TxID, &record.Index, &record.Address, &amount, &daaScore,
			&record.IsCoinbase, &direction, &createdAt,
		); err != nil {
			return nil, err
		}
		if record.Amount, err = safecast.ToUint64(amount); err != nil {
			return nil, err
		}
		if record.DaaScore, err = safecast.ToUint64(daaScore); err != nil {
			return nil, err
		}
		record.Direction = types.TxDirection(direction)
		record.CreatedAt = time.Unix(createdAt, 0)
		txs = append(txs, record)
	}
	return txs, rows.Err()
}

func (s *store) Clean(ctx context.Context) error {
	return execTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, table := range []string{"wallet", "wallet_state", "tx"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clean %s: %s", table, err)
			}
		}
		return nil
	})
}

func (s *store) Close() {
	if err := s.db.Close(); err != nil {
		log.Debugf("error on closing db: %s", err)
	}
}

func openDB(dbPath string) (*sql.DB, error) {
	pragmas := []string{
		"foreign_keys=on",
		"journal_mode=WAL",
		"busy_timeout=5000",
		"synchronous=full",
	}
	options := make(url.Values)
	for _, pragma := range pragmas {
		options.Add(sqliteOptionPrefix, pragma)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("%s?%s", dbPath, options.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %s", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func migrateDB(db *sql.DB) error {
	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return err
	}
	source, err := iofs.New(migrations, "migration")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func execTx(ctx context.Context, db *sql.DB, txBody func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %s", err)
	}
	if err := txBody(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("failed to rollback transaction: %s (cause: %s)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %s", err)
	}
	return nil
}
