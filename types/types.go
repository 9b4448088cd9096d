package types

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	FileStore = "file"
	KVStore   = "kv"
	SQLStore  = "sql"
)

type EncryptedWallet struct {
	Version   int
	Network   string
	Cipher    []byte
	CreatedAt time.Time
}

type WalletState struct {
	ReceiveIndex uint32
	ChangeIndex  uint32
	DaaScore     uint64
	UpdatedAt    time.Time
}

type Outpoint struct {
	TxID  string
	Index uint32
}

func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID, o.Index)
}

type Utxo struct {
	Outpoint
	Address         string
	Amount          uint64
	ScriptPublicKey string
	BlockDaaScore   uint64
	IsCoinbase      bool
}

// Confirmations returns how many DAA scores the utxo is buried under.
func (u Utxo) Confirmations(virtualDaaScore uint64) uint64 {
	if virtualDaaScore < u.BlockDaaScore {
		return 0
	}
	return virtualDaaScore - u.BlockDaaScore
}

// IsMature reports whether the utxo collected the confirmations required to be
// spent. Coinbase outputs use the stricter threshold.
func (u Utxo) IsMature(virtualDaaScore uint64, confirmations, coinbaseConfirmations uint64) bool {
	required := confirmations
	if u.IsCoinbase {
		required = coinbaseConfirmations
	}
	return u.Confirmations(virtualDaaScore) >= required
}

func (u Utxo) String() string {
	// nolint
	b, _ := json.MarshalIndent(u, "", "  ")
	return string(b)
}

type Balance struct {
	Available uint64
	Pending   uint64
	Total     uint64
}

type TxDirection string

const (
	TxIncoming TxDirection = "IN"
	TxOutgoing TxDirection = "OUT"
)

type TxRecord struct {
	TxID       string
	Index      uint32
	Address    string
	Amount     uint64
	DaaScore   uint64
	IsCoinbase bool
	Direction  TxDirection
	CreatedAt  time.Time
}

func (t TxRecord) Key() string {
	return Outpoint{TxID: t.TxID, Index: t.Index}.String()
}

type WalletEventType string

const (
	BalanceEvent        WalletEventType = "balance"
	UtxoChangeEvent     WalletEventType = "utxo-change"
	DaaScoreChangeEvent WalletEventType = "daa-score-change"
	SyncStateEvent      WalletEventType = "sync-state"
)

func (e WalletEventType) String() string {
	return string(e)
}

type WalletEvent struct {
	Type     WalletEventType
	Balance  Balance
	Added    []Utxo
	Removed  []Outpoint
	DaaScore uint64
	Synced   bool
	Err      error
}
