package filestore

import (
	"encoding/base64"
	"strconv"
	"time"

	"github.com/ccoveille/go-safecast"
	"github.com/cryptix-network/cryptix-wallet-go/types"
)

type walletData struct {
	Version   string `mapstructure:"version"`
	Network   string `mapstructure:"network"`
	Cipher    string `mapstructure:"cipher"`
	CreatedAt string `mapstructure:"created_at"`
}

func newWalletData(w types.EncryptedWallet) walletData {
	return walletData{
		Version:   strconv.Itoa(w.Version),
		Network:   w.Network,
		Cipher:    base64.StdEncoding.EncodeToString(w.Cipher),
		CreatedAt: strconv.FormatInt(w.CreatedAt.Unix(), 10),
	}
}

func (d walletData) isEmpty() bool {
	return d.Network == "" && d.Cipher == ""
}

func (d walletData) decode() (*types.EncryptedWallet, error) {
	version, err := strconv.Atoi(d.Version)
	if err != nil {
		return nil, err
	}
	cipher, err := base64.StdEncoding.DecodeString(d.Cipher)
	if err != nil {
		return nil, err
	}
	createdAt, err := strconv.ParseInt(d.CreatedAt, 10, 64)
	if err != nil {
		return nil, err
	}
	return &types.EncryptedWallet{
		Version:   version,
		Network:   d.Network,
		Cipher:    cipher,
		CreatedAt: time.Unix(createdAt, 0),
	}, nil
}

func (d walletData) asMap() map[string]any {
	return map[string]any{
		"version":    d.Version,
		"network":    d.Network,
		"cipher":     d.Cipher,
		"created_at": d.CreatedAt,
	}
}

type stateData struct {
	ReceiveIndex string `mapstructure:"receive_index"`
	ChangeIndex  string `mapstructure:"change_index"`
	DaaScore     string `mapstructure:"daa_score"`
	UpdatedAt    string `mapstructure:"updated_at"`
}

func newStateData(s types.WalletState) stateData {
	return stateData{
		ReceiveIndex: strconv.FormatUint(uint64(s.ReceiveIndex), 10),
		ChangeIndex:  strconv.FormatUint(uint64(s.ChangeIndex), 10),
		DaaScore:     strconv.FormatUint(s.DaaScore, 10),
		UpdatedAt:    strconv.FormatInt(s.UpdatedAt.Unix(), 10),
	}
}

func (d stateData) isEmpty() bool {
	return d.ReceiveIndex == "" && d.ChangeIndex == "" && d.DaaScore == ""
}

func (d stateData) decode() (*types.WalletState, error) {
	receiveIndex, err := parseIndex(d.ReceiveIndex)
	if err != nil {
		return nil, err
	}
	changeIndex, err := parseIndex(d.ChangeIndex)
	if err != nil {
		return nil, err
	}
	daaScore, err := strconv.ParseUint(d.DaaScore, 10, 64)
	if err != nil {
		return nil, err
	}
	updatedAt, err := strconv.ParseInt(d.UpdatedAt, 10, 64)
	if err != nil {
		return nil, err
	}
	return &types.WalletState{
		ReceiveIndex: receiveIndex,
		ChangeIndex:  changeIndex,
		DaaScore:     daaScore,
		UpdatedAt:    time.Unix(updatedAt, 0),
	}, nil
}

func (d stateData) asMap() map[string]any {
	return map[string]any{
		"receive_index": d.ReceiveIndex,
		"change_index":  d.ChangeIndex,
		"daa_score":     d.DaaScore,
		"updated_at":    d.UpdatedAt,
	}
}

type txData struct {
	TxID       string `json:"txid"`
	Index      uint32 `json:"index"`
	Address    string `json:"address,omitempty"`
	Amount     uint64 `json:"amount"`
	DaaScore   uint64 `json:"daa_score"`
	IsCoinbase bool   `json:"is_coinbase,omitempty"`
	Direction  string `json:"direction"`
	CreatedAt  int64  `json:"created_at"`
}

func newTxData(tx types.TxRecord) txData {
	return txData{
		TxID:       tx.TxID,
		Index:      tx.Index,
		Address:    tx.Address,
		Amount:     tx.Amount,
		DaaScore:   tx.DaaScore,
		IsCoinbase: tx.IsCoinbase,
		Direction:  string(tx.Direction),
		CreatedAt:  tx.CreatedAt.Unix(),
	}
}

func (d txData) decode() types.TxRecord {
	return types.TxRecord{
		TxID:       d.TxID,
		Index:      d.Index,
		Address:    d.Address,
		Amount:     d.Amount,
		DaaScore:   d.DaaScore,
		IsCoinbase: d.IsCoinbase,
		Direction:  types.TxDirection(d.Direction),
		CreatedAt:  time.Unix(d.CreatedAt, 0),
	}
}

func parseIndex(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return safecast.ToUint32(v)
}
