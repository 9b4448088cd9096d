// Package rpc declares the messages exchanged with a Cryptix node and the
// client contract the wallet engine depends on.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cryptix-network/cryptix-wallet-go/types"
)

const (
	MethodGetUtxosByAddresses                     = "getUtxosByAddresses"
	MethodGetBlockDagInfo                         = "getBlockDagInfo"
	MethodGetVirtualSelectedParentBlueScore       = "getVirtualSelectedParentBlueScore"
	MethodSubmitTransaction                       = "submitTransaction"
	MethodNotifyUtxosChanged                      = "notifyUtxosChanged"
	MethodStopNotifyingUtxosChanged               = "stopNotifyingUtxosChanged"
	MethodNotifyVirtualSelectedParentBlueScore    = "notifyVirtualSelectedParentBlueScoreChanged"
	MethodStopNotifyingVirtualSelectedParentScore = "stopNotifyingVirtualSelectedParentBlueScoreChanged"
	MethodNotifyVirtualDaaScoreChanged            = "notifyVirtualDaaScoreChanged"
	MethodStopNotifyingVirtualDaaScoreChanged     = "stopNotifyingVirtualDaaScoreChanged"
	NotificationUtxosChanged                      = "utxosChangedNotification"
	NotificationVirtualSelectedParentBlueScore    = "virtualSelectedParentBlueScoreChangedNotification"
	NotificationVirtualDaaScoreChanged            = "virtualDaaScoreChangedNotification"
)

// Message is the frame carried over the wire. Requests and responses share an
// id, notifications have none.
type Message struct {
	ID     uint64          `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

type Error struct {
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error: %s", e.Message)
}

type Outpoint struct {
	TransactionID string `json:"transactionId"`
	Index         uint32 `json:"index"`
}

type ScriptPublicKey struct {
	Version uint16 `json:"version"`
	Script  string `json:"scriptPublicKey"`
}

type UtxoEntry struct {
	Amount          uint64          `json:"amount"`
	ScriptPublicKey ScriptPublicKey `json:"scriptPublicKey"`
	BlockDaaScore   uint64          `json:"blockDaaScore"`
	IsCoinbase      bool            `json:"isCoinbase"`
}

type UtxosByAddressesEntry struct {
	Address   string    `json:"address"`
	Outpoint  Outpoint  `json:"outpoint"`
	UtxoEntry UtxoEntry `json:"utxoEntry"`
}

type GetUtxosByAddressesRequest struct {
	Addresses []string `json:"addresses"`
}

type GetUtxosByAddressesResponse struct {
	Entries []UtxosByAddressesEntry `json:"entries"`
}

type GetBlockDagInfoRequest struct{}

type GetBlockDagInfoResponse struct {
	NetworkName         string   `json:"networkName"`
	BlockCount          uint64   `json:"blockCount"`
	HeaderCount         uint64   `json:"headerCount"`
	TipHashes           []string `json:"tipHashes"`
	Difficulty          float64  `json:"difficulty"`
	PastMedianTime      int64    `json:"pastMedianTime"`
	VirtualParentHashes []string `json:"virtualParentHashes"`
	PruningPointHash    string   `json:"pruningPointHash"`
	VirtualDaaScore     uint64   `json:"virtualDaaScore"`
}

type GetVirtualSelectedParentBlueScoreRequest struct{}

type GetVirtualSelectedParentBlueScoreResponse struct {
	BlueScore uint64 `json:"blueScore"`
}

type TransactionInput struct {
	PreviousOutpoint Outpoint `json:"previousOutpoint"`
	SignatureScript  string   `json:"signatureScript"`
	Sequence         uint64   `json:"sequence"`
	SigOpCount       uint32   `json:"sigOpCount"`
}

type TransactionOutput struct {
	Amount          uint64          `json:"amount"`
	ScriptPublicKey ScriptPublicKey `json:"scriptPublicKey"`
}

type Transaction struct {
	Version      uint16              `json:"version"`
	Inputs       []TransactionInput  `json:"inputs"`
	Outputs      []TransactionOutput `json:"outputs"`
	LockTime     uint64              `json:"lockTime"`
	SubnetworkID string              `json:"subnetworkId"`
	Gas          uint64              `json:"gas"`
	Payload      string              `json:"payload"`
	Fee          uint64              `json:"fee"`
}

type SubmitTransactionRequest struct {
	Transaction *Transaction `json:"transaction"`
	AllowOrphan bool         `json:"allowOrphan"`
}

type SubmitTransactionResponse struct {
	TransactionID string `json:"transactionId"`
}

type NotifyUtxosChangedRequest struct {
	Addresses []string `json:"addresses"`
}

type UtxosChangedNotification struct {
	Added   []UtxosByAddressesEntry `json:"added"`
	Removed []UtxosByAddressesEntry `json:"removed"`
}

type VirtualSelectedParentBlueScoreChangedNotification struct {
	VirtualSelectedParentBlueScore uint64 `json:"virtualSelectedParentBlueScore"`
}

type VirtualDaaScoreChangedNotification struct {
	VirtualDaaScore uint64 `json:"virtualDaaScore"`
}

// Client is what the wallet engine needs from a node connection.
// Subscribe* methods return the uid of the registered callback.
type Client interface {
	GetUtxosByAddresses(ctx context.Context, addresses []string) ([]UtxosByAddressesEntry, error)
	GetBlockDagInfo(ctx context.Context) (*GetBlockDagInfoResponse, error)
	GetVirtualSelectedParentBlueScore(ctx context.Context) (uint64, error)
	SubmitTransaction(ctx context.Context, tx *Transaction, allowOrphan bool) (string, error)
	SubscribeUtxosChanged(
		ctx context.Context, addresses []string, cb types.Callback[*UtxosChangedNotification],
	) (string, error)
	SubscribeVirtualSelectedParentBlueScoreChanged(
		ctx context.Context, cb types.Callback[*VirtualSelectedParentBlueScoreChangedNotification],
	) (string, error)
	SubscribeVirtualDaaScoreChanged(
		ctx context.Context, cb types.Callback[*VirtualDaaScoreChangedNotification],
	) (string, error)
	Unsubscribe(ctx context.Context, uid string) error
	Close()
}
