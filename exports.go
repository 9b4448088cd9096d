// Package cryptixwallet is the public surface of the Cryptix wallet. It binds
// the framework-adapted wallet, the raw engine, logging, storage and the node
// RPC types under stable names.
package cryptixwallet

import (
	"context"

	"github.com/cryptix-network/cryptix-wallet-go/core"
	"github.com/cryptix-network/cryptix-wallet-go/types"
	"github.com/cryptix-network/cryptix-wallet-go/types/rpc"
	"github.com/cryptix-network/cryptix-wallet-go/wrapper"
	"github.com/sirupsen/logrus"
)

var Version string

type (
	// Wallet is the engine wallet adapted to the framework worker pool.
	Wallet = wrapper.WalletWrapper
	// Core is the unadapted engine wallet.
	Core    = core.Wallet
	Storage = types.Storage
)

var (
	Log                  = core.Log
	WorkerLog            = wrapper.WorkerLog
	InitCryptixFramework = wrapper.InitCryptixFramework
	Helper               = core.Helper
)

const (
	ConfirmationCount = core.ConfirmationCount
	CoinbaseCfmCount  = core.CoinbaseCfmCount
)

type (
	Callback[T any]          = types.Callback[T]
	SubscriberItem[T any]    = types.SubscriberItem[T]
	SubscriberItemMap[T any] = types.SubscriberItemMap[T]
)

// Node RPC types.
type (
	RPCClient                                         = rpc.Client
	RPCMessage                                        = rpc.Message
	RPCError                                          = rpc.Error
	Outpoint                                          = rpc.Outpoint
	ScriptPublicKey                                   = rpc.ScriptPublicKey
	UtxoEntry                                         = rpc.UtxoEntry
	UtxosByAddressesEntry                             = rpc.UtxosByAddressesEntry
	GetUtxosByAddressesRequest                        = rpc.GetUtxosByAddressesRequest
	GetUtxosByAddressesResponse                       = rpc.GetUtxosByAddressesResponse
	GetBlockDagInfoRequest                            = rpc.GetBlockDagInfoRequest
	GetBlockDagInfoResponse                           = rpc.GetBlockDagInfoResponse
	GetVirtualSelectedParentBlueScoreRequest          = rpc.GetVirtualSelectedParentBlueScoreRequest
	GetVirtualSelectedParentBlueScoreResponse         = rpc.GetVirtualSelectedParentBlueScoreResponse
	SubmitTransactionRequest                          = rpc.SubmitTransactionRequest
	SubmitTransactionResponse                         = rpc.SubmitTransactionResponse
	Transaction                                       = rpc.Transaction
	TransactionInput                                  = rpc.TransactionInput
	TransactionOutput                                 = rpc.TransactionOutput
	NotifyUtxosChangedRequest                         = rpc.NotifyUtxosChangedRequest
	UtxosChangedNotification                          = rpc.UtxosChangedNotification
	VirtualSelectedParentBlueScoreChangedNotification = rpc.VirtualSelectedParentBlueScoreChangedNotification
	VirtualDaaScoreChangedNotification                = rpc.VirtualDaaScoreChangedNotification
)

const (
	MethodGetUtxosByAddresses                     = rpc.MethodGetUtxosByAddresses
	MethodGetBlockDagInfo                         = rpc.MethodGetBlockDagInfo
	MethodGetVirtualSelectedParentBlueScore       = rpc.MethodGetVirtualSelectedParentBlueScore
	MethodSubmitTransaction                       = rpc.MethodSubmitTransaction
	MethodNotifyUtxosChanged                      = rpc.MethodNotifyUtxosChanged
	MethodStopNotifyingUtxosChanged               = rpc.MethodStopNotifyingUtxosChanged
	MethodNotifyVirtualSelectedParentBlueScore    = rpc.MethodNotifyVirtualSelectedParentBlueScore
	MethodStopNotifyingVirtualSelectedParentScore = rpc.MethodStopNotifyingVirtualSelectedParentScore
	MethodNotifyVirtualDaaScoreChanged            = rpc.MethodNotifyVirtualDaaScoreChanged
	MethodStopNotifyingVirtualDaaScoreChanged     = rpc.MethodStopNotifyingVirtualDaaScoreChanged
	NotificationUtxosChanged                      = rpc.NotificationUtxosChanged
	NotificationVirtualSelectedParentBlueScore    = rpc.NotificationVirtualSelectedParentBlueScore
	NotificationVirtualDaaScoreChanged            = rpc.NotificationVirtualDaaScoreChanged
)

// Framework and engine bindings used to build a Wallet.
type (
	FrameworkConfig = wrapper.FrameworkConfig
	Network         = core.Network
	WalletOption    = core.WalletOption
	Balance         = types.Balance
	Utxo            = types.Utxo
	TxRecord        = types.TxRecord
	WalletEvent     = types.WalletEvent
	WalletEventType = types.WalletEventType
)

var (
	InitCryptixFrameworkFromMap = wrapper.InitCryptixFrameworkFromMap
	ShutdownCryptixFramework    = wrapper.ShutdownCryptixFramework
	ErrFrameworkNotInitialized  = wrapper.ErrFrameworkNotInitialized
	NewWalletWrapper            = wrapper.NewWalletWrapper
	CreateWallet                = wrapper.CreateWallet
	FromMnemonic                = wrapper.FromMnemonic
	ImportWallet                = wrapper.ImportWallet

	NewCore          = core.NewWallet
	CoreFromMnemonic = core.FromMnemonic
	ImportCore       = core.ImportWallet

	Mainnet          = core.Mainnet
	Testnet          = core.Testnet
	Devnet           = core.Devnet
	Simnet           = core.Simnet
	NetworkByName    = core.NetworkByName
	WithRPC          = core.WithRPC
	WithStorage      = core.WithStorage
	WithDiscoveryGap = core.WithDiscoveryGap

	ErrWalletNotFound    = core.ErrWalletNotFound
	ErrWrongPassword     = core.ErrWrongPassword
	ErrInsufficientFunds = core.ErrInsufficientFunds
	ErrInvalidAddress    = core.ErrInvalidAddress
	ErrInvalidAmount     = core.ErrInvalidAmount
)

const (
	DefaultFee = core.DefaultFee

	FileStore = types.FileStore
	KVStore   = types.KVStore
	SQLStore  = types.SQLStore

	BalanceEvent        = types.BalanceEvent
	UtxoChangeEvent     = types.UtxoChangeEvent
	DaaScoreChangeEvent = types.DaaScoreChangeEvent
	SyncStateEvent      = types.SyncStateEvent
)

// WalletAPI is what Wallet and Core have in common.
type WalletAPI interface {
	Mnemonic() string
	Network() core.Network
	ReceiveAddress() string
	NewReceiveAddress(ctx context.Context) (string, error)
	ChangeAddress() string
	Addresses() []string
	Sync(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Balance() types.Balance
	Utxos() []types.Utxo
	DaaScore() uint64
	IsSynced() bool
	Export(password string) (*types.EncryptedWallet, error)
	Save(ctx context.Context, password string) error
	ComposeTransaction(to string, amount, fee uint64) (*rpc.Transaction, error)
	SubmitTransaction(ctx context.Context, tx *rpc.Transaction) (string, error)
	SignMessage(address string, message []byte) (string, error)
	Events(buf int) <-chan types.WalletEvent
	Logger() *logrus.Entry
	Close()
}

var (
	_ WalletAPI = (*Wallet)(nil)
	_ WalletAPI = (*Core)(nil)
)
