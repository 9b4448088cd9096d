package core

import "github.com/cryptix-network/cryptix-wallet-go/internal/utils"

const (
	// ConfirmationCount is the number of DAA scores a regular output must be
	// buried under before it counts as available balance.
	ConfirmationCount = 10
	// CoinbaseCfmCount is the same threshold for coinbase outputs.
	CoinbaseCfmCount = 100
)

const (
	SompiPerCryptix = utils.SompiPerCryptix
	DefaultFee      = uint64(2_000)
	DustThreshold   = uint64(600)

	AddressDiscoveryGap = 20
	CoinType            = 111111

	receiveBranch = 0
	changeBranch  = 1

	subnetworkIDNative = "0000000000000000000000000000000000000000"
)
