package core

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
)

// Network binds a Cryptix network to its address prefix, default node
// endpoint and the parameters used to serialize extended keys.
type Network struct {
	Name   string
	Prefix string
	RPCURL string
	Params *chaincfg.Params
}

func (n Network) String() string {
	return n.Name
}

var (
	Mainnet = Network{
		Name:   "mainnet",
		Prefix: "cryptix",
		RPCURL: "ws://127.0.0.1:19202",
		Params: hdParams(chaincfg.MainNetParams, "cryptix-mainnet",
			[4]byte{0x03, 0x8f, 0x2e, 0xf4}, [4]byte{0x03, 0x8f, 0x33, 0x2e}),
	}
	Testnet = Network{
		Name:   "testnet",
		Prefix: "cryptixtest",
		RPCURL: "ws://127.0.0.1:19302",
		Params: hdParams(chaincfg.TestNet3Params, "cryptix-testnet",
			[4]byte{0x03, 0x48, 0x64, 0x3e}, [4]byte{0x03, 0x48, 0x68, 0x78}),
	}
	Devnet = Network{
		Name:   "devnet",
		Prefix: "cryptixdev",
		RPCURL: "ws://127.0.0.1:19402",
		Params: hdParams(chaincfg.RegressionNetParams, "cryptix-devnet",
			[4]byte{0x03, 0x48, 0x64, 0x3e}, [4]byte{0x03, 0x48, 0x68, 0x78}),
	}
	Simnet = Network{
		Name:   "simnet",
		Prefix: "cryptixsim",
		RPCURL: "ws://127.0.0.1:19502",
		Params: hdParams(chaincfg.SimNetParams, "cryptix-simnet",
			[4]byte{0x03, 0x48, 0x64, 0x3e}, [4]byte{0x03, 0x48, 0x68, 0x78}),
	}

	networks = []Network{Mainnet, Testnet, Devnet, Simnet}
)

func hdParams(base chaincfg.Params, name string, prv, pub [4]byte) *chaincfg.Params {
	params := base
	params.Name = name
	params.HDPrivateKeyID = prv
	params.HDPublicKeyID = pub
	params.HDCoinType = CoinType
	return &params
}

// NetworkByName accepts the short name ("testnet") or the prefix
// ("cryptixtest").
func NetworkByName(name string) (Network, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, n := range networks {
		if n.Name == name || n.Prefix == name {
			return n, nil
		}
	}
	return Network{}, fmt.Errorf("%w: %s", ErrUnknownNetwork, name)
}

func networkByPrefix(prefix string) (Network, bool) {
	for _, n := range networks {
		if n.Prefix == prefix {
			return n, true
		}
	}
	return Network{}, false
}
