package core

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

func deriveAccount(seed []byte, network Network) (*hdkeychain.ExtendedKey, error) {
	master, err := hdkeychain.NewMaster(seed, network.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to derive master key: %w", err)
	}

	// m/44'/CoinType'/0'
	key := master
	for _, idx := range []uint32{44, CoinType, 0} {
		key, err = key.Derive(hdkeychain.HardenedKeyStart + idx)
		if err != nil {
			return nil, fmt.Errorf("failed to derive account key: %w", err)
		}
	}
	return key, nil
}

// addressChain derives the addresses of one branch (receive or change) of the
// account. next is the index handed out by Current.
type addressChain struct {
	network   Network
	branch    *hdkeychain.ExtendedKey
	addresses []string
	indexes   map[string]uint32
	next      uint32
}

func newAddressChain(account *hdkeychain.ExtendedKey, branch uint32, network Network) (
	*addressChain, error,
) {
	key, err := account.Derive(branch)
	if err != nil {
		return nil, fmt.Errorf("failed to derive branch %d: %w", branch, err)
	}
	return &addressChain{
		network: network,
		branch:  key,
		indexes: make(map[string]uint32),
	}, nil
}

func (c *addressChain) privateKey(index uint32) (*btcec.PrivateKey, error) {
	child, err := c.branch.Derive(index)
	if err != nil {
		return nil, err
	}
	return child.ECPrivKey()
}

// ensure derives every address up to and including index.
func (c *addressChain) ensure(index uint32) error {
	for uint32(len(c.addresses)) <= index {
		next := uint32(len(c.addresses))
		child, err := c.branch.Derive(next)
		if err != nil {
			return fmt.Errorf("failed to derive address %d: %w", next, err)
		}
		pubKey, err := child.ECPubKey()
		if err != nil {
			return err
		}
		addr, err := EncodeAddress(pubKey, c.network)
		if err != nil {
			return err
		}
		c.addresses = append(c.addresses, addr)
		c.indexes[addr] = next
	}
	return nil
}

func (c *addressChain) current() (string, error) {
	if err := c.ensure(c.next); err != nil {
		return "", err
	}
	return c.addresses[c.next], nil
}

func (c *addressChain) advance() (string, error) {
	c.next++
	return c.current()
}

// markUsed moves next past index so used addresses are not handed out again.
func (c *addressChain) markUsed(index uint32) {
	if index >= c.next {
		c.next = index + 1
	}
}

func (c *addressChain) lookup(address string) (uint32, bool) {
	idx, ok := c.indexes[address]
	return idx, ok
}

func (c *addressChain) derived() []string {
	return append([]string(nil), c.addresses...)
}
