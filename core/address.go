package core

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/bech32"
)

const (
	addressVersionPubKey = 0x00

	opData32    = 0x20
	opCheckSig  = 0xac
	xOnlyKeyLen = 32
)

// EncodeAddress returns the bech32 address paying to the x-only schnorr key
// of pubKey on network.
func EncodeAddress(pubKey *btcec.PublicKey, network Network) (string, error) {
	payload := make([]byte, 0, 1+xOnlyKeyLen)
	payload = append(payload, addressVersionPubKey)
	payload = append(payload, schnorr.SerializePubKey(pubKey)...)

	converted, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(network.Prefix, converted)
}

// DecodeAddress returns the network and x-only public key an address pays to.
func DecodeAddress(address string) (Network, *btcec.PublicKey, error) {
	prefix, data, err := bech32.Decode(address)
	if err != nil {
		return Network{}, nil, fmt.Errorf("%w: %s", ErrInvalidAddress, err)
	}
	network, ok := networkByPrefix(prefix)
	if !ok {
		return Network{}, nil, fmt.Errorf("%w: unknown prefix %s", ErrInvalidAddress, prefix)
	}

	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return Network{}, nil, fmt.Errorf("%w: %s", ErrInvalidAddress, err)
	}
	if len(payload) != 1+xOnlyKeyLen || payload[0] != addressVersionPubKey {
		return Network{}, nil, fmt.Errorf("%w: unsupported payload", ErrInvalidAddress)
	}

	pubKey, err := schnorr.ParsePubKey(payload[1:])
	if err != nil {
		return Network{}, nil, fmt.Errorf("%w: %s", ErrInvalidAddress, err)
	}
	return network, pubKey, nil
}

// PayToAddressScript returns the hex script public key locking funds to
// address.
func PayToAddressScript(address string) (string, error) {
	_, pubKey, err := DecodeAddress(address)
	if err != nil {
		return "", err
	}
	script := make([]byte, 0, 2+xOnlyKeyLen)
	script = append(script, opData32)
	script = append(script, schnorr.SerializePubKey(pubKey)...)
	script = append(script, opCheckSig)
	return hex.EncodeToString(script), nil
}
