package core

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cryptix-network/cryptix-wallet-go/internal/utils"
)

// HelperFuncs groups stateless conversions and checks that do not need a
// wallet instance.
type HelperFuncs struct{}

var Helper = HelperFuncs{}

// FormatCPX renders sompi as a decimal CPX amount.
func (HelperFuncs) FormatCPX(sompi uint64) string {
	return utils.FormatSompi(sompi)
}

// ParseCPX parses a decimal CPX amount into sompi.
func (HelperFuncs) ParseCPX(amount string) (uint64, error) {
	return utils.ParseSompi(amount)
}

func (HelperFuncs) ValidateAddress(address string, network Network) error {
	addrNetwork, _, err := DecodeAddress(address)
	if err != nil {
		return err
	}
	if addrNetwork.Name != network.Name {
		return fmt.Errorf(
			"%w: address belongs to %s, expected %s", ErrInvalidAddress, addrNetwork, network,
		)
	}
	return nil
}

func (HelperFuncs) NetworkFromAddress(address string) (Network, error) {
	network, _, err := DecodeAddress(address)
	return network, err
}

// VerifyMessage checks a signature produced by Wallet.SignMessage.
func (HelperFuncs) VerifyMessage(address string, message []byte, signature string) (bool, error) {
	_, pubKey, err := DecodeAddress(address)
	if err != nil {
		return false, err
	}
	buf, err := hex.DecodeString(signature)
	if err != nil {
		return false, fmt.Errorf("invalid signature encoding: %w", err)
	}
	sig, err := schnorr.ParseSignature(buf)
	if err != nil {
		return false, fmt.Errorf("invalid signature: %w", err)
	}
	return sig.Verify(messageHash(message), pubKey), nil
}

func messageHash(message []byte) []byte {
	return chainhash.HashB(message)
}
