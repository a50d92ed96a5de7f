package shared

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/sand/chain-compliance/backend/internal/entities"
)

const EnvScreeningDebugMode = "SCREENING_DEBUG_MODE"

var ErrInvalidAddress = errors.New("invalid address")

// IsScreeningDebugMode checks if screening debug mode is enabled via environment variable
func IsScreeningDebugMode() bool {
	debugMode := strings.ToLower(os.Getenv(EnvScreeningDebugMode))
	return debugMode == "true" || debugMode == "1"
}

// NormalizeAddress returns the canonical form of address on blockchain.
// EVM addresses are checksummed, Solana keys are validated as base58,
// other chains are only trimmed.
func NormalizeAddress(blockchain, address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}

	switch strings.ToLower(blockchain) {
	case entities.BlockchainEthereum, entities.BlockchainBSC:
		if !common.IsHexAddress(address) {
			return "", fmt.Errorf("%w: %s is not a hex address", ErrInvalidAddress, address)
		}
		return common.HexToAddress(address).Hex(), nil
	case entities.BlockchainSolana:
		key, err := solana.PublicKeyFromBase58(address)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrInvalidAddress, address, err)
		}
		return key.String(), nil
	default:
		return address, nil
	}
}
