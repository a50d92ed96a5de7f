package clients

import (
	"strings"

	"github.com/gagliardetto/solana-go/rpc"

	"github.com/sand/chain-compliance/backend/internal/shared"
)

const (
	EsploraMainnetURL = "https://blockstream.info/api"
	EsploraTestnetURL = "https://blockstream.info/testnet/api"
)

// SolanaRPCEndpoint возвращает RPC эндпоинт Solana.
// Явно заданный адрес важнее режима отладки.
func SolanaRPCEndpoint(configured string) string {
	if configured != "" {
		return configured
	}
	if shared.IsScreeningDebugMode() {
		return rpc.DevNet_RPC
	}
	return rpc.MainNetBeta_RPC
}

// EsploraAPIURL переключает публичный mainnet эксплорер на testnet в режиме отладки
func EsploraAPIURL(configured string) string {
	configured = strings.TrimRight(configured, "/")
	if configured == "" {
		configured = EsploraMainnetURL
	}
	if shared.IsScreeningDebugMode() && configured == EsploraMainnetURL {
		return EsploraTestnetURL
	}
	return configured
}
