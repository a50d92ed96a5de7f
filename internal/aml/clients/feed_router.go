package clients

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/sand/chain-compliance/backend/internal/core/ports"
	"github.com/sand/chain-compliance/backend/internal/entities"
)

// FeedRouter выбирает ленту по формату адреса: 32-байтные base58 ключи идут
// в Solana, остальное в Esplora-совместимый обозреватель
type FeedRouter struct {
	utxo   ports.TransactionFeed
	solana ports.TransactionFeed
}

// NewFeedRouter создает маршрутизатор; solanaFeed может быть nil
func NewFeedRouter(utxo, solanaFeed ports.TransactionFeed) *FeedRouter {
	return &FeedRouter{utxo: utxo, solana: solanaFeed}
}

func (r *FeedRouter) pick(address string) ports.TransactionFeed {
	if r.solana == nil {
		return r.utxo
	}
	if _, err := solana.PublicKeyFromBase58(address); err == nil {
		return r.solana
	}
	return r.utxo
}

func (r *FeedRouter) ListIncoming(ctx context.Context, address string, excludeIDs map[string]struct{}, page entities.PageRequest) (*entities.FeedPage, error) {
	return r.pick(address).ListIncoming(ctx, address, excludeIDs, page)
}

func (r *FeedRouter) ListRecent(ctx context.Context, address string, limit int) ([]entities.FeedTransaction, error) {
	return r.pick(address).ListRecent(ctx, address, limit)
}
