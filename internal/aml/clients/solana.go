package clients

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"go.openly.dev/pointy"

	"github.com/sand/chain-compliance/backend/internal/entities"
)

const lamportsExponent = -9

// максимум подписей в одном ответе getSignaturesForAddress
const solanaSignaturesPageSize = 1000

// SolanaFeed строит ленту транзакций адреса по RPC Solana.
// Входы и выходы восстанавливаются по изменению балансов аккаунтов.
type SolanaFeed struct {
	logger *slog.Logger
	client *rpc.Client
}

// NewSolanaFeed создает ленту поверх RPC эндпоинта
func NewSolanaFeed(logger *slog.Logger, endpoint string) *SolanaFeed {
	return &SolanaFeed{
		logger: logger,
		client: rpc.New(SolanaRPCEndpoint(endpoint)),
	}
}

// ListIncoming возвращает до page.Limit транзакций, увеличивших баланс адреса.
// Подписи читаются страницами, пока не наберется лимит или не кончится история.
// Транзакция, которую не удалось получить, пропускается с записью в лог.
// Курсор это подпись последней просмотренной транзакции.
func (f *SolanaFeed) ListIncoming(ctx context.Context, address string, excludeIDs map[string]struct{}, page entities.PageRequest) (*entities.FeedPage, error) {
	account, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid solana address %s: %w", address, err)
	}

	var before solana.Signature
	if page.Cursor != "" {
		before, err = solana.SignatureFromBase58(page.Cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid solana cursor %s: %w", page.Cursor, err)
		}
	}

	batch := solanaSignaturesPageSize
	if page.Limit > 0 && page.Limit < batch {
		batch = page.Limit
	}

	result := &entities.FeedPage{}
	for {
		signatures, err := f.client.GetSignaturesForAddressWithOpts(ctx, account, &rpc.GetSignaturesForAddressOpts{
			Limit:      pointy.Int(batch),
			Before:     before,
			Commitment: rpc.CommitmentFinalized,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get signatures for %s: %w", address, err)
		}

		for i, sig := range signatures {
			before = sig.Signature
			txID := sig.Signature.String()
			if _, seen := excludeIDs[txID]; !seen && sig.Err == nil {
				tx, err := f.fetch(ctx, sig.Signature)
				if err != nil {
					f.logger.ErrorContext(ctx, "Failed to fetch solana transaction, skipping",
						"address", address,
						"tx_id", txID,
						"error", err)
				} else if tx != nil && tx.ReceivedBy(address).IsPositive() {
					result.Transactions = append(result.Transactions, *tx)
				}
			}

			if page.Limit > 0 && len(result.Transactions) >= page.Limit {
				if i < len(signatures)-1 || len(signatures) == batch {
					result.NextCursor = txID
				}
				return result, nil
			}
		}

		if len(signatures) < batch {
			return result, nil
		}
	}
}

// ListRecent возвращает последние успешные транзакции адреса
func (f *SolanaFeed) ListRecent(ctx context.Context, address string, limit int) ([]entities.FeedTransaction, error) {
	account, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid solana address %s: %w", address, err)
	}

	opts := &rpc.GetSignaturesForAddressOpts{Commitment: rpc.CommitmentFinalized}
	if limit > 0 {
		opts.Limit = pointy.Int(limit)
	}

	signatures, err := f.client.GetSignaturesForAddressWithOpts(ctx, account, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get signatures for %s: %w", address, err)
	}

	result := make([]entities.FeedTransaction, 0, len(signatures))
	for _, sig := range signatures {
		if sig.Err != nil {
			continue
		}
		tx, err := f.fetch(ctx, sig.Signature)
		if err != nil {
			f.logger.ErrorContext(ctx, "Failed to fetch solana transaction, skipping",
				"address", address,
				"tx_id", sig.Signature.String(),
				"error", err)
			continue
		}
		if tx != nil {
			result = append(result, *tx)
		}
	}
	return result, nil
}

func (f *SolanaFeed) fetch(ctx context.Context, signature solana.Signature) (*entities.FeedTransaction, error) {
	out, err := f.client.GetTransaction(ctx, signature, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentFinalized,
		MaxSupportedTransactionVersion: pointy.Uint64(0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get solana transaction %s: %w", signature, err)
	}
	if out == nil || out.Meta == nil || out.Transaction == nil {
		f.logger.WarnContext(ctx, "Solana transaction has no metadata", "tx_id", signature.String())
		return nil, nil
	}

	decoded, err := out.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to decode solana transaction %s: %w", signature, err)
	}

	feedTx := &entities.FeedTransaction{TxID: signature.String()}
	if out.BlockTime != nil {
		feedTx.Timestamp = int64(*out.BlockTime)
	}

	feedTx.Inputs, feedTx.Outputs = balanceChanges(decoded.Message.AccountKeys, out.Meta.PreBalances, out.Meta.PostBalances)
	return feedTx, nil
}

// balanceChanges превращает изменения балансов в входы (списания) и выходы (зачисления)
func balanceChanges(keys solana.PublicKeySlice, pre, post []uint64) (inputs, outputs []entities.TxIO) {
	n := min(len(keys), len(pre), len(post))
	for i := 0; i < n; i++ {
		switch {
		case post[i] > pre[i]:
			outputs = append(outputs, entities.TxIO{
				Address: keys[i].String(),
				Amount:  decimal.New(int64(post[i]-pre[i]), lamportsExponent),
			})
		case post[i] < pre[i]:
			inputs = append(inputs, entities.TxIO{
				Address: keys[i].String(),
				Amount:  decimal.New(int64(pre[i]-post[i]), lamportsExponent),
			})
		}
	}
	return inputs, outputs
}
