package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sand/chain-compliance/backend/internal/core/ports"
	"github.com/sand/chain-compliance/backend/internal/entities"
)

// Esplora отдает подтвержденные транзакции страницами по 25
const esploraChainPageSize = 25

const satoshiExponent = -8

// EsploraFeed получает транзакции адреса из Esplora-совместимого API
type EsploraFeed struct {
	logger *slog.Logger
	apiURL string
	client *http.Client
}

// NewEsploraFeed создает клиент ленты транзакций
func NewEsploraFeed(logger *slog.Logger, apiURL string) *EsploraFeed {
	return &EsploraFeed{
		logger: logger,
		apiURL: strings.TrimRight(apiURL, "/"),
		client: &http.Client{Timeout: ports.ExternalRequestTimeout},
	}
}

type esploraTx struct {
	TxID string `json:"txid"`
	Vin  []struct {
		Prevout *struct {
			Address string `json:"scriptpubkey_address"`
			Value   int64  `json:"value"`
		} `json:"prevout"`
	} `json:"vin"`
	Vout []struct {
		Address string `json:"scriptpubkey_address"`
		Value   int64  `json:"value"`
	} `json:"vout"`
	Status struct {
		Confirmed bool  `json:"confirmed"`
		BlockTime int64 `json:"block_time"`
	} `json:"status"`
}

func (t esploraTx) toFeed() entities.FeedTransaction {
	result := entities.FeedTransaction{
		TxID:      t.TxID,
		Timestamp: t.Status.BlockTime,
	}
	if result.Timestamp == 0 {
		result.Timestamp = time.Now().Unix()
	}
	for _, in := range t.Vin {
		// coinbase не имеет prevout
		if in.Prevout == nil {
			continue
		}
		result.Inputs = append(result.Inputs, entities.TxIO{
			Address: in.Prevout.Address,
			Amount:  decimal.New(in.Prevout.Value, satoshiExponent),
		})
	}
	for _, out := range t.Vout {
		result.Outputs = append(result.Outputs, entities.TxIO{
			Address: out.Address,
			Amount:  decimal.New(out.Value, satoshiExponent),
		})
	}
	return result
}

// ListIncoming возвращает до page.Limit входящих транзакций адреса, которых нет в excludeIDs.
// Страницы Esplora читаются подряд, пока не наберется лимит или не кончится история.
// Курсор это txid последней просмотренной транзакции.
func (f *EsploraFeed) ListIncoming(ctx context.Context, address string, excludeIDs map[string]struct{}, page entities.PageRequest) (*entities.FeedPage, error) {
	result := &entities.FeedPage{}
	cursor := page.Cursor

	for {
		path := fmt.Sprintf("/address/%s/txs/chain", url.PathEscape(address))
		if cursor != "" {
			path += "/" + url.PathEscape(cursor)
		}

		var raw []esploraTx
		if err := f.get(ctx, path, &raw); err != nil {
			return nil, err
		}

		for i, t := range raw {
			cursor = t.TxID
			if _, seen := excludeIDs[t.TxID]; !seen {
				tx := t.toFeed()
				if tx.ReceivedBy(address).IsPositive() {
					result.Transactions = append(result.Transactions, tx)
				}
			}
			if page.Limit > 0 && len(result.Transactions) >= page.Limit {
				if i < len(raw)-1 || len(raw) == esploraChainPageSize {
					result.NextCursor = cursor
				}
				return result, nil
			}
		}

		// короткая страница означает конец истории
		if len(raw) < esploraChainPageSize {
			return result, nil
		}

		f.logger.DebugContext(ctx, "Esplora page exhausted, reading older history",
			"address", address,
			"cursor", cursor,
			"collected", len(result.Transactions))
	}
}

// ListRecent возвращает последние транзакции адреса в обе стороны
func (f *EsploraFeed) ListRecent(ctx context.Context, address string, limit int) ([]entities.FeedTransaction, error) {
	var raw []esploraTx
	if err := f.get(ctx, fmt.Sprintf("/address/%s/txs", url.PathEscape(address)), &raw); err != nil {
		return nil, err
	}

	if limit > 0 && len(raw) > limit {
		raw = raw[:limit]
	}

	result := make([]entities.FeedTransaction, 0, len(raw))
	for _, t := range raw {
		result = append(result, t.toFeed())
	}
	return result, nil
}

func (f *EsploraFeed) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.apiURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create explorer request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to explorer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("explorer returned status %d for %s: %s", resp.StatusCode, path, string(body))
	}

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode explorer response: %w", err)
	}

	return nil
}
