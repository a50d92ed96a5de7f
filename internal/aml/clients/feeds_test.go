package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/sand/chain-compliance/backend/internal/entities"
)

// esploraHistory serves a confirmed history newest first, esploraChainPageSize
// per request, continuing after the txid in the path like Esplora does.
func esploraHistory(t *testing.T, address string, total int) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	history := make([]string, total)
	for i := range history {
		history[i] = fmt.Sprintf("tx-%03d", i)
	}

	var requests atomic.Int64
	prefix := "/address/" + address + "/txs/chain"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if !strings.HasPrefix(r.URL.Path, prefix) {
			http.NotFound(w, r)
			return
		}

		start := 0
		if last := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, prefix), "/"); last != "" {
			for i, id := range history {
				if id == last {
					start = i + 1
					break
				}
			}
		}
		end := min(start+esploraChainPageSize, len(history))

		txs := make([]any, 0, end-start)
		for _, id := range history[start:end] {
			txs = append(txs, esploraTxJSON(id, "bc1qsender", address, 1000))
		}
		_ = json.NewEncoder(w).Encode(txs)
	}))
	t.Cleanup(server.Close)

	return server, &requests
}

func TestEsploraSkipsExcludedPages(t *testing.T) {
	server, requests := esploraHistory(t, watched, 300)
	feed := NewEsploraFeed(slog.Default(), server.URL)

	exclude := make(map[string]struct{})
	for i := 0; i < 250; i++ {
		exclude[fmt.Sprintf("tx-%03d", i)] = struct{}{}
	}

	page, err := feed.ListIncoming(context.Background(), watched, exclude, entities.PageRequest{Limit: 25})
	require.NoError(t, err)
	require.Len(t, page.Transactions, 25)
	require.Equal(t, "tx-250", page.Transactions[0].TxID)
	require.Equal(t, "tx-274", page.NextCursor)
	require.EqualValues(t, 11, requests.Load())

	page, err = feed.ListIncoming(context.Background(), watched, exclude, entities.PageRequest{Limit: 25, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, page.Transactions, 25)
	require.Equal(t, "tx-299", page.Transactions[24].TxID)
	require.Equal(t, "tx-299", page.NextCursor)

	// Пустая страница после конца истории
	page, err = feed.ListIncoming(context.Background(), watched, exclude, entities.PageRequest{Limit: 25, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Empty(t, page.Transactions)
	require.Empty(t, page.NextCursor)
}

func TestEsploraBackfillsWholeHistoryAcrossSweeps(t *testing.T) {
	server, _ := esploraHistory(t, watched, 300)
	feed := NewEsploraFeed(slog.Default(), server.URL)

	const maxPages = 10
	ingested := make(map[string]struct{})
	for sweep := 0; sweep < 3; sweep++ {
		cursor := ""
		for p := 0; p < maxPages; p++ {
			page, err := feed.ListIncoming(context.Background(), watched, ingested, entities.PageRequest{Limit: 25, Cursor: cursor})
			require.NoError(t, err)
			for _, tx := range page.Transactions {
				ingested[tx.TxID] = struct{}{}
			}
			if page.NextCursor == "" {
				break
			}
			cursor = page.NextCursor
		}
	}

	require.Len(t, ingested, 300)
}

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

func TestSolanaSkipsUnavailableTransactions(t *testing.T) {
	address := solana.NewWallet().PublicKey().String()
	first := solana.Signature{1, 2, 3}
	second := solana.Signature{4, 5, 6}

	var fetched atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		switch req.Method {
		case "getSignaturesForAddress":
			resp["result"] = []any{
				map[string]any{"signature": first.String(), "slot": 10, "err": nil, "blockTime": 1735689600},
				map[string]any{"signature": second.String(), "slot": 9, "err": nil, "blockTime": 1735689500},
			}
		case "getTransaction":
			fetched.Add(1)
			resp["error"] = map[string]any{"code": -32009, "message": "Slot was skipped, or missing in long-term storage"}
		default:
			t.Errorf("unexpected method %s", req.Method)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	feed := NewSolanaFeed(slog.Default(), server.URL)

	page, err := feed.ListIncoming(context.Background(), address, nil, entities.PageRequest{Limit: 25})
	require.NoError(t, err)
	require.Empty(t, page.Transactions)
	require.Empty(t, page.NextCursor)
	require.EqualValues(t, 2, fetched.Load())

	recent, err := feed.ListRecent(context.Background(), address, 10)
	require.NoError(t, err)
	require.Empty(t, recent)
}
