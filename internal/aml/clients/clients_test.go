package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sand/chain-compliance/backend/internal/entities"
)

const watched = "bc1qwatched"

type pathRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (p *pathRecorder) add(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paths = append(p.paths, path)
}

func (p *pathRecorder) list() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.paths...)
}

func esploraTxJSON(txid, from, to string, sats int64) map[string]any {
	return map[string]any{
		"txid": txid,
		"vin": []any{
			map[string]any{"prevout": map[string]any{"scriptpubkey_address": from, "value": sats + 1000}},
		},
		"vout": []any{
			map[string]any{"scriptpubkey_address": to, "value": sats},
			map[string]any{"scriptpubkey_address": "bc1qchange", "value": 500},
		},
		"status": map[string]any{"confirmed": true, "block_time": 1735689600},
	}
}

func TestEsploraListIncoming(t *testing.T) {
	paths := &pathRecorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths.add(r.URL.Path)
		txs := []any{
			esploraTxJSON("tx-in", "bc1qsender", watched, 150000),
			esploraTxJSON("tx-out", watched, "bc1qother", 1000),
			esploraTxJSON("tx-known", "bc1qsender", watched, 1),
			map[string]any{
				"txid":   "tx-coinbase",
				"vin":    []any{map[string]any{"prevout": nil}},
				"vout":   []any{map[string]any{"scriptpubkey_address": watched, "value": 312500000}},
				"status": map[string]any{"confirmed": true, "block_time": 1735689000},
			},
		}
		_ = json.NewEncoder(w).Encode(txs)
	}))
	defer server.Close()

	feed := NewEsploraFeed(slog.Default(), server.URL+"/")
	page, err := feed.ListIncoming(context.Background(), watched, map[string]struct{}{"tx-known": {}}, entities.PageRequest{Limit: 25})
	require.NoError(t, err)

	require.Equal(t, []string{"/address/" + watched + "/txs/chain"}, paths.list())
	require.Empty(t, page.NextCursor)
	require.Len(t, page.Transactions, 2)

	in := page.Transactions[0]
	require.Equal(t, "tx-in", in.TxID)
	require.True(t, in.ReceivedBy(watched).Equal(decimal.RequireFromString("0.0015")))
	require.Equal(t, "bc1qsender", in.Inputs[0].Address)
	require.Equal(t, int64(1735689600), in.Timestamp)

	coinbase := page.Transactions[1]
	require.Empty(t, coinbase.Inputs)
	require.True(t, coinbase.ReceivedBy(watched).Equal(decimal.RequireFromString("3.125")))
}

func TestEsploraPaging(t *testing.T) {
	paths := &pathRecorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths.add(r.URL.Path)
		txs := make([]any, 0, esploraChainPageSize)
		for i := 0; i < esploraChainPageSize; i++ {
			txs = append(txs, esploraTxJSON(fmt.Sprintf("tx-%02d", i), "bc1qsender", watched, 1000))
		}
		_ = json.NewEncoder(w).Encode(txs)
	}))
	defer server.Close()

	feed := NewEsploraFeed(slog.Default(), server.URL)

	page, err := feed.ListIncoming(context.Background(), watched, nil, entities.PageRequest{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Transactions, 10)
	require.Equal(t, "tx-09", page.NextCursor)

	page, err = feed.ListIncoming(context.Background(), watched, nil, entities.PageRequest{Limit: 25, Cursor: "tx-09"})
	require.NoError(t, err)
	require.Len(t, page.Transactions, 25)
	require.Equal(t, "tx-24", page.NextCursor)
	require.Equal(t, "/address/"+watched+"/txs/chain/tx-09", paths.list()[1])
}

func TestEsploraErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/txs") {
			_, _ = w.Write([]byte("not json"))
			return
		}
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	feed := NewEsploraFeed(slog.Default(), server.URL)

	_, err := feed.ListIncoming(context.Background(), watched, nil, entities.PageRequest{Limit: 25})
	require.ErrorContains(t, err, "429")

	_, err = feed.ListRecent(context.Background(), watched, 10)
	require.ErrorContains(t, err, "decode")
}

func TestEsploraListRecent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/address/"+watched+"/txs", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]any{
			esploraTxJSON("tx-1", "bc1qsender", watched, 1000),
			esploraTxJSON("tx-2", watched, "bc1qother", 1000),
			esploraTxJSON("tx-3", "bc1qsender", watched, 1000),
		})
	}))
	defer server.Close()

	txs, err := NewEsploraFeed(slog.Default(), server.URL).ListRecent(context.Background(), watched, 2)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	require.Equal(t, "tx-2", txs[1].TxID)
}

func TestAttributionClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "secret", r.Header.Get("X-API-Key"))

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/attributions/lookup":
			var req struct {
				Addresses []string `json:"addresses"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, []string{"a", "b"}, req.Addresses)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"attributions": []entities.Attribution{{Address: "a", EntityID: "ent-1", CospendID: "cs-9"}},
			})
		case r.Method == http.MethodGet && r.URL.Path == "/entities":
			require.Equal(t, "ent-1,ent-2", r.URL.Query().Get("ids"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"entities": []entities.EntityRecord{{ID: "ent-1", EntityType: "exchange", Countries: []string{"US"}}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewAttributionClient(slog.Default(), "secret", server.URL)
	require.True(t, client.IsEnabled())
	ctx := context.Background()

	attributions, err := client.Lookup(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, []entities.Attribution{{Address: "a", EntityID: "ent-1", CospendID: "cs-9"}}, attributions)

	records, err := client.GetMany(ctx, []string{"ent-1", "ent-2"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "exchange", records["ent-1"].EntityType)

	empty, err := client.Lookup(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestAttributionClientDisabled(t *testing.T) {
	client := NewAttributionClient(slog.Default(), "", "http://localhost")
	require.False(t, client.IsEnabled())

	_, err := client.Lookup(context.Background(), []string{"a"})
	require.Error(t, err)
}

func TestAttributionClientUnknownEntity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"entities":[]}`))
	}))
	defer server.Close()

	record, err := NewAttributionClient(slog.Default(), "secret", server.URL).Get(context.Background(), "ent-x")
	require.NoError(t, err)
	require.Nil(t, record)
}

func TestJurisdictionSource(t *testing.T) {
	var body atomic.Value
	body.Store(`[{"country":" us ","risk_score":10},{"country":"KP","risk_score":90,"fatf_black":true}]`)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body.Load().(string)))
	}))
	defer server.Close()

	source := NewJurisdictionSource(slog.Default(), server.URL)
	require.True(t, source.IsEnabled())

	jurisdictions, err := source.FetchJurisdictions(context.Background())
	require.NoError(t, err)
	require.Equal(t, []entities.JurisdictionRisk{
		{Country: "US", RiskScore: 10},
		{Country: "KP", RiskScore: 90, FATFBlack: true},
	}, jurisdictions)

	for _, invalid := range []string{`[]`, `[{"country":"US","risk_score":140}]`, `[{"country":"","risk_score":1}]`, `{`} {
		body.Store(invalid)
		_, err = source.FetchJurisdictions(context.Background())
		require.Error(t, err, invalid)
	}

	_, err = NewJurisdictionSource(slog.Default(), "").FetchJurisdictions(context.Background())
	require.Error(t, err)
}

func TestBalanceChanges(t *testing.T) {
	sender := solana.NewWallet().PublicKey()
	receiver := solana.NewWallet().PublicKey()
	program := solana.SystemProgramID

	inputs, outputs := balanceChanges(
		solana.PublicKeySlice{sender, receiver, program},
		[]uint64{3_000_000_000, 0, 1},
		[]uint64{1_499_995_000, 1_500_000_000, 1},
	)

	require.Len(t, inputs, 1)
	require.Equal(t, sender.String(), inputs[0].Address)
	require.True(t, inputs[0].Amount.Equal(decimal.RequireFromString("1.500005")))

	require.Len(t, outputs, 1)
	require.Equal(t, receiver.String(), outputs[0].Address)
	require.True(t, outputs[0].Amount.Equal(decimal.RequireFromString("1.5")))
}

type namedFeed struct{ name string }

func (f namedFeed) ListIncoming(context.Context, string, map[string]struct{}, entities.PageRequest) (*entities.FeedPage, error) {
	return &entities.FeedPage{NextCursor: f.name}, nil
}

func (f namedFeed) ListRecent(context.Context, string, int) ([]entities.FeedTransaction, error) {
	return []entities.FeedTransaction{{TxID: f.name}}, nil
}

func TestFeedRouter(t *testing.T) {
	solanaAddress := solana.NewWallet().PublicKey().String()

	router := NewFeedRouter(namedFeed{"utxo"}, namedFeed{"solana"})
	page, err := router.ListIncoming(context.Background(), solanaAddress, nil, entities.PageRequest{})
	require.NoError(t, err)
	require.Equal(t, "solana", page.NextCursor)

	page, err = router.ListIncoming(context.Background(), "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq", nil, entities.PageRequest{})
	require.NoError(t, err)
	require.Equal(t, "utxo", page.NextCursor)

	// Без Solana-ленты все идет в обозреватель
	txs, err := NewFeedRouter(namedFeed{"utxo"}, nil).ListRecent(context.Background(), solanaAddress, 1)
	require.NoError(t, err)
	require.Equal(t, "utxo", txs[0].TxID)
}
