package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/sand/chain-compliance/backend/internal/core/ports"
	"github.com/sand/chain-compliance/backend/internal/entities"
)

// AttributionClient получает атрибуцию адресов и записи сущностей из внешнего API
type AttributionClient struct {
	logger    *slog.Logger
	apiKey    string
	apiURL    string
	client    *http.Client
	isEnabled bool
}

// NewAttributionClient создает клиент API атрибуции
func NewAttributionClient(logger *slog.Logger, apiKey, apiURL string) *AttributionClient {
	isEnabled := apiKey != "" && apiURL != ""

	if !isEnabled {
		logger.Warn("Attribution API is disabled due to missing credentials, using local reference tables")
	} else {
		logger.Info("Attribution API client initialized", "api_url", apiURL)
	}

	return &AttributionClient{
		logger:    logger,
		apiKey:    apiKey,
		apiURL:    strings.TrimRight(apiURL, "/"),
		client:    &http.Client{Timeout: ports.ExternalRequestTimeout},
		isEnabled: isEnabled,
	}
}

// IsEnabled возвращает статус активации клиента
func (c *AttributionClient) IsEnabled() bool {
	return c.isEnabled
}

// Lookup запрашивает атрибуцию пачки адресов одним запросом
func (c *AttributionClient) Lookup(ctx context.Context, addresses []string) ([]entities.Attribution, error) {
	if len(addresses) == 0 {
		return nil, nil
	}

	var response struct {
		Attributions []entities.Attribution `json:"attributions"`
	}
	err := c.do(ctx, http.MethodPost, "/attributions/lookup", map[string][]string{"addresses": addresses}, &response)
	if err != nil {
		return nil, err
	}

	return response.Attributions, nil
}

// Get возвращает сущность или nil, если API ее не знает
func (c *AttributionClient) Get(ctx context.Context, entityID string) (*entities.EntityRecord, error) {
	records, err := c.GetMany(ctx, []string{entityID})
	if err != nil {
		return nil, err
	}
	return records[entityID], nil
}

// GetMany возвращает известные API сущности по их id
func (c *AttributionClient) GetMany(ctx context.Context, entityIDs []string) (map[string]*entities.EntityRecord, error) {
	result := make(map[string]*entities.EntityRecord, len(entityIDs))
	if len(entityIDs) == 0 {
		return result, nil
	}

	var response struct {
		Entities []entities.EntityRecord `json:"entities"`
	}
	query := url.Values{"ids": {strings.Join(entityIDs, ",")}}
	if err := c.do(ctx, http.MethodGet, "/entities?"+query.Encode(), nil, &response); err != nil {
		return nil, err
	}

	for i := range response.Entities {
		result[response.Entities[i].ID] = &response.Entities[i]
	}
	return result, nil
}

func (c *AttributionClient) do(ctx context.Context, method, path string, body, out any) error {
	if !c.isEnabled {
		return fmt.Errorf("attribution API is disabled")
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal attribution request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create attribution request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to attribution API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("attribution API returned non-200 status code: %d, body: %s",
			resp.StatusCode, string(bodyBytes))
	}

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode attribution response: %w", err)
	}

	return nil
}
