package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sand/chain-compliance/backend/internal/core/ports"
	"github.com/sand/chain-compliance/backend/internal/entities"
)

// JurisdictionSource загружает таблицу юрисдикционных рисков из внешнего источника
type JurisdictionSource struct {
	logger *slog.Logger
	url    string
	client *http.Client
}

// NewJurisdictionSource создает клиент источника юрисдикций
func NewJurisdictionSource(logger *slog.Logger, sourceURL string) *JurisdictionSource {
	return &JurisdictionSource{
		logger: logger,
		url:    sourceURL,
		client: &http.Client{Timeout: ports.ExternalRequestTimeout},
	}
}

// IsEnabled возвращает true, если источник настроен
func (s *JurisdictionSource) IsEnabled() bool {
	return s.url != ""
}

// FetchJurisdictions возвращает полную таблицу юрисдикций
func (s *JurisdictionSource) FetchJurisdictions(ctx context.Context) ([]entities.JurisdictionRisk, error) {
	if !s.IsEnabled() {
		return nil, fmt.Errorf("jurisdiction source is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create jurisdiction source request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch jurisdictions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("jurisdiction source returned status %d: %s", resp.StatusCode, string(body))
	}

	var jurisdictions []entities.JurisdictionRisk
	if err = json.NewDecoder(resp.Body).Decode(&jurisdictions); err != nil {
		return nil, fmt.Errorf("failed to decode jurisdictions: %w", err)
	}

	// Пустой ответ не должен стирать справочник
	if len(jurisdictions) == 0 {
		return nil, fmt.Errorf("jurisdiction source returned an empty table")
	}

	for i := range jurisdictions {
		jurisdictions[i].Country = strings.ToUpper(strings.TrimSpace(jurisdictions[i].Country))
		if jurisdictions[i].Country == "" {
			return nil, fmt.Errorf("jurisdiction source returned a row without country")
		}
		if jurisdictions[i].RiskScore < 0 || jurisdictions[i].RiskScore > 100 {
			return nil, fmt.Errorf("jurisdiction %s has risk score %.2f outside 0..100",
				jurisdictions[i].Country, jurisdictions[i].RiskScore)
		}
	}

	s.logger.InfoContext(ctx, "Fetched jurisdictions", "count", len(jurisdictions))
	return jurisdictions, nil
}
