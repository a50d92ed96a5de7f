package aml

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	amlentities "github.com/sand/chain-compliance/backend/internal/aml/entities"
	"github.com/sand/chain-compliance/backend/internal/aml/services"
	"github.com/sand/chain-compliance/backend/internal/core/ports/mocks"
	"github.com/sand/chain-compliance/backend/internal/entities"
)

type engineMocks struct {
	attributions *mocks.MockAttributionLookup
	directory    *mocks.MockEntityDirectory
	feed         *mocks.MockTransactionFeed
}

func newTestEngine(t *testing.T) (*RiskEngine, engineMocks) {
	t.Helper()

	ctrl := gomock.NewController(t)
	source := mocks.NewMockRiskReferenceSource(ctrl)
	source.EXPECT().ListJurisdictions(gomock.Any()).Return([]entities.JurisdictionRisk{
		{Country: "US", RiskScore: 10},
		{Country: "KP", RiskScore: 90, FATFBlack: true},
	}, nil).AnyTimes()
	source.EXPECT().ListEntityTypeRisks(gomock.Any()).Return(map[string]float64{
		"exchange": 20,
		"mixer":    80,
	}, nil).AnyTimes()
	source.EXPECT().ListTagRisks(gomock.Any()).Return(map[string]float64{}, nil).AnyTimes()

	m := engineMocks{
		attributions: mocks.NewMockAttributionLookup(ctrl),
		directory:    mocks.NewMockEntityDirectory(ctrl),
		feed:         mocks.NewMockTransactionFeed(ctrl),
	}

	cache := services.NewRiskCache(slog.Default(), source, time.Hour, nil)
	engine, err := NewRiskEngine(slog.Default(), Config{Weights: amlentities.DefaultWeights()},
		cache, m.attributions, m.directory, m.feed)
	require.NoError(t, err)

	return engine, m
}

func TestNewRiskEngineRejectsInvalidWeights(t *testing.T) {
	_, err := NewRiskEngine(slog.Default(), Config{
		Weights: amlentities.Weights{Jurisdiction: 0.5, Entity: 0.5, Transaction: 0.5},
	}, nil, nil, nil, nil)
	require.Error(t, err)

	_, err = NewRiskEngine(slog.Default(), Config{
		Weights: amlentities.Weights{Jurisdiction: 1.2, Entity: -0.2, Transaction: 0},
	}, nil, nil, nil, nil)
	require.Error(t, err)
}

func TestScoreAddressValidation(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.ScoreAddress(context.Background(), "", amlentities.AnalysisAddress)
	require.Error(t, err)

	_, err = engine.ScoreAddress(context.Background(), "addr", "deep")
	require.Error(t, err)
}

func TestScoreCounterpartyUnattributed(t *testing.T) {
	engine, m := newTestEngine(t)

	m.attributions.EXPECT().Lookup(gomock.Any(), []string{"addr-1"}).Return(nil, nil)

	result, err := engine.ScoreAddress(context.Background(), "addr-1", amlentities.AnalysisCounterparty)
	require.NoError(t, err)
	require.Nil(t, result.Entity)
	require.InDelta(t, 0.15, result.OverallRisk, 1e-9)
	require.Equal(t, 15, result.Score())
}

func TestScoreCounterpartyWeighted(t *testing.T) {
	engine, m := newTestEngine(t)

	// Атрибуция передана заранее, повторный запрос не выполняется
	m.directory.EXPECT().Get(gomock.Any(), "ent-exchange").Return(&entities.EntityRecord{
		ID:         "ent-exchange",
		EntityType: "exchange",
		Countries:  []string{"US"},
	}, nil)

	result, err := engine.ScoreAddress(context.Background(), "addr-1", amlentities.AnalysisCounterparty,
		WithAttribution(&entities.Attribution{Address: "addr-1", EntityID: "ent-exchange"}))
	require.NoError(t, err)

	// 0.4*0.10 + 0.4*0.15 + 0.2*0.15
	require.InDelta(t, 0.13, result.OverallRisk, 1e-9)
	require.Equal(t, 13, result.Score())
}

func TestScoreAddressOFACOverride(t *testing.T) {
	engine, m := newTestEngine(t)

	m.attributions.EXPECT().Lookup(gomock.Any(), []string{"addr-1"}).Return([]entities.Attribution{
		{Address: "addr-1", EntityID: "ent-sanctioned"},
	}, nil)
	m.directory.EXPECT().Get(gomock.Any(), "ent-sanctioned").Return(&entities.EntityRecord{
		ID:         "ent-sanctioned",
		EntityType: "exchange",
		Tags:       []string{"OFAC-Sanctioned"},
	}, nil)
	m.feed.EXPECT().ListRecent(gomock.Any(), "addr-1", 10).Return(nil, nil)

	result, err := engine.ScoreAddress(context.Background(), "addr-1", amlentities.AnalysisAddress)
	require.NoError(t, err)
	require.Equal(t, 1.0, result.OverallRisk)
	require.Equal(t, 100, result.Score())
}

func TestScoreAddressBeneficialOwner(t *testing.T) {
	engine, m := newTestEngine(t)

	m.directory.EXPECT().Get(gomock.Any(), "ent-front").Return(&entities.EntityRecord{
		ID:         "ent-front",
		EntityType: "exchange",
		Countries:  []string{"US"},
	}, nil)
	m.directory.EXPECT().Get(gomock.Any(), "ent-owner").Return(&entities.EntityRecord{
		ID:         "ent-owner",
		EntityType: "mixer",
		Countries:  []string{"KP"},
	}, nil)

	result, err := engine.ScoreAddress(context.Background(), "addr-1", amlentities.AnalysisCounterparty,
		WithAttribution(&entities.Attribution{Address: "addr-1", EntityID: "ent-front", BeneficialOwnerID: "ent-owner"}))
	require.NoError(t, err)
	require.Equal(t, "ent-owner", result.Entity.ID)

	// 0.4*1.0 + 0.4*0.6 + 0.2*0.15
	require.InDelta(t, 0.67, result.OverallRisk, 1e-9)
}

func TestScoreAddressMissingBeneficialOwnerKeepsEntity(t *testing.T) {
	engine, m := newTestEngine(t)

	m.directory.EXPECT().Get(gomock.Any(), "ent-front").Return(&entities.EntityRecord{ID: "ent-front", EntityType: "exchange"}, nil)
	m.directory.EXPECT().Get(gomock.Any(), "ent-owner").Return(nil, nil)

	result, err := engine.ScoreAddress(context.Background(), "addr-1", amlentities.AnalysisCounterparty,
		WithAttribution(&entities.Attribution{Address: "addr-1", EntityID: "ent-front", BeneficialOwnerID: "ent-owner"}))
	require.NoError(t, err)
	require.Equal(t, "ent-front", result.Entity.ID)
}

func TestScoreAddressUsesRecentTransactions(t *testing.T) {
	engine, m := newTestEngine(t)

	m.attributions.EXPECT().Lookup(gomock.Any(), []string{"addr-1"}).Return(nil, nil)
	m.feed.EXPECT().ListRecent(gomock.Any(), "addr-1", 10).Return([]entities.FeedTransaction{{
		TxID:    "t1",
		Inputs:  []entities.TxIO{{Address: "sender"}},
		Outputs: []entities.TxIO{{Address: "addr-1"}},
	}}, nil)
	m.attributions.EXPECT().Lookup(gomock.Any(), []string{"sender"}).Return([]entities.Attribution{
		{Address: "sender", EntityID: "ent-mixer"},
	}, nil)
	m.directory.EXPECT().GetMany(gomock.Any(), []string{"ent-mixer"}).Return(map[string]*entities.EntityRecord{
		"ent-mixer": {ID: "ent-mixer", EntityType: "mixer"},
	}, nil)

	result, err := engine.ScoreAddress(context.Background(), "addr-1", amlentities.AnalysisAddress)
	require.NoError(t, err)

	// Неатрибутированный адрес получает транзакционный риск
	require.InDelta(t, 0.6, result.OverallRisk, 1e-9)
	require.Equal(t, 60, result.Score())
}

func TestScoreBounds(t *testing.T) {
	engine, m := newTestEngine(t)

	records := []*entities.EntityRecord{
		{ID: "e1"},
		{ID: "e2", EntityType: "mixer", NoKYC: true, Countries: []string{"KP", "ZZ"}},
		{ID: "e3", EntityType: "unknown", Tags: []string{"x", "y"}},
		{ID: "e4", EntityType: "exchange", OFAC: true},
	}
	for _, r := range records {
		m.directory.EXPECT().Get(gomock.Any(), r.ID).Return(r, nil)

		result, err := engine.ScoreAddress(context.Background(), "addr-"+r.ID, amlentities.AnalysisCounterparty,
			WithAttribution(&entities.Attribution{Address: "addr-" + r.ID, EntityID: r.ID}))
		require.NoError(t, err)
		require.GreaterOrEqual(t, result.OverallRisk, 0.0)
		require.LessOrEqual(t, result.OverallRisk, 1.0)
		require.GreaterOrEqual(t, result.Score(), 0)
		require.LessOrEqual(t, result.Score(), 100)
	}
}
