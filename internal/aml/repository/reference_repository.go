package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"
	"github.com/sand/chain-compliance/backend/internal/entities"
	"github.com/sand/chain-compliance/backend/pkg/database"
)

// ReferenceRepository обслуживает справочники атрибуции, сущностей и рисков
type ReferenceRepository struct {
	logger *slog.Logger

	db         tx.DBGetter
	transactor *tx.Transactor
}

func NewReferenceRepository(logger *slog.Logger, pg *database.Postgres) *ReferenceRepository {
	return &ReferenceRepository{
		logger:     logger,
		db:         pg.DBGetter,
		transactor: pg.Transactor,
	}
}

// Lookup возвращает атрибуции адресов одним запросом
func (r *ReferenceRepository) Lookup(ctx context.Context, addresses []string) ([]entities.Attribution, error) {
	if len(addresses) == 0 {
		return nil, nil
	}

	rows, err := r.db(ctx).Query(ctx,
		`SELECT address, entity_id, beneficial_owner_id, custodian_id, script_type, cospend_id
		   FROM attributions
		  WHERE address = ANY($1)`, addresses)
	if err != nil {
		return nil, fmt.Errorf("failed to query attributions: %w", err)
	}

	attributions, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.Attribution])
	if err != nil {
		return nil, fmt.Errorf("failed to collect attributions: %w", err)
	}

	return attributions, nil
}

// Representatives сопоставляет каждому адресу из cospend-группы
// минимальный адрес этой группы
func (r *ReferenceRepository) Representatives(ctx context.Context, addresses []string) (map[string]string, error) {
	result := make(map[string]string, len(addresses))
	if len(addresses) == 0 {
		return result, nil
	}

	rows, err := r.db(ctx).Query(ctx,
		`SELECT a.address, g.representative
		   FROM attributions a
		   JOIN (SELECT cospend_id, MIN(address) AS representative
		           FROM attributions
		          WHERE cospend_id <> ''
		          GROUP BY cospend_id) g ON g.cospend_id = a.cospend_id
		  WHERE a.address = ANY($1)`, addresses)
	if err != nil {
		return nil, fmt.Errorf("failed to query cospend representatives: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var address, representative string
		if err = rows.Scan(&address, &representative); err != nil {
			return nil, fmt.Errorf("failed to scan cospend representative: %w", err)
		}
		result[address] = representative
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cospend representatives: %w", err)
	}

	return result, nil
}

const entityColumns = `id, proper_name, entity_type, tags, countries, no_kyc, ofac`

// Get возвращает запись сущности или nil, если id неизвестен
func (r *ReferenceRepository) Get(ctx context.Context, entityID string) (*entities.EntityRecord, error) {
	row := r.db(ctx).QueryRow(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = $1`, entityID)

	entity, err := scanEntity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity %s: %w", entityID, err)
	}

	return entity, nil
}

// GetMany возвращает известные записи по их id
func (r *ReferenceRepository) GetMany(ctx context.Context, entityIDs []string) (map[string]*entities.EntityRecord, error) {
	result := make(map[string]*entities.EntityRecord, len(entityIDs))
	if len(entityIDs) == 0 {
		return result, nil
	}

	rows, err := r.db(ctx).Query(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ANY($1)`, entityIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		result[entity.ID] = entity
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entities: %w", err)
	}

	return result, nil
}

func scanEntity(row pgx.Row) (*entities.EntityRecord, error) {
	var e entities.EntityRecord
	if err := row.Scan(&e.ID, &e.ProperName, &e.EntityType, &e.Tags, &e.Countries, &e.NoKYC, &e.OFAC); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *ReferenceRepository) ListJurisdictions(ctx context.Context) ([]entities.JurisdictionRisk, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT country, risk_score, fatf_black, fatf_gray FROM jurisdiction_risks`)
	if err != nil {
		return nil, fmt.Errorf("failed to query jurisdiction risks: %w", err)
	}

	jurisdictions, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.JurisdictionRisk])
	if err != nil {
		return nil, fmt.Errorf("failed to collect jurisdiction risks: %w", err)
	}

	return jurisdictions, nil
}

func (r *ReferenceRepository) ListEntityTypeRisks(ctx context.Context) (map[string]float64, error) {
	return r.listScores(ctx, `SELECT entity_type, risk_score FROM entity_type_risks`)
}

func (r *ReferenceRepository) ListTagRisks(ctx context.Context) (map[string]float64, error) {
	return r.listScores(ctx, `SELECT tag, risk_score FROM tag_risks`)
}

func (r *ReferenceRepository) listScores(ctx context.Context, query string) (map[string]float64, error) {
	rows, err := r.db(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query risk scores: %w", err)
	}
	defer rows.Close()

	scores := make(map[string]float64)
	for rows.Next() {
		var (
			key   string
			score float64
		)
		if err = rows.Scan(&key, &score); err != nil {
			return nil, fmt.Errorf("failed to scan risk score: %w", err)
		}
		scores[key] = score
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate risk scores: %w", err)
	}

	return scores, nil
}

// ReplaceJurisdictions полностью заменяет таблицу юрисдикций в одной транзакции
func (r *ReferenceRepository) ReplaceJurisdictions(ctx context.Context, jurisdictions []entities.JurisdictionRisk) error {
	return r.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := r.db(ctx).Exec(ctx, `DELETE FROM jurisdiction_risks`); err != nil {
			return fmt.Errorf("failed to clear jurisdiction risks: %w", err)
		}

		for _, j := range jurisdictions {
			_, err := r.db(ctx).Exec(ctx,
				`INSERT INTO jurisdiction_risks (country, risk_score, fatf_black, fatf_gray, updated_at)
				 VALUES ($1, $2, $3, $4, NOW())
				 ON CONFLICT (country) DO UPDATE
				 SET risk_score = EXCLUDED.risk_score, fatf_black = EXCLUDED.fatf_black,
				     fatf_gray = EXCLUDED.fatf_gray, updated_at = NOW()`,
				j.Country, j.RiskScore, j.FATFBlack, j.FATFGray)
			if err != nil {
				return fmt.Errorf("failed to insert jurisdiction risk %s: %w", j.Country, err)
			}
		}

		r.logger.InfoContext(ctx, "Jurisdiction risks replaced", "count", len(jurisdictions))
		return nil
	})
}
