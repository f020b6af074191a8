package analysis

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mbd888/rugscan/internal/holders"
	"github.com/mbd888/rugscan/internal/liquidity"
	"github.com/mbd888/rugscan/internal/scoring"
)

// PostgresStore persists analysis reports in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed report store. The schema
// lives in the migrations directory.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, report *Report) error {
	signalsJSON, err := json.Marshal(report.Signals)
	if err != nil {
		return fmt.Errorf("failed to marshal signals: %w", err)
	}
	contractJSON, err := json.Marshal(report.Contract)
	if err != nil {
		return fmt.Errorf("failed to marshal contract analysis: %w", err)
	}
	liquidityJSON, err := json.Marshal(report.Liquidity)
	if err != nil {
		return fmt.Errorf("failed to marshal liquidity analysis: %w", err)
	}
	holdersJSON, err := json.Marshal(report.Holders)
	if err != nil {
		return fmt.Errorf("failed to marshal holder analysis: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analysis_reports (
			chain, address, risk_score, risk_tier, mrr, scr, mfr, uf, confidence,
			signals, contract_analysis, liquidity_analysis, holder_analysis,
			token_name, token_symbol, price_usd, price_change_24h,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (chain, address) DO UPDATE SET
			risk_score = EXCLUDED.risk_score,
			risk_tier = EXCLUDED.risk_tier,
			mrr = EXCLUDED.mrr,
			scr = EXCLUDED.scr,
			mfr = EXCLUDED.mfr,
			uf = EXCLUDED.uf,
			confidence = EXCLUDED.confidence,
			signals = EXCLUDED.signals,
			contract_analysis = EXCLUDED.contract_analysis,
			liquidity_analysis = EXCLUDED.liquidity_analysis,
			holder_analysis = EXCLUDED.holder_analysis,
			token_name = EXCLUDED.token_name,
			token_symbol = EXCLUDED.token_symbol,
			price_usd = EXCLUDED.price_usd,
			price_change_24h = EXCLUDED.price_change_24h,
			updated_at = EXCLUDED.updated_at
	`,
		report.Chain,
		report.Address,
		report.RiskScore,
		string(report.RiskTier),
		report.MRR,
		report.SCR,
		report.MFR,
		report.UF,
		report.Confidence,
		signalsJSON,
		contractJSON,
		liquidityJSON,
		holdersJSON,
		nullString(report.TokenName),
		nullString(report.TokenSymbol),
		report.PriceUSD,
		report.PriceChange24h,
		report.CreatedAt,
		report.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert report: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, chain, address string) (*Report, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT chain, address, risk_score, risk_tier, mrr, scr, mfr, uf, confidence,
		       signals, contract_analysis, liquidity_analysis, holder_analysis,
		       token_name, token_symbol, price_usd, price_change_24h,
		       created_at, updated_at
		FROM analysis_reports
		WHERE chain = $1 AND address = $2
	`, chain, address)

	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*Report, error) {
	return s.ListRecentBefore(ctx, time.Time{}, "", limit)
}

func (s *PostgresStore) ListRecentBefore(ctx context.Context, updatedAt time.Time, key string, limit int) ([]*Report, error) {
	var before sql.NullTime
	if !updatedAt.IsZero() {
		before = sql.NullTime{Time: updatedAt, Valid: true}
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT chain, address, risk_score, risk_tier, mrr, scr, mfr, uf, confidence,
		       signals, contract_analysis, liquidity_analysis, holder_analysis,
		       token_name, token_symbol, price_usd, price_change_24h,
		       created_at, updated_at
		FROM analysis_reports
		WHERE $1::timestamptz IS NULL
		   OR (updated_at, chain || ':' || address) < ($1, $2)
		ORDER BY updated_at DESC, chain || ':' || address DESC
		LIMIT $3
	`, before, key, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			continue
		}
		result = append(result, report)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*Report, error) {
	var (
		r             Report
		tier          string
		signalsJSON   []byte
		contractJSON  []byte
		liquidityJSON []byte
		holdersJSON   []byte
		tokenName     sql.NullString
		tokenSymbol   sql.NullString
		createdAt     time.Time
		updatedAt     time.Time
	)
	err := row.Scan(
		&r.Chain, &r.Address, &r.RiskScore, &tier, &r.MRR, &r.SCR, &r.MFR, &r.UF, &r.Confidence,
		&signalsJSON, &contractJSON, &liquidityJSON, &holdersJSON,
		&tokenName, &tokenSymbol, &r.PriceUSD, &r.PriceChange24h,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.RiskTier = scoring.Tier(tier)
	r.TokenName = tokenName.String
	r.TokenSymbol = tokenSymbol.String
	r.CreatedAt = createdAt
	r.UpdatedAt = updatedAt
	r.Signals = []scoring.Signal{}
	_ = json.Unmarshal(signalsJSON, &r.Signals)
	_ = json.Unmarshal(contractJSON, &r.Contract)
	r.Liquidity = liquidity.Snapshot{}
	_ = json.Unmarshal(liquidityJSON, &r.Liquidity)
	r.Holders = holders.Snapshot{}
	_ = json.Unmarshal(holdersJSON, &r.Holders)
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
