package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/oddsignal/scorebot/internal/calibration"
	"github.com/oddsignal/scorebot/internal/domain"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Monetary and probability values are stored as NUMERIC and round-tripped
// through TEXT to preserve decimal.Decimal precision exactly.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an already-connected pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) UpsertFixture(ctx context.Context, fx domain.Fixture) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO fixtures (id, sport, league, home_team, away_team, last_observed)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   league = EXCLUDED.league, last_observed = EXCLUDED.last_observed`,
		fx.ID, fx.Sport, fx.League, fx.HomeTeam, fx.AwayTeam, fx.LastObserved,
	)
	if err != nil {
		return fmt.Errorf("upsert fixture %s: %w", fx.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetFixture(ctx context.Context, id string) (domain.Fixture, bool, error) {
	var fx domain.Fixture
	err := s.pool.QueryRow(ctx,
		`SELECT id, sport, league, home_team, away_team, last_observed
		 FROM fixtures WHERE id = $1`, id).
		Scan(&fx.ID, &fx.Sport, &fx.League, &fx.HomeTeam, &fx.AwayTeam, &fx.LastObserved)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Fixture{}, false, nil
	}
	if err != nil {
		return domain.Fixture{}, false, fmt.Errorf("get fixture %s: %w", id, err)
	}
	return fx, true, nil
}

func (s *PostgresStore) InsertScoreEvent(ctx context.Context, ev domain.ScoreEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO score_events (id, fixture_id, sport, kind, point_value, event_timestamp, provider_ts, provider, consensus)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.FixtureID, ev.Sport, ev.Kind, ev.PointValue,
		ev.EventTimestamp, ev.ProviderTS, ev.Provider, ev.Consensus,
	)
	if err != nil {
		return fmt.Errorf("insert score event %s: %w", ev.ID, err)
	}
	return nil
}

func (s *PostgresStore) ScoreEventsSince(ctx context.Context, fixtureID string, since time.Time) ([]domain.ScoreEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, fixture_id, sport, kind, point_value, event_timestamp, provider_ts, provider, consensus
		 FROM score_events WHERE fixture_id = $1 AND event_timestamp > $2 ORDER BY event_timestamp`,
		fixtureID, since)
	if err != nil {
		return nil, fmt.Errorf("score events since for %s: %w", fixtureID, err)
	}
	defer rows.Close()

	var out []domain.ScoreEvent
	for rows.Next() {
		var ev domain.ScoreEvent
		if err := rows.Scan(&ev.ID, &ev.FixtureID, &ev.Sport, &ev.Kind, &ev.PointValue,
			&ev.EventTimestamp, &ev.ProviderTS, &ev.Provider, &ev.Consensus); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertMarket(ctx context.Context, m domain.Market) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO markets (id, fixture_id, yes_token_id, no_token_id, yes_is_home, liquidity, status, outcome, cached_at)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   liquidity = EXCLUDED.liquidity, status = EXCLUDED.status,
		   outcome = EXCLUDED.outcome, cached_at = EXCLUDED.cached_at`,
		m.ID, m.FixtureID, m.YesTokenID, m.NoTokenID, m.YesIsHome,
		m.Liquidity.String(), m.Status, m.Outcome, m.CachedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert market %s: %w", m.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetMarket(ctx context.Context, id string) (domain.Market, bool, error) {
	var m domain.Market
	var liquidity string
	err := s.pool.QueryRow(ctx,
		`SELECT id, fixture_id, yes_token_id, no_token_id, yes_is_home, liquidity::TEXT, status, outcome, cached_at
		 FROM markets WHERE id = $1`, id).
		Scan(&m.ID, &m.FixtureID, &m.YesTokenID, &m.NoTokenID, &m.YesIsHome, &liquidity, &m.Status, &m.Outcome, &m.CachedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Market{}, false, nil
	}
	if err != nil {
		return domain.Market{}, false, fmt.Errorf("get market %s: %w", id, err)
	}
	m.Liquidity, _ = decimal.NewFromString(liquidity)
	return m, true, nil
}

func (s *PostgresStore) InsertPosition(ctx context.Context, p domain.Position) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO positions (
			id, market_id, token_id, side, stake, entry_price, entry_size, stop_price, take_price, opened_at,
			entry_quote_source, entry_quote_age_ms, entry_raw_prob, entry_calib_prob,
			ws_quote_count, rest_quote_count, state,
			exit_price, exit_reason, realized_net_pnl, closed_at,
			sport, league, event_id, home_team, away_team, bet_team
		 ) VALUES (
			$1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC, $10,
			$11, $12, $13::NUMERIC, $14::NUMERIC,
			$15, $16, $17,
			$18::NUMERIC, $19, $20::NUMERIC, $21,
			$22, $23, $24, $25, $26, $27
		 )`,
		p.ID, p.MarketID, p.TokenID, p.Side, p.Stake.String(), p.EntryPrice.String(), p.EntrySize.String(),
		p.StopPrice.String(), p.TakePrice.String(), p.OpenedAt,
		p.EntryQuoteSource, p.EntryQuoteAgeMS, p.EntryRawProb.String(), p.EntryCalibProb.String(),
		p.WSQuoteCount, p.RESTQuoteCount, p.State,
		p.ExitPrice.String(), p.ExitReason, p.RealizedNetPnL.String(), nullableTime(p.ClosedAt),
		p.Sport, p.League, p.EventID, p.HomeTeam, p.AwayTeam, p.BetTeam,
	)
	if err != nil {
		return fmt.Errorf("insert position %s: %w", p.ID, err)
	}
	return nil
}

func (s *PostgresStore) UpdatePosition(ctx context.Context, p domain.Position) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE positions SET
			state = $2, exit_price = $3::NUMERIC, exit_reason = $4,
			realized_net_pnl = $5::NUMERIC, closed_at = $6,
			ws_quote_count = $7, rest_quote_count = $8
		 WHERE id = $1`,
		p.ID, p.State, p.ExitPrice.String(), p.ExitReason,
		p.RealizedNetPnL.String(), nullableTime(p.ClosedAt),
		p.WSQuoteCount, p.RESTQuoteCount,
	)
	if err != nil {
		return fmt.Errorf("update position %s: %w", p.ID, err)
	}
	return nil
}

func (s *PostgresStore) OpenPositions(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx, positionSelect+` WHERE state != 'closed'`)
	if err != nil {
		return nil, fmt.Errorf("open positions: %w", err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

func (s *PostgresStore) ClosedPositions(ctx context.Context, sport domain.Sport, since time.Time) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		positionSelect+` WHERE state = 'closed' AND sport = $1 AND closed_at > $2 ORDER BY closed_at`,
		sport, since)
	if err != nil {
		return nil, fmt.Errorf("closed positions for %s: %w", sport, err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

const positionSelect = `SELECT
	id, market_id, token_id, side, stake::TEXT, entry_price::TEXT, entry_size::TEXT,
	stop_price::TEXT, take_price::TEXT, opened_at,
	entry_quote_source, entry_quote_age_ms, entry_raw_prob::TEXT, entry_calib_prob::TEXT,
	ws_quote_count, rest_quote_count, state,
	exit_price::TEXT, exit_reason, realized_net_pnl::TEXT, closed_at,
	sport, league, event_id, home_team, away_team, bet_team
 FROM positions`

func scanPositions(rows pgx.Rows) ([]domain.Position, error) {
	var out []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPosition(rows pgx.Rows) (domain.Position, error) {
	var p domain.Position
	var stake, entryPrice, entrySize, stopPrice, takePrice, entryRawProb, entryCalibProb, exitPrice, realizedNetPnL string
	var closedAt *time.Time
	if err := rows.Scan(
		&p.ID, &p.MarketID, &p.TokenID, &p.Side, &stake, &entryPrice, &entrySize,
		&stopPrice, &takePrice, &p.OpenedAt,
		&p.EntryQuoteSource, &p.EntryQuoteAgeMS, &entryRawProb, &entryCalibProb,
		&p.WSQuoteCount, &p.RESTQuoteCount, &p.State,
		&exitPrice, &p.ExitReason, &realizedNetPnL, &closedAt,
		&p.Sport, &p.League, &p.EventID, &p.HomeTeam, &p.AwayTeam, &p.BetTeam,
	); err != nil {
		return domain.Position{}, err
	}
	p.Stake, _ = decimal.NewFromString(stake)
	p.EntryPrice, _ = decimal.NewFromString(entryPrice)
	p.EntrySize, _ = decimal.NewFromString(entrySize)
	p.StopPrice, _ = decimal.NewFromString(stopPrice)
	p.TakePrice, _ = decimal.NewFromString(takePrice)
	p.EntryRawProb, _ = decimal.NewFromString(entryRawProb)
	p.EntryCalibProb, _ = decimal.NewFromString(entryCalibProb)
	p.ExitPrice, _ = decimal.NewFromString(exitPrice)
	p.RealizedNetPnL, _ = decimal.NewFromString(realizedNetPnL)
	if closedAt != nil {
		p.ClosedAt = *closedAt
	}
	return p, nil
}

func (s *PostgresStore) RecordBalance(ctx context.Context, balance decimal.Decimal, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO balance_history (amount, observed_at) VALUES ($1::NUMERIC, $2)`,
		balance.String(), at,
	)
	if err != nil {
		return fmt.Errorf("record balance: %w", err)
	}
	return nil
}

func (s *PostgresStore) LatestBalance(ctx context.Context) (decimal.Decimal, bool, error) {
	var amount string
	err := s.pool.QueryRow(ctx,
		`SELECT amount::TEXT FROM balance_history ORDER BY observed_at DESC LIMIT 1`).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("latest balance: %w", err)
	}
	d, _ := decimal.NewFromString(amount)
	return d, true, nil
}

func (s *PostgresStore) RecordCalibrationFit(ctx context.Context, sport domain.Sport, result calibration.FitResult, promoted bool, sampleCount int, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO calibration_fits (sport, a, b, log_loss_before, log_loss_after, brier_before, brier_after, promoted, sample_count, fitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sport, result.Coefficients.A, result.Coefficients.B,
		result.Metrics.LogLossBefore, result.Metrics.LogLossAfter,
		result.Metrics.BrierBefore, result.Metrics.BrierAfter,
		promoted, sampleCount, at,
	)
	if err != nil {
		return fmt.Errorf("record calibration fit for %s: %w", sport, err)
	}
	return nil
}

func (s *PostgresStore) LatestCalibrationFits(ctx context.Context, sport domain.Sport, limit int) ([]CalibrationDiagnostic, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT sport, a, b, log_loss_before, log_loss_after, brier_before, brier_after, promoted, sample_count, fitted_at
		 FROM calibration_fits WHERE sport = $1 ORDER BY fitted_at DESC LIMIT $2`, sport, limit)
	if err != nil {
		return nil, fmt.Errorf("latest calibration fits for %s: %w", sport, err)
	}
	defer rows.Close()

	var out []CalibrationDiagnostic
	for rows.Next() {
		var d CalibrationDiagnostic
		if err := rows.Scan(&d.Sport, &d.A, &d.B, &d.LogLossBefore, &d.LogLossAfter,
			&d.BrierBefore, &d.BrierAfter, &d.Promoted, &d.SampleCount, &d.FittedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
