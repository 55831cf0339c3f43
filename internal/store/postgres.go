package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hivewatch/honeynet-analytics/internal/analytics"
	"github.com/hivewatch/honeynet-analytics/internal/models"
)

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

// Query limits protecting the read path from unbounded scans.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
	topN         = 10
)

// highRiskScore is the line above which an event counts as high-risk in the
// analytics rollup and a source counts as high-scoring in the insights view.
const highRiskScore = 0.8

// PostgresStore is the durable persistence layer for events. It is the only
// owner of event records; every other component reads through it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema() error {
	_, err := p.pool.Exec(context.Background(), schemaSQL)
	return err
}

// Ping is used by the readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

// InsertEvent commits a scored, enriched draft and returns the event with
// its assigned id and timestamp. Identifier assignment is serialized by the
// database sequence, and a committed row is visible to every subsequent
// reader, which is the ordering guarantee the read views depend on.
func (p *PostgresStore) InsertEvent(
	ctx context.Context,
	draft models.EventDraft,
	score float64,
	isAnomaly bool,
	geo models.Geo,
	sensorID string,
) (models.Event, error) {

	if err := draft.Validate(); err != nil {
		return models.Event{}, err
	}
	if score < 0 || score > 1 {
		return models.Event{}, models.NewValidationError("score must be in [0,1]")
	}

	ev := models.Event{
		SourceAddress: draft.SourceAddress,
		Service:       draft.Service,
		Action:        draft.Action,
		TargetFile:    draft.TargetFile,
		UserAgent:     draft.UserAgent,
		Score:         score,
		IsAnomaly:     isAnomaly,
		Country:       nullable(geo.Country),
		Region:        nullable(geo.Region),
		City:          nullable(geo.City),
		ISP:           nullable(geo.ISP),
		SensorID:      sensorID,
	}

	err := p.pool.QueryRow(ctx, `
		INSERT INTO events (
			source_address, service, action, target_file, user_agent,
			score, is_anomaly, country, region, city, isp, sensor_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id, created_at
	`, ev.SourceAddress, ev.Service, ev.Action, ev.TargetFile, ev.UserAgent,
		ev.Score, ev.IsAnomaly, ev.Country, ev.Region, ev.City, ev.ISP, ev.SensorID,
	).Scan(&ev.ID, &ev.CreatedAt)
	if err != nil {
		return models.Event{}, fmt.Errorf("insert event: %w", err)
	}

	ev.CreatedAt = ev.CreatedAt.UTC()
	return ev, nil
}

// Filter selects events on the query path. Zero values mean "no constraint".
type Filter struct {
	SourceAddress string
	Service       string
	Action        string
	MinScore      *float64
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
	Ascending     bool
}

// QueryEvents returns events matching the filter, most recent first unless
// the caller asks for chronological order. The limit is clamped to MaxLimit.
func (p *PostgresStore) QueryEvents(ctx context.Context, f Filter) ([]models.Event, error) {
	var (
		conds []string
		args  []any
	)

	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.SourceAddress != "" {
		add("source_address = $%d", f.SourceAddress)
	}
	if f.Service != "" {
		add("service = $%d", f.Service)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.MinScore != nil {
		add("score >= $%d", *f.MinScore)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at < $%d", *f.To)
	}

	query := `
		SELECT id, source_address, service, action, target_file, user_agent,
		       score, is_anomaly, country, region, city, isp, sensor_id, created_at
		FROM events`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	order := "DESC"
	if f.Ascending {
		order = "ASC"
	}
	query += " ORDER BY created_at " + order + ", id " + order

	args = append(args, clampLimit(f.Limit))
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// AnalyticsData is one consistent snapshot of the aggregation queries.
// Bucket maps are sparse; the analytics package zero-fills them.
type AnalyticsData struct {
	Totals       models.Totals
	Buckets      map[time.Time]int64
	TopServices  []models.TopEntry
	TopActions   []models.TopEntry
	TopCountries []models.TopEntry
	TopSources   []models.TopEntry
}

// Analytics computes the rollup for [from, to) with the given bucket width.
// All statements run inside one read-only repeatable-read transaction so the
// call never mixes partially committed state.
func (p *PostgresStore) Analytics(ctx context.Context, from, to time.Time, bucket time.Duration) (AnalyticsData, error) {
	data := AnalyticsData{Buckets: map[time.Time]int64{}}

	err := p.readSnapshot(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT COUNT(*),
			       COUNT(*) FILTER (WHERE score >= $3),
			       COUNT(DISTINCT source_address),
			       COALESCE(AVG(score), 0)
			FROM events
			WHERE created_at >= $1 AND created_at < $2
		`, from, to, highRiskScore).Scan(
			&data.Totals.TotalAttacks, &data.Totals.HighRisk,
			&data.Totals.UniqueSources, &data.Totals.AvgScore,
		)
		if err != nil {
			return fmt.Errorf("totals: %w", err)
		}

		rows, err := tx.Query(ctx, `
			SELECT to_timestamp(floor(extract(epoch FROM created_at) / $3) * $3) AS bucket,
			       COUNT(*)
			FROM events
			WHERE created_at >= $1 AND created_at < $2
			GROUP BY bucket
		`, from, to, analytics.WidthSeconds(bucket))
		if err != nil {
			return fmt.Errorf("time series: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				t time.Time
				n int64
			)
			if err := rows.Scan(&t, &n); err != nil {
				return fmt.Errorf("scan bucket: %w", err)
			}
			data.Buckets[t.UTC()] = n
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for _, dim := range []struct {
			col  string
			dest *[]models.TopEntry
		}{
			{"service", &data.TopServices},
			{"action", &data.TopActions},
			{"country", &data.TopCountries},
			{"source_address", &data.TopSources},
		} {
			entries, err := topBy(ctx, tx, dim.col, from, to)
			if err != nil {
				return err
			}
			*dim.dest = entries
		}

		return nil
	})
	if err != nil {
		return AnalyticsData{}, err
	}

	return data, nil
}

// topBy ranks one dimension over the window. Ties break toward the group
// whose first event was inserted earliest (MIN(id)), keeping the ordering
// stable and deterministic.
func topBy(ctx context.Context, tx pgx.Tx, column string, from, to time.Time) ([]models.TopEntry, error) {
	// column comes from a fixed internal list, never from a caller.
	query := fmt.Sprintf(`
		SELECT %[1]s, COUNT(*) AS cnt
		FROM events
		WHERE created_at >= $1 AND created_at < $2 AND %[1]s IS NOT NULL AND %[1]s <> ''
		GROUP BY %[1]s
		ORDER BY cnt DESC, MIN(id) ASC
		LIMIT $3
	`, column)

	rows, err := tx.Query(ctx, query, from, to, topN)
	if err != nil {
		return nil, fmt.Errorf("top %s: %w", column, err)
	}
	defer rows.Close()

	var entries []models.TopEntry
	for rows.Next() {
		var e models.TopEntry
		if err := rows.Scan(&e.Key, &e.Count); err != nil {
			return nil, fmt.Errorf("scan top %s: %w", column, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// InsightsData is one consistent snapshot of the anomaly-centric queries.
type InsightsData struct {
	AvgAnomalyScore  float64
	TotalAnomalies   int64
	Trend            map[time.Time]models.ScoreBucket
	HighScoreSources []models.HighScoreSource
	RiskCounts       map[string]int64
}

// MLInsights aggregates the scoring view: overall averages across the whole
// store, plus a bucketed trend over [from, to).
func (p *PostgresStore) MLInsights(ctx context.Context, from, to time.Time, bucket time.Duration) (InsightsData, error) {
	data := InsightsData{
		Trend:      map[time.Time]models.ScoreBucket{},
		RiskCounts: map[string]int64{},
	}

	err := p.readSnapshot(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT COALESCE(AVG(score), 0),
			       COUNT(*) FILTER (WHERE is_anomaly)
			FROM events
		`).Scan(&data.AvgAnomalyScore, &data.TotalAnomalies)
		if err != nil {
			return fmt.Errorf("anomaly totals: %w", err)
		}

		rows, err := tx.Query(ctx, `
			SELECT to_timestamp(floor(extract(epoch FROM created_at) / $3) * $3) AS bucket,
			       AVG(score),
			       COUNT(*)
			FROM events
			WHERE created_at >= $1 AND created_at < $2
			GROUP BY bucket
		`, from, to, analytics.WidthSeconds(bucket))
		if err != nil {
			return fmt.Errorf("anomaly trend: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				t time.Time
				b models.ScoreBucket
			)
			if err := rows.Scan(&t, &b.AvgScore, &b.Count); err != nil {
				return fmt.Errorf("scan trend bucket: %w", err)
			}
			data.Trend[t.UTC()] = b
		}
		if err := rows.Err(); err != nil {
			return err
		}

		srcRows, err := tx.Query(ctx, `
			SELECT source_address, AVG(score) AS avg_score, COUNT(*)
			FROM events
			GROUP BY source_address
			HAVING AVG(score) >= $1
			ORDER BY avg_score DESC, MIN(id) ASC
			LIMIT $2
		`, highRiskScore, topN)
		if err != nil {
			return fmt.Errorf("high score sources: %w", err)
		}
		defer srcRows.Close()

		for srcRows.Next() {
			var s models.HighScoreSource
			if err := srcRows.Scan(&s.SourceAddress, &s.AvgScore, &s.Count); err != nil {
				return fmt.Errorf("scan high score source: %w", err)
			}
			data.HighScoreSources = append(data.HighScoreSources, s)
		}
		if err := srcRows.Err(); err != nil {
			return err
		}

		// Band boundaries must match the alert severity bands.
		bandRows, err := tx.Query(ctx, `
			SELECT CASE
			         WHEN score >= 0.90 THEN 'CRITICAL'
			         WHEN score >= 0.85 THEN 'HIGH'
			         WHEN score >= 0.75 THEN 'MEDIUM'
			         ELSE 'LOW'
			       END AS band,
			       COUNT(*)
			FROM events
			GROUP BY band
		`)
		if err != nil {
			return fmt.Errorf("risk distribution: %w", err)
		}
		defer bandRows.Close()

		for bandRows.Next() {
			var (
				band string
				n    int64
			)
			if err := bandRows.Scan(&band, &n); err != nil {
				return fmt.Errorf("scan risk band: %w", err)
			}
			data.RiskCounts[band] = n
		}
		return bandRows.Err()
	})
	if err != nil {
		return InsightsData{}, err
	}

	return data, nil
}

// Investigate assembles the full report for one source address in a single
// snapshot. An address with no history yields an empty zero-valued report.
func (p *PostgresStore) Investigate(ctx context.Context, address string, eventLimit, trendLimit int) (models.InvestigationReport, error) {
	report := models.InvestigationReport{
		SourceAddress: address,
		Events:        []models.Event{},
		ScoreTrend:    []models.TrendPoint{},
	}

	err := p.readSnapshot(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT COUNT(*),
			       COALESCE(AVG(score), 0),
			       COALESCE(MAX(score), 0),
			       COUNT(DISTINCT action),
			       COUNT(DISTINCT service),
			       MIN(created_at),
			       MAX(created_at)
			FROM events
			WHERE source_address = $1
		`, address).Scan(
			&report.Stats.TotalAttacks, &report.Stats.AvgScore, &report.Stats.MaxScore,
			&report.Stats.UniqueActions, &report.Stats.UniqueServices,
			&report.Stats.FirstSeen, &report.Stats.LastSeen,
		)
		if err != nil {
			return fmt.Errorf("investigation stats: %w", err)
		}

		// "No activity" is a valid answer, not an error.
		if report.Stats.TotalAttacks == 0 {
			return nil
		}

		rows, err := tx.Query(ctx, `
			SELECT id, source_address, service, action, target_file, user_agent,
			       score, is_anomaly, country, region, city, isp, sensor_id, created_at
			FROM events
			WHERE source_address = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		`, address, clampLimit(eventLimit))
		if err != nil {
			return fmt.Errorf("investigation events: %w", err)
		}
		defer rows.Close()

		report.Events, err = scanEvents(rows)
		if err != nil {
			return err
		}

		trendRows, err := tx.Query(ctx, `
			SELECT created_at, score
			FROM events
			WHERE source_address = $1
			ORDER BY created_at ASC, id ASC
			LIMIT $2
		`, address, clampLimit(trendLimit))
		if err != nil {
			return fmt.Errorf("score trend: %w", err)
		}
		defer trendRows.Close()

		for trendRows.Next() {
			var pt models.TrendPoint
			if err := trendRows.Scan(&pt.Time, &pt.Score); err != nil {
				return fmt.Errorf("scan trend point: %w", err)
			}
			pt.Time = pt.Time.UTC()
			report.ScoreTrend = append(report.ScoreTrend, pt)
		}
		if err := trendRows.Err(); err != nil {
			return err
		}

		// Most recent enrichment observed for this address, if any. A lookup
		// can resolve only some fields, so any non-null field counts.
		var geo models.Geo
		err = tx.QueryRow(ctx, `
			SELECT COALESCE(country, ''), COALESCE(region, ''), COALESCE(city, ''), COALESCE(isp, '')
			FROM events
			WHERE source_address = $1
			  AND (country IS NOT NULL OR region IS NOT NULL OR city IS NOT NULL OR isp IS NOT NULL)
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		`, address).Scan(&geo.Country, &geo.Region, &geo.City, &geo.ISP)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			// never enriched; leave Geo nil
		case err != nil:
			return fmt.Errorf("investigation geo: %w", err)
		default:
			report.Geo = &geo
		}

		return nil
	})
	if err != nil {
		return models.InvestigationReport{}, err
	}

	if report.Stats.FirstSeen != nil {
		t := report.Stats.FirstSeen.UTC()
		report.Stats.FirstSeen = &t
	}
	if report.Stats.LastSeen != nil {
		t := report.Stats.LastSeen.UTC()
		report.Stats.LastSeen = &t
	}

	return report, nil
}

// readSnapshot runs fn inside a read-only repeatable-read transaction: one
// MVCC snapshot per call, without blocking writers.
func (p *PostgresStore) readSnapshot(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("begin read snapshot: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// scanEvents drains an event SELECT into models, normalizing timestamps to UTC.
func scanEvents(rows pgx.Rows) ([]models.Event, error) {
	events := []models.Event{}
	for rows.Next() {
		var ev models.Event
		err := rows.Scan(
			&ev.ID, &ev.SourceAddress, &ev.Service, &ev.Action,
			&ev.TargetFile, &ev.UserAgent, &ev.Score, &ev.IsAnomaly,
			&ev.Country, &ev.Region, &ev.City, &ev.ISP, &ev.SensorID, &ev.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.CreatedAt = ev.CreatedAt.UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
