// Package storage persists markets and their YES-token price histories in
// SQLite and serves historical windows of those histories to the pattern
// search.
//
// Price points are keyed by (token, timestamp). Writing a point for an
// existing key overwrites its price, so re-fetching an overlapping history
// range is harmless. Rotation keeps the number of markets and the number of
// points per token bounded.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rewired-gh/polypattern/internal/models"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a market does not exist.
var ErrNotFound = errors.New("not found")

// MemoryPath opens a private in-memory database, mostly for tests.
const MemoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS markets (
	id              TEXT PRIMARY KEY,
	event_id        TEXT NOT NULL,
	market_id       TEXT NOT NULL,
	market_question TEXT NOT NULL DEFAULT '',
	title           TEXT NOT NULL DEFAULT '',
	event_url       TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL DEFAULT '',
	yes_probability REAL NOT NULL,
	volume_24hr     REAL NOT NULL DEFAULT 0,
	liquidity       REAL NOT NULL DEFAULT 0,
	active          INTEGER NOT NULL DEFAULT 0,
	closed          INTEGER NOT NULL DEFAULT 0,
	last_updated    INTEGER NOT NULL,
	created_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS price_points (
	token_id TEXT NOT NULL,
	ts       INTEGER NOT NULL,
	price    REAL NOT NULL,
	PRIMARY KEY (token_id, ts)
);
`

// Storage is a SQLite-backed store for markets and price points. It is safe
// for concurrent use.
type Storage struct {
	db *sql.DB

	// Configuration
	maxMarkets         int
	maxPointsPerMarket int
}

// New opens (creating if needed) the database at dbPath and applies the
// schema. Use MemoryPath for a throwaway database.
func New(maxMarkets, maxPointsPerMarket int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "polypattern", "polypattern.db")
	}

	dsn := dbPath
	if dbPath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		dsn = "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers and keeps an in-memory
	// database shared by every query.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Storage{
		db:                 db,
		maxMarkets:         maxMarkets,
		maxPointsPerMarket: maxPointsPerMarket,
	}, nil
}

// Close releases the database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// AddMarket inserts a market, replacing any stored market with the same ID.
func (s *Storage) AddMarket(market *models.Market) error {
	if err := market.Validate(); err != nil {
		return fmt.Errorf("invalid market: %w", err)
	}

	_, err := s.db.Exec(`
		INSERT INTO markets (id, event_id, market_id, market_question, title, event_url, category,
			yes_probability, volume_24hr, liquidity, active, closed, last_updated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			event_id = excluded.event_id,
			market_id = excluded.market_id,
			market_question = excluded.market_question,
			title = excluded.title,
			event_url = excluded.event_url,
			category = excluded.category,
			yes_probability = excluded.yes_probability,
			volume_24hr = excluded.volume_24hr,
			liquidity = excluded.liquidity,
			active = excluded.active,
			closed = excluded.closed,
			last_updated = excluded.last_updated,
			created_at = excluded.created_at`,
		market.ID, market.EventID, market.MarketID, market.MarketQuestion, market.Title,
		market.EventURL, market.Category, market.YesProbability, market.Volume24hr,
		market.Liquidity, market.Active, market.Closed,
		toUnix(market.LastUpdated), toUnix(market.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to store market %s: %w", market.ID, err)
	}
	return nil
}

// GetMarket retrieves a market by token ID
func (s *Storage) GetMarket(id string) (*models.Market, error) {
	row := s.db.QueryRow(`SELECT `+marketColumns+` FROM markets WHERE id = ?`, id)
	market, err := scanMarket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("market %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load market %s: %w", id, err)
	}
	return market, nil
}

// GetAllMarkets returns all markets ordered by ID
func (s *Storage) GetAllMarkets() ([]*models.Market, error) {
	rows, err := s.db.Query(`SELECT ` + marketColumns + ` FROM markets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list markets: %w", err)
	}
	defer rows.Close()

	markets := make([]*models.Market, 0)
	for rows.Next() {
		market, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan market: %w", err)
		}
		markets = append(markets, market)
	}
	return markets, rows.Err()
}

// UpdateMarket updates an existing market
func (s *Storage) UpdateMarket(market *models.Market) error {
	if err := market.Validate(); err != nil {
		return fmt.Errorf("invalid market: %w", err)
	}

	res, err := s.db.Exec(`
		UPDATE markets SET event_id = ?, market_id = ?, market_question = ?, title = ?,
			event_url = ?, category = ?, yes_probability = ?, volume_24hr = ?, liquidity = ?,
			active = ?, closed = ?, last_updated = ?, created_at = ?
		WHERE id = ?`,
		market.EventID, market.MarketID, market.MarketQuestion, market.Title, market.EventURL,
		market.Category, market.YesProbability, market.Volume24hr, market.Liquidity,
		market.Active, market.Closed, toUnix(market.LastUpdated), toUnix(market.CreatedAt),
		market.ID)
	if err != nil {
		return fmt.Errorf("failed to update market %s: %w", market.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("market %s: %w", market.ID, ErrNotFound)
	}
	return nil
}

// AddPricePoints stores points in one transaction. A point whose token and
// timestamp are already stored overwrites the stored price.
func (s *Storage) AddPricePoints(points []models.PricePoint) error {
	for i := range points {
		if err := points[i].Validate(); err != nil {
			return fmt.Errorf("invalid price point %d: %w", i, err)
		}
	}
	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO price_points (token_id, ts, price) VALUES (?, ?, ?)
		ON CONFLICT(token_id, ts) DO UPDATE SET price = excluded.price`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(p.TokenID, toUnix(p.Timestamp), p.Price); err != nil {
			return fmt.Errorf("failed to store price point for %s: %w", p.TokenID, err)
		}
	}
	return tx.Commit()
}

// GetSeries returns the stored history of tokenID between from and to,
// inclusive. A zero bound leaves that side open.
func (s *Storage) GetSeries(tokenID string, from, to time.Time) (models.TimeSeries, error) {
	return s.getSeries(context.Background(), tokenID, from, to)
}

func (s *Storage) getSeries(ctx context.Context, tokenID string, from, to time.Time) (models.TimeSeries, error) {
	lo, hi := int64(minInt64), int64(maxInt64)
	if !from.IsZero() {
		lo = toUnix(from)
	}
	if !to.IsZero() {
		hi = toUnix(to)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, price FROM price_points
		WHERE token_id = ? AND ts >= ? AND ts <= ?
		ORDER BY ts`, tokenID, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("failed to query series %s: %w", tokenID, err)
	}
	return scanSeries(rows)
}

// LatestSeries returns the last n stored points of tokenID in timestamp
// order.
func (s *Storage) LatestSeries(tokenID string, n int) (models.TimeSeries, error) {
	rows, err := s.db.Query(`
		SELECT ts, price FROM (
			SELECT ts, price FROM price_points WHERE token_id = ? ORDER BY ts DESC LIMIT ?
		) ORDER BY ts`, tokenID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest series %s: %w", tokenID, err)
	}
	return scanSeries(rows)
}

// CountPricePoints returns the number of stored points for tokenID.
func (s *Storage) CountPricePoints(tokenID string) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM price_points WHERE token_id = ?`, tokenID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count price points: %w", err)
	}
	return n, nil
}

// RotatePricePoints removes the oldest points of every token holding more
// than the configured maximum.
func (s *Storage) RotatePricePoints() error {
	_, err := s.db.Exec(`
		DELETE FROM price_points WHERE rowid IN (
			SELECT rowid FROM (
				SELECT rowid, ROW_NUMBER() OVER (PARTITION BY token_id ORDER BY ts DESC) AS rn
				FROM price_points
			) WHERE rn > ?
		)`, s.maxPointsPerMarket)
	if err != nil {
		return fmt.Errorf("failed to rotate price points: %w", err)
	}
	return nil
}

// RotateMarkets removes the least recently updated markets, and their price
// history, when more than the configured maximum are stored.
func (s *Storage) RotateMarkets() error {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM markets`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count markets: %w", err)
	}
	if count <= s.maxMarkets {
		return nil
	}

	// Find oldest markets to remove
	rows, err := s.db.Query(`SELECT id FROM markets ORDER BY last_updated ASC, id ASC LIMIT ?`, count-s.maxMarkets)
	if err != nil {
		return fmt.Errorf("failed to select markets to rotate: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan market id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to select markets to rotate: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		if _, err := tx.Exec(`DELETE FROM price_points WHERE token_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete price points of %s: %w", id, err)
		}
		if _, err := tx.Exec(`DELETE FROM markets WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete market %s: %w", id, err)
		}
	}
	return tx.Commit()
}

const marketColumns = `id, event_id, market_id, market_question, title, event_url, category,
	yes_probability, volume_24hr, liquidity, active, closed, last_updated, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMarket(row rowScanner) (*models.Market, error) {
	var (
		m                      models.Market
		lastUpdated, createdAt int64
	)
	err := row.Scan(&m.ID, &m.EventID, &m.MarketID, &m.MarketQuestion, &m.Title, &m.EventURL,
		&m.Category, &m.YesProbability, &m.Volume24hr, &m.Liquidity, &m.Active, &m.Closed,
		&lastUpdated, &createdAt)
	if err != nil {
		return nil, err
	}
	m.LastUpdated = fromUnix(lastUpdated)
	m.CreatedAt = fromUnix(createdAt)
	return &m, nil
}

func scanSeries(rows *sql.Rows) (models.TimeSeries, error) {
	defer rows.Close()

	series := make(models.TimeSeries, 0)
	for rows.Next() {
		var (
			ts    int64
			price float64
		)
		if err := rows.Scan(&ts, &price); err != nil {
			return nil, fmt.Errorf("failed to scan price point: %w", err)
		}
		series = append(series, models.Point{Timestamp: fromUnix(ts), Value: price})
	}
	return series, rows.Err()
}

const (
	minInt64 = -1 << 63
	maxInt64 = 1<<63 - 1
)

// Timestamps are stored as Unix nanoseconds so they round-trip exactly.
func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
