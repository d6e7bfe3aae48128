package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/koth/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/koth/internal/services/koth/storage"
	"github.com/louisbranch/koth/internal/services/koth/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed award journal persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens an award journal and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := sqlitemigrate.Apply(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// RecordAward appends one award.
func (s *Store) RecordAward(ctx context.Context, award storage.AwardRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	award.King = strings.TrimSpace(award.King)
	if award.King == "" {
		return fmt.Errorf("king is required")
	}
	for name, value := range map[string]uint64{"points": award.Points, "score": award.Score, "total": award.Total} {
		if value > math.MaxInt64 {
			return fmt.Errorf("%s %d exceeds journal range", name, value)
		}
	}
	if award.CreatedAt.IsZero() {
		award.CreatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO award_journal (
	king,
	points,
	score,
	total,
	persisted,
	created_at
) VALUES (?, ?, ?, ?, ?, ?)
`,
		award.King,
		int64(award.Points),
		int64(award.Score),
		int64(award.Total),
		award.Persisted,
		award.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record award: %w", err)
	}
	return nil
}

// ListAwards lists newest-first award records.
func (s *Store) ListAwards(ctx context.Context, limit int) ([]storage.AwardRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	id,
	king,
	points,
	score,
	total,
	persisted,
	created_at
FROM award_journal
ORDER BY created_at DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list awards: %w", err)
	}
	defer rows.Close()

	records := make([]storage.AwardRecord, 0, limit)
	for rows.Next() {
		var (
			record               storage.AwardRecord
			points, score, total int64
			createdAt            int64
		)
		if err := rows.Scan(
			&record.ID,
			&record.King,
			&points,
			&score,
			&total,
			&record.Persisted,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan award: %w", err)
		}
		record.Points = uint64(points)
		record.Score = uint64(score)
		record.Total = uint64(total)
		record.CreatedAt = time.UnixMilli(createdAt).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate awards: %w", err)
	}
	return records, nil
}

var _ storage.AwardStore = (*Store)(nil)
