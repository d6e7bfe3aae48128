// Package storage defines the award journal contracts.
package storage

import (
	"context"
	"time"
)

// AwardRecord is one scoring mutation as written to the journal.
type AwardRecord struct {
	ID        int64
	King      string
	Points    uint64
	Score     uint64
	Total     uint64
	Persisted bool
	CreatedAt time.Time
}

// AwardRecorder appends award records.
type AwardRecorder interface {
	RecordAward(ctx context.Context, award AwardRecord) error
}

// AwardStore persists and lists award records.
type AwardStore interface {
	AwardRecorder
	ListAwards(ctx context.Context, limit int) ([]AwardRecord, error)
}
