// Package scoring runs the periodic king-of-the-hill scoring loop.
package scoring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/koth/internal/services/koth/king"
	"github.com/louisbranch/koth/internal/services/koth/scoreboard"
	"github.com/louisbranch/koth/internal/services/koth/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPersistEvery = 10
	tracerName          = "github.com/louisbranch/koth/internal/services/koth/scoring"
)

// Persister writes a full scoreboard snapshot.
type Persister interface {
	Save(board scoreboard.Board) error
}

// Config controls loop behavior.
type Config struct {
	// KingPath is the file the king designation is read from.
	KingPath string
	// Points is awarded to the king on every tick.
	Points uint64
	// Interval is the sleep between ticks.
	Interval time.Duration
	// PersistEvery triggers a save when the total is a multiple of it.
	PersistEvery uint64
	// Verbose logs every tick, not just persistence events and errors.
	Verbose bool
}

// Result describes what one tick did.
type Result struct {
	King      string
	Scored    bool
	Score     uint64
	Total     uint64
	Leader    scoreboard.Entry
	Ranking   []scoreboard.Entry
	Persisted bool
	SaveErr   error
}

// Loop owns the scoreboard. Nothing outside the loop reads or writes it.
type Loop struct {
	cfg      Config
	board    scoreboard.Board
	store    Persister
	journal  storage.AwardRecorder
	logf     func(string, ...any)
	readKing func(string) (string, error)
	clock    func() time.Time
	tracer   trace.Tracer
}

// New creates a loop over an already loaded board. journal and logf may be nil.
func New(cfg Config, board scoreboard.Board, store Persister, journal storage.AwardRecorder, logf func(string, ...any)) (*Loop, error) {
	if strings.TrimSpace(cfg.KingPath) == "" {
		return nil, fmt.Errorf("king file path is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("tick interval must be positive")
	}
	if store == nil {
		return nil, fmt.Errorf("scoreboard store is required")
	}
	if cfg.PersistEvery == 0 {
		cfg.PersistEvery = defaultPersistEvery
	}
	if board == nil {
		board = scoreboard.New()
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Loop{
		cfg:      cfg,
		board:    board,
		store:    store,
		journal:  journal,
		logf:     logf,
		readKing: king.Read,
		clock:    time.Now,
		tracer:   otel.Tracer(tracerName),
	}, nil
}

// Board returns a copy of the current scoreboard.
func (l *Loop) Board() scoreboard.Board {
	return l.board.Clone()
}

// Run ticks immediately and then once per interval until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	l.logf("scoring %d point(s) every %s from %s", l.cfg.Points, l.cfg.Interval, l.cfg.KingPath)

	timer := time.NewTimer(l.cfg.Interval)
	defer timer.Stop()
	for {
		if ctx.Err() != nil {
			return nil
		}
		l.Tick(ctx)

		timer.Reset(l.cfg.Interval)
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
	}
}

// Tick performs one scoring step: read the king, award points, and persist
// when a score changed and the total lands on a multiple of PersistEvery.
func (l *Loop) Tick(ctx context.Context) Result {
	ctx, span := l.tracer.Start(ctx, "koth.tick")
	defer span.End()

	signal, err := l.readKing(l.cfg.KingPath)
	if err != nil {
		l.logf("read king: %v", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "read king")
		return Result{}
	}
	if !king.Valid(signal) {
		if l.cfg.Verbose {
			l.logf("no king this tick")
		}
		return Result{King: signal}
	}

	score := l.board.Award(signal, l.cfg.Points)
	leader, _ := l.board.Leader()
	result := Result{
		King:    signal,
		Scored:  l.cfg.Points > 0,
		Score:   score,
		Total:   l.board.Total(),
		Leader:  leader,
		Ranking: l.board.Ranking(),
	}
	span.SetAttributes(
		attribute.String("koth.king", signal),
		attribute.Int64("koth.score", int64(score)),
		attribute.Int64("koth.total", int64(result.Total)),
	)
	if l.cfg.Verbose {
		l.logf("king %s: score=%d total=%d leader=%s", signal, score, result.Total, leader.ID)
	}
	if !result.Scored {
		return result
	}

	if result.Total%l.cfg.PersistEvery == 0 {
		if err := l.store.Save(l.board); err != nil {
			result.SaveErr = err
			l.logf("persist scoreboard: %v", err)
			span.RecordError(err)
		} else {
			result.Persisted = true
			l.logf("persisted scoreboard: leader=%s current=%s total=%d ranking=[%s]",
				leader.ID, signal, result.Total, formatRanking(result.Ranking))
		}
	}
	span.SetAttributes(attribute.Bool("koth.persisted", result.Persisted))

	l.record(ctx, result)
	return result
}

func (l *Loop) record(ctx context.Context, result Result) {
	if l.journal == nil {
		return
	}
	if err := l.journal.RecordAward(ctx, storage.AwardRecord{
		King:      result.King,
		Points:    l.cfg.Points,
		Score:     result.Score,
		Total:     result.Total,
		Persisted: result.Persisted,
		CreatedAt: l.clock().UTC(),
	}); err != nil {
		l.logf("journal award: %v", err)
	}
}

func formatRanking(entries []scoreboard.Entry) string {
	parts := make([]string, 0, len(entries))
	for _, entry := range entries {
		parts = append(parts, fmt.Sprintf("%s=%d", entry.ID, entry.Score))
	}
	return strings.Join(parts, " ")
}
