package scoring

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/koth/internal/services/koth/scoreboard"
	"github.com/louisbranch/koth/internal/services/koth/storage"
)

type fakePersister struct {
	mu     sync.Mutex
	saves  []scoreboard.Board
	failOn map[int]error
}

func (f *fakePersister) Save(board scoreboard.Board) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := len(f.saves)
	f.saves = append(f.saves, board.Clone())
	if err, ok := f.failOn[call]; ok {
		return err
	}
	return nil
}

func (f *fakePersister) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

type fakeJournal struct {
	awards []storage.AwardRecord
	err    error
}

func (f *fakeJournal) RecordAward(_ context.Context, award storage.AwardRecord) error {
	f.awards = append(f.awards, award)
	return f.err
}

func writeKing(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write king file: %v", err)
	}
}

func newTestLoop(t *testing.T, points uint64, board scoreboard.Board, store Persister, journal storage.AwardRecorder) (*Loop, string) {
	t.Helper()
	kingPath := filepath.Join(t.TempDir(), "king.txt")
	loop, err := New(Config{KingPath: kingPath, Points: points, Interval: 10 * time.Millisecond}, board, store, journal, t.Logf)
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	return loop, kingPath
}

func TestTickAwardsValidKing(t *testing.T) {
	for _, points := range []uint64{0, 1, 3, 25} {
		store := &fakePersister{}
		loop, kingPath := newTestLoop(t, points, scoreboard.Board{"bob": 4}, store, nil)
		writeKing(t, kingPath, "alice\n")

		before := loop.Board()
		result := loop.Tick(context.Background())
		after := loop.Board()

		if after["alice"] != before["alice"]+points {
			t.Fatalf("points=%d: alice = %d, want %d", points, after["alice"], before["alice"]+points)
		}
		if after.Total() != before.Total()+points {
			t.Fatalf("points=%d: total = %d, want %d", points, after.Total(), before.Total()+points)
		}
		if result.King != "alice" || result.Score != points {
			t.Fatalf("points=%d: result = %+v", points, result)
		}
		if after["bob"] != 4 {
			t.Fatalf("points=%d: bob changed to %d", points, after["bob"])
		}
	}
}

func TestTickIgnoresInvalidKing(t *testing.T) {
	cases := map[string]*string{
		"missing":    nil,
		"empty":      strPtr(""),
		"blank":      strPtr("  \n\t\n"),
		"multi-line": strPtr("alice\nbob\n"),
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			store := &fakePersister{}
			journal := &fakeJournal{}
			loop, kingPath := newTestLoop(t, 10, scoreboard.Board{"carol": 10}, store, journal)
			if content != nil {
				writeKing(t, kingPath, *content)
			}

			result := loop.Tick(context.Background())

			if result.Scored || result.Persisted {
				t.Fatalf("result = %+v, want no mutation", result)
			}
			if got := loop.Board(); !reflect.DeepEqual(got, scoreboard.Board{"carol": 10}) {
				t.Fatalf("board = %v, want unchanged", got)
			}
			if store.count() != 0 {
				t.Fatalf("saves = %d, want 0", store.count())
			}
			if len(journal.awards) != 0 {
				t.Fatalf("journal awards = %d, want 0", len(journal.awards))
			}
		})
	}
}

func TestTickIgnoresUnreadableKingFile(t *testing.T) {
	store := &fakePersister{}
	loop, err := New(Config{KingPath: t.TempDir(), Points: 10, Interval: time.Millisecond}, nil, store, nil, t.Logf)
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}

	result := loop.Tick(context.Background())
	if result.Scored || len(loop.Board()) != 0 || store.count() != 0 {
		t.Fatalf("expected unreadable king file to be a no-op, got %+v", result)
	}
}

func TestTickPersistsOnlyOnMultiplesOfTen(t *testing.T) {
	store := &fakePersister{}
	loop, kingPath := newTestLoop(t, 3, nil, store, nil)
	writeKing(t, kingPath, "alice")

	var persistedTotals []uint64
	for i := 0; i < 20; i++ {
		result := loop.Tick(context.Background())
		if result.Persisted != (result.Total%10 == 0) {
			t.Fatalf("tick %d: persisted=%v with total %d", i+1, result.Persisted, result.Total)
		}
		if result.Persisted {
			persistedTotals = append(persistedTotals, result.Total)
		}
	}
	if want := []uint64{30, 60}; !reflect.DeepEqual(persistedTotals, want) {
		t.Fatalf("persisted totals = %v, want %v", persistedTotals, want)
	}
	if store.count() != 2 {
		t.Fatalf("saves = %d, want 2", store.count())
	}
}

func TestTickZeroPointsNeverPersists(t *testing.T) {
	store := &fakePersister{}
	loop, kingPath := newTestLoop(t, 0, scoreboard.Board{"bob": 10}, store, nil)
	writeKing(t, kingPath, "alice")

	for i := 0; i < 5; i++ {
		if result := loop.Tick(context.Background()); result.Persisted || result.Scored {
			t.Fatalf("tick %d: result = %+v, want no score change", i+1, result)
		}
	}
	if store.count() != 0 {
		t.Fatalf("saves = %d, want 0", store.count())
	}
	if score, ok := loop.Board()["alice"]; !ok || score != 0 {
		t.Fatalf("alice entry = %d (present=%v), want 0 present", score, ok)
	}
}

func TestTickSaveFailureRetriesOnNextTrigger(t *testing.T) {
	store := &fakePersister{failOn: map[int]error{0: errors.New("disk full")}}
	loop, kingPath := newTestLoop(t, 5, nil, store, nil)
	writeKing(t, kingPath, "alice")

	results := make([]Result, 4)
	for i := range results {
		results[i] = loop.Tick(context.Background())
	}

	// Totals: 5, 10 (save fails), 15, 20 (save succeeds).
	if results[1].Persisted || results[1].SaveErr == nil {
		t.Fatalf("tick 2 = %+v, want failed save", results[1])
	}
	if store.count() != 2 {
		t.Fatalf("saves = %d, want 2 (no immediate retry)", store.count())
	}
	if !results[3].Persisted || results[3].SaveErr != nil {
		t.Fatalf("tick 4 = %+v, want successful save", results[3])
	}
	if got := loop.Board()["alice"]; got != 20 {
		t.Fatalf("alice = %d, want 20", got)
	}
}

func TestTickLeaderAndRankingUseTieBreak(t *testing.T) {
	store := &fakePersister{}
	loop, kingPath := newTestLoop(t, 1, scoreboard.Board{"zed": 3, "bob": 2}, store, nil)
	writeKing(t, kingPath, "amy")

	loop.Tick(context.Background())
	loop.Tick(context.Background())
	result := loop.Tick(context.Background())

	if result.Leader != (scoreboard.Entry{ID: "amy", Score: 3}) {
		t.Fatalf("leader = %+v, want amy=3", result.Leader)
	}
	want := []scoreboard.Entry{{ID: "amy", Score: 3}, {ID: "zed", Score: 3}, {ID: "bob", Score: 2}}
	if !reflect.DeepEqual(result.Ranking, want) {
		t.Fatalf("ranking = %v, want %v", result.Ranking, want)
	}
}

func TestTickRecordsJournal(t *testing.T) {
	store := &fakePersister{}
	journal := &fakeJournal{err: errors.New("journal offline")}
	loop, kingPath := newTestLoop(t, 5, nil, store, journal)
	fixed := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	loop.clock = func() time.Time { return fixed }
	writeKing(t, kingPath, "alice")

	loop.Tick(context.Background())
	result := loop.Tick(context.Background())

	if !result.Persisted {
		t.Fatalf("expected journal failure not to block persistence: %+v", result)
	}
	if len(journal.awards) != 2 {
		t.Fatalf("journal awards = %d, want 2", len(journal.awards))
	}
	want := storage.AwardRecord{King: "alice", Points: 5, Score: 10, Total: 10, Persisted: true, CreatedAt: fixed}
	if journal.awards[1] != want {
		t.Fatalf("award = %+v, want %+v", journal.awards[1], want)
	}
}

func TestTenTicksScenario(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "data.json")
	kingPath := filepath.Join(dir, "king.txt")
	writeKing(t, kingPath, "alice\n")

	store := scoreboard.NewFileStore(dataPath)
	board, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	loop, err := New(Config{KingPath: kingPath, Points: 1, Interval: 500 * time.Millisecond}, board, store, nil, t.Logf)
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}

	for i := 0; i < 9; i++ {
		loop.Tick(context.Background())
	}
	if _, err := os.Stat(dataPath); !os.IsNotExist(err) {
		t.Fatalf("expected no data file before total reaches 10, stat err = %v", err)
	}
	loop.Tick(context.Background())

	if got := loop.Board(); !reflect.DeepEqual(got, scoreboard.Board{"alice": 10}) {
		t.Fatalf("board = %v, want alice=10", got)
	}
	data, err := os.ReadFile(dataPath)
	if err != nil {
		t.Fatalf("read data file: %v", err)
	}
	if string(data) != `{"alice":10}` {
		t.Fatalf("data file = %q, want %q", data, `{"alice":10}`)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	store := &fakePersister{}
	loop, kingPath := newTestLoop(t, 10, nil, store, nil)
	writeKing(t, kingPath, "alice")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- loop.Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for store.count() < 3 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for ticks, saves = %d", store.count())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not stop after cancel")
	}
}

func TestNewValidatesConfig(t *testing.T) {
	store := &fakePersister{}
	if _, err := New(Config{Interval: time.Second}, nil, store, nil, nil); err == nil {
		t.Fatal("expected missing king path error")
	}
	if _, err := New(Config{KingPath: "king.txt"}, nil, store, nil, nil); err == nil {
		t.Fatal("expected non-positive interval error")
	}
	if _, err := New(Config{KingPath: "king.txt", Interval: time.Second}, nil, nil, nil, nil); err == nil {
		t.Fatal("expected missing store error")
	}
}

func strPtr(s string) *string { return &s }
