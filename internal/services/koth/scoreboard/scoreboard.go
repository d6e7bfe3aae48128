// Package scoreboard holds the participant score mapping and its JSON file
// persistence.
package scoreboard

import "sort"

// Board maps a participant identifier to its score.
type Board map[string]uint64

// Entry is one participant and its score.
type Entry struct {
	ID    string
	Score uint64
}

// New returns an empty board.
func New() Board {
	return make(Board)
}

// Award adds points to id, creating the entry when absent, and returns the
// new score.
func (b Board) Award(id string, points uint64) uint64 {
	b[id] += points
	return b[id]
}

// Total returns the sum of every score.
func (b Board) Total() uint64 {
	var total uint64
	for _, score := range b {
		total += score
	}
	return total
}

// Ranking orders entries by descending score. Equal scores are ordered by
// ascending identifier so the result never depends on map iteration order.
func (b Board) Ranking() []Entry {
	entries := make([]Entry, 0, len(b))
	for id, score := range b {
		entries = append(entries, Entry{ID: id, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].ID < entries[j].ID
	})
	return entries
}

// Leader returns the highest scoring entry, using the Ranking tie-break.
// The second result is false for an empty board.
func (b Board) Leader() (Entry, bool) {
	var (
		leader Entry
		found  bool
	)
	for id, score := range b {
		if !found || score > leader.Score || (score == leader.Score && id < leader.ID) {
			leader = Entry{ID: id, Score: score}
			found = true
		}
	}
	return leader, found
}

// Clone returns an independent copy of the board.
func (b Board) Clone() Board {
	out := make(Board, len(b))
	for id, score := range b {
		out[id] = score
	}
	return out
}
