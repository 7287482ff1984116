package store

import (
	"context"
	"fmt"
)

// Entry is one journal record. Exactly one of Firing and Perform is set.
type Entry struct {
	Seq     int64
	Firing  *Firing
	Perform *Perform
}

// ReadJournal returns every firing and perform merged in seq order.
// Used by `keyflow trace` to replay what the engine did.
func (s *Store) ReadJournal(ctx context.Context) ([]Entry, error) {
	firings, err := s.ReadFirings(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	performs, err := s.ReadAllPerforms(ctx)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	entries := make([]Entry, 0, len(firings)+len(performs))
	i, j := 0, 0
	for i < len(firings) || j < len(performs) {
		if j >= len(performs) || (i < len(firings) && firings[i].Seq < performs[j].Seq) {
			entries = append(entries, Entry{Seq: firings[i].Seq, Firing: &firings[i]})
			i++
			continue
		}
		entries = append(entries, Entry{Seq: performs[j].Seq, Perform: &performs[j]})
		j++
	}
	return entries, nil
}

// Summary counts journal records.
type Summary struct {
	Firings   int
	Blocked   int
	Performs  int
	Failed    int
	LastSeq   int64
	KeyMapUID string
}

// Summarize counts the firings and performs of one key map, or of all key
// maps when keyMapUID is empty. Blocked counts fired signals whose gate was
// not satisfied.
func (s *Store) Summarize(ctx context.Context, keyMapUID string) (Summary, error) {
	sum := Summary{KeyMapUID: keyMapUID}

	where, args := "", []any{}
	if keyMapUID != "" {
		where, args = " WHERE keymap_uid = ?", []any{keyMapUID}
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN kind = 'fired' AND satisfied = 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(MAX(seq), 0)
		FROM firings`+where, args...).Scan(&sum.Firings, &sum.Blocked, &sum.LastSeq)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize firings: %w", err)
	}

	var performSeq int64
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN error != '' THEN 1 ELSE 0 END), 0),
		       COALESCE(MAX(seq), 0)
		FROM performs`+where, args...).Scan(&sum.Performs, &sum.Failed, &performSeq)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize performs: %w", err)
	}
	sum.LastSeq = max(sum.LastSeq, performSeq)
	return sum, nil
}
