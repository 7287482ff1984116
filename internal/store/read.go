package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/keyflow/internal/action"
)

const firingColumns = `id, seq, keymap_uid, trigger, kind, from_release, meta_state, satisfied, at_ms`

const performColumns = `seq, firing_id, keymap_uid, action, event, meta_state, error, at_ms`

// ReadFirings returns the firings of one key map, or of all key maps when
// keyMapUID is empty. Results are ordered by seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if no records exist.
func (s *Store) ReadFirings(ctx context.Context, keyMapUID string) ([]Firing, error) {
	query := `SELECT ` + firingColumns + ` FROM firings`
	var args []any
	if keyMapUID != "" {
		query += ` WHERE keymap_uid = ?`
		args = append(args, keyMapUID)
	}
	query += ` ORDER BY seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query firings: %w", err)
	}
	defer rows.Close()

	firings := []Firing{}
	for rows.Next() {
		f, err := scanFiring(rows)
		if err != nil {
			return nil, err
		}
		firings = append(firings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate firings: %w", err)
	}
	return firings, nil
}

// ReadFiring retrieves a single firing by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadFiring(ctx context.Context, id string) (Firing, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+firingColumns+` FROM firings WHERE id = ?`, id)
	return scanFiring(row)
}

// ReadPerforms returns the performs caused by one firing, ordered by seq.
//
// Returns an empty slice (not nil) if no records exist.
func (s *Store) ReadPerforms(ctx context.Context, firingID string) ([]Perform, error) {
	return s.queryPerforms(ctx, `SELECT `+performColumns+` FROM performs WHERE firing_id = ? ORDER BY seq ASC`, firingID)
}

// ReadAllPerforms returns every perform, ordered by seq.
func (s *Store) ReadAllPerforms(ctx context.Context) ([]Perform, error) {
	return s.queryPerforms(ctx, `SELECT `+performColumns+` FROM performs ORDER BY seq ASC`)
}

func (s *Store) queryPerforms(ctx context.Context, query string, args ...any) ([]Perform, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query performs: %w", err)
	}
	defer rows.Close()

	performs := []Perform{}
	for rows.Next() {
		p, err := scanPerform(rows)
		if err != nil {
			return nil, err
		}
		performs = append(performs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate performs: %w", err)
	}
	return performs, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanFiring(row scanner) (Firing, error) {
	var (
		f           Firing
		fromRelease int
		satisfied   int
		atMS        int64
	)
	if err := row.Scan(&f.ID, &f.Seq, &f.KeyMapUID, &f.Trigger, &f.Kind, &fromRelease, &f.MetaState, &satisfied, &atMS); err != nil {
		if err == sql.ErrNoRows {
			return Firing{}, err
		}
		return Firing{}, fmt.Errorf("scan firing: %w", err)
	}
	f.FromRelease = fromRelease != 0
	f.Satisfied = satisfied != 0
	f.At = fromMillis(atMS)
	return f, nil
}

func scanPerform(row scanner) (Perform, error) {
	var (
		p          Perform
		firingID   sql.NullString
		actionJSON string
		event      string
		atMS       int64
	)
	if err := row.Scan(&p.Seq, &firingID, &p.KeyMapUID, &actionJSON, &event, &p.MetaState, &p.Error, &atMS); err != nil {
		return Perform{}, fmt.Errorf("scan perform: %w", err)
	}

	data, err := unmarshalAction(actionJSON)
	if err != nil {
		return Perform{}, err
	}
	ev, err := action.ParseInputEventType(event)
	if err != nil {
		return Perform{}, fmt.Errorf("scan perform: %w", err)
	}

	p.FiringID = firingID.String
	p.Action = data
	p.Event = ev
	p.At = fromMillis(atMS)
	return p, nil
}
