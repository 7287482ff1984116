package store

import (
	"context"
	"database/sql"
	"fmt"
)

// WriteFiring inserts a firing record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteFiring(ctx context.Context, f Firing) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO firings
		(id, seq, keymap_uid, trigger, kind, from_release, meta_state, satisfied, at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		f.ID,
		f.Seq,
		f.KeyMapUID,
		f.Trigger,
		f.Kind,
		boolToInt(f.FromRelease),
		f.MetaState,
		boolToInt(f.Satisfied),
		toMillis(f.At),
	)
	if err != nil {
		return fmt.Errorf("write firing %s: %w", f.ID, err)
	}
	return nil
}

// WritePerform inserts a perform record.
// Uses ON CONFLICT(seq) DO NOTHING for idempotency.
//
// Note: A non-empty FiringID must reference an existing firing (foreign key constraint).
func (s *Store) WritePerform(ctx context.Context, p Perform) error {
	actionJSON, err := marshalAction(p.Action)
	if err != nil {
		return fmt.Errorf("write perform: %w", err)
	}

	firingID := sql.NullString{String: p.FiringID, Valid: p.FiringID != ""}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO performs
		(seq, firing_id, keymap_uid, action, event, meta_state, error, at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		p.Seq,
		firingID,
		p.KeyMapUID,
		actionJSON,
		p.Event.String(),
		p.MetaState,
		p.Error,
		toMillis(p.At),
	)
	if err != nil {
		return fmt.Errorf("write perform %d: %w", p.Seq, err)
	}
	return nil
}
