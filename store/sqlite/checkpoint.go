package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bpafoshizle/discogs"
)

// Load returns the checkpoint for a thread. An unknown thread yields a
// zero checkpoint with the id filled in.
func (s *Store) Load(ctx context.Context, threadID string) (discogs.Checkpoint, error) {
	start := time.Now()

	var (
		cp      = discogs.Checkpoint{ThreadID: threadID}
		rawMsgs string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT summary, messages, updated_at FROM checkpoints WHERE thread_id = ?`,
		threadID,
	).Scan(&cp.Summary, &rawMsgs, &cp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return cp, nil
	}
	if err != nil {
		return discogs.Checkpoint{}, fmt.Errorf("sqlite: load checkpoint %s: %w", threadID, err)
	}
	if err := json.Unmarshal([]byte(rawMsgs), &cp.Messages); err != nil {
		return discogs.Checkpoint{}, fmt.Errorf("sqlite: decode checkpoint %s: %w", threadID, err)
	}

	s.logger.Debug("sqlite: loaded checkpoint",
		"thread_id", threadID, "messages", len(cp.Messages), "duration", time.Since(start))
	return cp, nil
}

// Save replaces the thread's checkpoint.
func (s *Store) Save(ctx context.Context, cp discogs.Checkpoint) error {
	start := time.Now()

	if cp.UpdatedAt == 0 {
		cp.UpdatedAt = discogs.NowUnix()
	}
	msgs := cp.Messages
	if msgs == nil {
		msgs = []discogs.ChatMessage{}
	}
	rawMsgs, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("sqlite: encode checkpoint %s: %w", cp.ThreadID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (thread_id, summary, messages, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(thread_id) DO UPDATE SET
		   summary = excluded.summary,
		   messages = excluded.messages,
		   updated_at = excluded.updated_at`,
		cp.ThreadID, cp.Summary, string(rawMsgs), cp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: save checkpoint %s: %w", cp.ThreadID, err)
	}

	s.logger.Debug("sqlite: saved checkpoint",
		"thread_id", cp.ThreadID, "messages", len(cp.Messages), "duration", time.Since(start))
	return nil
}

var _ discogs.CheckpointStore = (*Store)(nil)
