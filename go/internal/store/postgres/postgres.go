package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizlive/go/internal/models"
	"github.com/mcdev12/quizlive/go/internal/sqlutil"
	"github.com/mcdev12/quizlive/go/internal/store"
)

const (
	retryAttempts = 3
	retryBaseWait = 250 * time.Millisecond
)

// Store is the Postgres session store. Row-level writes go through
// database/sql; answer snapshots bulk-load through pgx CopyFrom, which is
// the one path where row-at-a-time inserts hurt.
type Store struct {
	db   *sql.DB
	pool *pgxpool.Pool
}

// New creates a store over an open database handle and a pgx pool against
// the same database.
func New(db *sql.DB, pool *pgxpool.Pool) *Store {
	return &Store{db: db, pool: pool}
}

func (s *Store) SaveSession(ctx context.Context, session models.Session) error {
	orderBytes, err := json.Marshal(session.Order)
	if err != nil {
		return fmt.Errorf("failed to marshal item order: %w", err)
	}

	return s.withRetry(ctx, "save session", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO sessions (id, join_code, content_type, host_id, item_order, cursor, status, created_at, started_at, ended_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET
				cursor = EXCLUDED.cursor,
				status = EXCLUDED.status,
				started_at = EXCLUDED.started_at,
				ended_at = EXCLUDED.ended_at`,
			session.ID, session.JoinCode, string(session.ContentType), session.HostID,
			orderBytes, session.Cursor, string(session.Status), session.CreatedAt,
			sqlutil.ToSqlTime(session.StartedAt), sqlutil.ToSqlTime(session.EndedAt),
		)
		return err
	})
}

func (s *Store) LoadSession(ctx context.Context, sessionID uuid.UUID) (models.Session, error) {
	var (
		session    models.Session
		orderBytes []byte
		started    sql.NullTime
		ended      sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, join_code, content_type, host_id, item_order, cursor, status, created_at, started_at, ended_at
		FROM sessions WHERE id = $1`, sessionID,
	).Scan(
		&session.ID, &session.JoinCode, &session.ContentType, &session.HostID,
		&orderBytes, &session.Cursor, &session.Status, &session.CreatedAt,
		&started, &ended,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, store.ErrNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to load session: %w", err)
	}

	if err := json.Unmarshal(orderBytes, &session.Order); err != nil {
		return models.Session{}, fmt.Errorf("failed to unmarshal item order: %w", err)
	}
	session.StartedAt = sqlutil.FromSqlTime(started)
	session.EndedAt = sqlutil.FromSqlTime(ended)
	return session, nil
}

func (s *Store) SaveParticipant(ctx context.Context, p models.Participant) error {
	return s.withRetry(ctx, "save participant", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO participants (id, session_id, display_name, identity_kind, contact_info, connection_state, joined_at, last_seen_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				display_name = EXCLUDED.display_name,
				connection_state = EXCLUDED.connection_state,
				last_seen_at = EXCLUDED.last_seen_at`,
			p.ID, p.SessionID, p.DisplayName, string(p.IdentityKind),
			sqlutil.ToSqlString(p.ContactInfo), string(p.ConnectionState), p.JoinedAt, p.LastSeenAt,
		)
		return err
	})
}

// ListParticipants returns a session's full roster, used to rehydrate the
// registry when a session is restored after a restart.
func (s *Store) ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, display_name, identity_kind, contact_info, connection_state, joined_at, last_seen_at
		FROM participants WHERE session_id = $1`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var out []models.Participant
	for rows.Next() {
		var (
			p       models.Participant
			contact sql.NullString
		)
		if err := rows.Scan(
			&p.ID, &p.SessionID, &p.DisplayName, &p.IdentityKind,
			&contact, &p.ConnectionState, &p.JoinedAt, &p.LastSeenAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		p.ContactInfo = sqlutil.FromSqlString(contact, "")
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveAnswerSnapshot records an item's frozen result: the per-option counts
// row plus every answer, bulk-loaded in one CopyFrom.
func (s *Store) SaveAnswerSnapshot(ctx context.Context, sessionID uuid.UUID, snapshot models.AggregateSnapshot) error {
	countBytes, err := json.Marshal(snapshot.Counts)
	if err != nil {
		return fmt.Errorf("failed to marshal counts: %w", err)
	}

	err = s.withRetry(ctx, "save item result", func(ctx context.Context) error {
		return sqlutil.Run(ctx, s.db, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO item_results (session_id, item_id, counts, answer_count, recorded_at)
				VALUES ($1, $2, $3, $4, now())
				ON CONFLICT (session_id, item_id) DO UPDATE SET
					counts = EXCLUDED.counts,
					answer_count = EXCLUDED.answer_count,
					recorded_at = EXCLUDED.recorded_at`,
				sessionID, snapshot.ItemID, countBytes, len(snapshot.Answers),
			)
			return err
		})
	})
	if err != nil {
		return err
	}
	if len(snapshot.Answers) == 0 {
		return nil
	}

	return s.withRetry(ctx, "copy answers", func(ctx context.Context) error {
		return s.copyAnswers(ctx, sessionID, snapshot)
	})
}

func (s *Store) copyAnswers(ctx context.Context, sessionID uuid.UUID, snapshot models.AggregateSnapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin copy tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Replace, not append: a retried snapshot must not double the rows.
	if _, err := tx.Exec(ctx,
		`DELETE FROM session_answers WHERE session_id = $1 AND item_id = $2`,
		sessionID, snapshot.ItemID,
	); err != nil {
		return fmt.Errorf("failed to clear prior answers: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"session_answers"},
		[]string{"session_id", "item_id", "participant_id", "option_id", "free_text", "time_taken_ms", "submitted_at", "updated_at"},
		pgx.CopyFromSlice(len(snapshot.Answers), func(i int) ([]any, error) {
			a := snapshot.Answers[i]
			var optionID any
			if a.OptionID != uuid.Nil {
				optionID = a.OptionID
			}
			var freeText any
			if a.FreeText != "" {
				freeText = a.FreeText
			}
			return []any{sessionID, a.ItemID, a.ParticipantID, optionID, freeText, a.TimeTakenMs, a.SubmittedAt, a.UpdatedAt}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to copy answers: %w", err)
	}
	return tx.Commit(ctx)
}

// withRetry is the store's own retry policy: progression upstream is never
// blocked on it, so a transient failure just costs another attempt here.
func (s *Store) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt < retryAttempts {
			log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("store write failed, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBaseWait * time.Duration(attempt)):
			}
		}
	}
	return fmt.Errorf("%s after %d attempts: %w", op, retryAttempts, err)
}
