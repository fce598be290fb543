package sqlite

import (
	"context"
	"database/sql"
	"errors"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

type challengeRow struct {
	ID                string
	TargetKind        string
	Target            string
	CodeHash          string
	State             string
	RemainingAttempts int64
	ResendCount       int64
	CreatedAt         int64
	SentAt            int64
	ExpiresAt         int64
	UpdatedAt         int64
}

const challengeColumns = `id, target_kind, target, code_hash, state, remaining_attempts,
	resend_count, created_at, sent_at, expires_at, updated_at`

func scanChallenge(row *sql.Row) (challengeRow, error) {
	var r challengeRow
	err := row.Scan(
		&r.ID, &r.TargetKind, &r.Target, &r.CodeHash, &r.State, &r.RemainingAttempts,
		&r.ResendCount, &r.CreatedAt, &r.SentAt, &r.ExpiresAt, &r.UpdatedAt,
	)
	return r, err
}

const insertChallenge = `INSERT INTO challenges (
	id, handle_hash, target_kind, target, code_hash, state, remaining_attempts,
	resend_count, created_at, sent_at, expires_at, updated_at
) VALUES (?, ?, ?, ?, ?, 'pending', ?, 0, ?, ?, ?, ?)`

type insertChallengeParams struct {
	ID                string
	HandleHash        string
	TargetKind        string
	Target            string
	CodeHash          string
	RemainingAttempts int
	CreatedAt         int64
	SentAt            int64
	ExpiresAt         int64
}

func (q *queries) InsertChallenge(ctx context.Context, p insertChallengeParams) error {
	_, err := q.db.ExecContext(ctx, insertChallenge,
		p.ID, p.HandleHash, p.TargetKind, p.Target, p.CodeHash, p.RemainingAttempts,
		p.CreatedAt, p.SentAt, p.ExpiresAt, p.CreatedAt,
	)
	return err
}

const supersedePending = `UPDATE challenges
SET state = 'superseded', updated_at = ?
WHERE target = ? AND state = 'pending'`

func (q *queries) SupersedePending(ctx context.Context, target string, now int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, supersedePending, now, target)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getChallenge = `SELECT ` + challengeColumns + ` FROM challenges WHERE handle_hash = ?`

func (q *queries) GetChallenge(ctx context.Context, handleHash string) (challengeRow, error) {
	return scanChallenge(q.db.QueryRowContext(ctx, getChallenge, handleHash))
}

const challengeExists = `SELECT 1 FROM challenges WHERE handle_hash = ?`

func (q *queries) ChallengeExists(ctx context.Context, handleHash string) (bool, error) {
	var one int
	err := q.db.QueryRowContext(ctx, challengeExists, handleHash).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Column references on the right of SET see the pre-update row.
const markAttemptFailed = `UPDATE challenges
SET remaining_attempts = remaining_attempts - 1,
    state = CASE WHEN remaining_attempts - 1 <= 0 THEN 'exhausted' ELSE state END,
    updated_at = ?
WHERE handle_hash = ? AND state = 'pending' AND remaining_attempts > 0
RETURNING remaining_attempts`

func (q *queries) MarkAttemptFailed(ctx context.Context, handleHash string, now int64) (int64, error) {
	var remaining int64
	err := q.db.QueryRowContext(ctx, markAttemptFailed, now, handleHash).Scan(&remaining)
	return remaining, err
}

const consumeChallenge = `UPDATE challenges
SET state = 'consumed', updated_at = ?
WHERE handle_hash = ? AND state = 'pending' AND remaining_attempts > 0 AND expires_at > ?`

func (q *queries) ConsumeChallenge(ctx context.Context, handleHash string, now int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, consumeChallenge, now, handleHash, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const rotateCode = `UPDATE challenges
SET code_hash = ?, sent_at = ?, expires_at = ?, resend_count = resend_count + 1, updated_at = ?
WHERE handle_hash = ? AND state = 'pending' AND remaining_attempts > 0`

type rotateCodeParams struct {
	HandleHash string
	CodeHash   string
	SentAt     int64
	ExpiresAt  int64
	UpdatedAt  int64
}

func (q *queries) RotateCode(ctx context.Context, p rotateCodeParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, rotateCode, p.CodeHash, p.SentAt, p.ExpiresAt, p.UpdatedAt, p.HandleHash)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteExpiredChallenges = `DELETE FROM challenges WHERE expires_at < ?`

func (q *queries) DeleteExpiredChallenges(ctx context.Context, before int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpiredChallenges, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
