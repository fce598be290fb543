package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/otpd/internal/otp/domain"
	"github.com/aussiebroadwan/otpd/internal/otp/store"
	"github.com/aussiebroadwan/otpd/pkg/cryptox"
	"github.com/aussiebroadwan/otpd/pkg/idx"
)

type challengesRepo struct {
	s *Store
}

func (r *challengesRepo) PutChallenge(ctx context.Context, c domain.Challenge) (string, error) {
	handle, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	err = r.s.withTx(ctx, func(q *queries) error {
		if _, err := q.SupersedePending(ctx, c.Target.Value, toMillis(c.CreatedAt)); err != nil {
			return fmt.Errorf("supersede: %w", err)
		}
		return q.InsertChallenge(ctx, insertChallengeParams{
			ID:                c.ID.String(),
			HandleHash:        cryptox.FingerprintToken(handle),
			TargetKind:        string(c.Target.Kind),
			Target:            c.Target.Value,
			CodeHash:          c.CodeHash,
			RemainingAttempts: c.RemainingAttempts,
			CreatedAt:         toMillis(c.CreatedAt),
			SentAt:            toMillis(c.SentAt),
			ExpiresAt:         toMillis(c.ExpiresAt),
		})
	})
	if err != nil {
		return "", fmt.Errorf("sqlite: put challenge: %w", err)
	}

	return handle, nil
}

func (r *challengesRepo) GetChallenge(ctx context.Context, handle string) (domain.Challenge, error) {
	row, err := r.s.q.GetChallenge(ctx, cryptox.FingerprintToken(handle))
	if err != nil {
		return domain.Challenge{}, mapNotFound(err)
	}
	return mapChallenge(row), nil
}

func (r *challengesRepo) MarkAttemptFailed(ctx context.Context, handle string) (int, error) {
	hh := cryptox.FingerprintToken(handle)

	remaining, err := r.s.q.MarkAttemptFailed(ctx, hh, toMillis(r.s.clock()))
	if err != nil {
		return 0, r.notPending(ctx, hh, err)
	}
	return int(remaining), nil
}

func (r *challengesRepo) ConsumeChallenge(ctx context.Context, handle string, now time.Time) (bool, error) {
	hh := cryptox.FingerprintToken(handle)

	n, err := r.s.q.ConsumeChallenge(ctx, hh, toMillis(now))
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}

	ok, err := r.s.q.ChallengeExists(ctx, hh)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, store.ErrNotFound
	}
	return false, nil
}

func (r *challengesRepo) RotateCode(ctx context.Context, handle, codeHash string, sentAt, expiresAt time.Time) error {
	hh := cryptox.FingerprintToken(handle)

	n, err := r.s.q.RotateCode(ctx, rotateCodeParams{
		HandleHash: hh,
		CodeHash:   codeHash,
		SentAt:     toMillis(sentAt),
		ExpiresAt:  toMillis(expiresAt),
		UpdatedAt:  toMillis(sentAt),
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return r.notPending(ctx, hh, nil)
	}
	return nil
}

func (r *challengesRepo) DeleteExpiredChallenges(ctx context.Context, before time.Time) (int64, error) {
	return r.s.q.DeleteExpiredChallenges(ctx, toMillis(before))
}

// notPending tells a missing row apart from one that exists but did not
// match the pending-state guard. cause is returned as is unless it is
// sql.ErrNoRows (or nil).
func (r *challengesRepo) notPending(ctx context.Context, handleHash string, cause error) error {
	if cause != nil && mapNotFound(cause) != store.ErrNotFound {
		return cause
	}

	ok, err := r.s.q.ChallengeExists(ctx, handleHash)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	return store.ErrNotPending
}

func mapChallenge(row challengeRow) domain.Challenge {
	return domain.Challenge{
		ID:                idx.ID(row.ID),
		Target:            domain.Identifier{Kind: domain.Kind(row.TargetKind), Value: row.Target},
		CodeHash:          row.CodeHash,
		State:             domain.State(row.State),
		RemainingAttempts: int(row.RemainingAttempts),
		ResendCount:       int(row.ResendCount),
		CreatedAt:         fromMillis(row.CreatedAt),
		SentAt:            fromMillis(row.SentAt),
		ExpiresAt:         fromMillis(row.ExpiresAt),
		UpdatedAt:         fromMillis(row.UpdatedAt),
	}
}
