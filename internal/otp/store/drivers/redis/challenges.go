package redis

import (
	"context"
	"fmt"
	"strconv"
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
	hh := cryptox.FingerprintToken(handle)

	keys := []string{r.s.challengeKey(hh), r.s.targetKey(c.Target.Value)}
	err = putScript.Run(ctx, r.s.client, keys,
		r.s.prefix,
		hh,
		r.s.ttl(c.ExpiresAt).Milliseconds(),
		c.CreatedAt.UnixMilli(),
		c.ID.String(),
		string(c.Target.Kind),
		c.Target.Value,
		c.CodeHash,
		c.RemainingAttempts,
		c.CreatedAt.UnixMilli(),
		c.SentAt.UnixMilli(),
		c.ExpiresAt.UnixMilli(),
	).Err()
	if err != nil {
		return "", fmt.Errorf("redis: put challenge: %w", err)
	}

	return handle, nil
}

func (r *challengesRepo) GetChallenge(ctx context.Context, handle string) (domain.Challenge, error) {
	fields, err := r.s.client.HGetAll(ctx, r.s.challengeKey(cryptox.FingerprintToken(handle))).Result()
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("redis: get challenge: %w", err)
	}
	if len(fields) == 0 {
		return domain.Challenge{}, store.ErrNotFound
	}
	return mapChallenge(fields)
}

func (r *challengesRepo) MarkAttemptFailed(ctx context.Context, handle string) (int, error) {
	key := r.s.challengeKey(cryptox.FingerprintToken(handle))

	n, err := markScript.Run(ctx, r.s.client, []string{key}, r.s.clock().UnixMilli()).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis: mark attempt: %w", err)
	}

	switch n {
	case -2:
		return 0, store.ErrNotFound
	case -1:
		return 0, store.ErrNotPending
	}
	return int(n), nil
}

func (r *challengesRepo) ConsumeChallenge(ctx context.Context, handle string, now time.Time) (bool, error) {
	key := r.s.challengeKey(cryptox.FingerprintToken(handle))

	n, err := consumeScript.Run(ctx, r.s.client, []string{key}, now.UnixMilli()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis: consume: %w", err)
	}
	if n == -2 {
		return false, store.ErrNotFound
	}
	return n == 1, nil
}

func (r *challengesRepo) RotateCode(ctx context.Context, handle, codeHash string, sentAt, expiresAt time.Time) error {
	hh := cryptox.FingerprintToken(handle)

	n, err := rotateScript.Run(ctx, r.s.client, []string{r.s.challengeKey(hh)},
		codeHash,
		sentAt.UnixMilli(),
		expiresAt.UnixMilli(),
		r.s.ttl(expiresAt).Milliseconds(),
		r.s.targetPrefix(),
		hh,
	).Int64()
	if err != nil {
		return fmt.Errorf("redis: rotate code: %w", err)
	}

	switch n {
	case -2:
		return store.ErrNotFound
	case -1:
		return store.ErrNotPending
	}
	return nil
}

// DeleteExpiredChallenges does nothing: keys carry their own TTL.
func (r *challengesRepo) DeleteExpiredChallenges(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func mapChallenge(f map[string]string) (domain.Challenge, error) {
	var (
		ints [6]int64
		err  error
	)
	for i, name := range []string{"remaining", "resend_count", "created_at", "sent_at", "expires_at", "updated_at"} {
		if ints[i], err = strconv.ParseInt(f[name], 10, 64); err != nil {
			return domain.Challenge{}, fmt.Errorf("redis: corrupt challenge field %s: %w", name, err)
		}
	}

	return domain.Challenge{
		ID:                idx.ID(f["id"]),
		Target:            domain.Identifier{Kind: domain.Kind(f["target_kind"]), Value: f["target"]},
		CodeHash:          f["code_hash"],
		State:             domain.State(f["state"]),
		RemainingAttempts: int(ints[0]),
		ResendCount:       int(ints[1]),
		CreatedAt:         time.UnixMilli(ints[2]).UTC(),
		SentAt:            time.UnixMilli(ints[3]).UTC(),
		ExpiresAt:         time.UnixMilli(ints[4]).UTC(),
		UpdatedAt:         time.UnixMilli(ints[5]).UTC(),
	}, nil
}
