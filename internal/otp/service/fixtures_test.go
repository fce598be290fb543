package service_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/otpd/internal/otp/domain"
	"github.com/aussiebroadwan/otpd/internal/otp/events"
	"github.com/aussiebroadwan/otpd/internal/otp/service"
	"github.com/aussiebroadwan/otpd/internal/otp/store/drivers/sqlite"
	"github.com/aussiebroadwan/otpd/pkg/cryptox"
	"github.com/aussiebroadwan/otpd/pkg/slogx"
	"github.com/stretchr/testify/require"
)

// cheap argon2 parameters; the real ones would make the suite crawl.
var testParams = cryptox.Argon2Params{Memory: 64, Iterations: 1, Parallelism: 1}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// outbox is a delivery channel that remembers what it sent.
type outbox struct {
	mu   sync.Mutex
	sent map[string][]string
	fail error
}

func (o *outbox) Send(_ context.Context, to domain.Identifier, code string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail != nil {
		return o.fail
	}
	if o.sent == nil {
		o.sent = map[string][]string{}
	}
	o.sent[to.Value] = append(o.sent[to.Value], code)
	return nil
}

func (o *outbox) Last(t *testing.T, to string) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	codes := o.sent[to]
	require.NotEmpty(t, codes, "nothing sent to %s", to)
	return codes[len(codes)-1]
}

func (o *outbox) Count(to string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent[to])
}

func (o *outbox) Fail(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fail = err
}

type codes []string

func (c *codes) Generate() (string, error) {
	if len(*c) == 0 {
		return "", errors.New("out of codes")
	}
	code := (*c)[0]
	*c = (*c)[1:]
	return code, nil
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) Types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Type
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	clock    *clock
	outbox   *outbox
	events   *recorder
	store    *sqlite.Store
	issuance *service.IssuanceService
	verify   *service.VerificationService
	logs     *bytes.Buffer
	ctx      context.Context
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	clk := newClock()
	box := &outbox{}
	rec := &recorder{}
	hasher := cryptox.NewSecretHasher([]byte("test-pepper"), testParams)

	logs := &bytes.Buffer{}
	logger := slog.New(slogx.Redact(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}), slogx.DefaultRedactKeys...))

	return &harness{
		clock:  clk,
		outbox: box,
		events: rec,
		store:  st,
		issuance: &service.IssuanceService{
			Store:    st,
			Hasher:   hasher,
			Channel:  box,
			Cooldown: service.NewMemoryCooldown(time.Minute),
			Events:   rec,
			Now:      clk.Now,
		},
		verify: &service.VerificationService{
			Store:  st,
			Hasher: hasher,
			Events: rec,
			Now:    clk.Now,
		},
		logs: logs,
		ctx:  slogx.WithContext(context.Background(), logger),
	}
}
