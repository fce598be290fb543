package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aussiebroadwan/otpd/internal/otp/domain"
	"github.com/sethvargo/go-retry"
)

const (
	defaultSMSTimeout = 15 * time.Second
	defaultSMSRetries = 2
	defaultSMSBackoff = 200 * time.Millisecond
	maxErrorBody      = 512
)

// SMSGateway posts codes to a JSON SMS gateway:
//
//	POST {BaseURL}
//	Authorization: {APIKey}
//	{"route":"otp","numbers":"9876543210","variables":"004217","sender":"..."}
//
// Network errors, 429 and 5xx responses are retried with Fibonacci backoff
// until MaxRetries or the context deadline, whichever comes first.
type SMSGateway struct {
	APIKey     string
	BaseURL    string
	Sender     string
	HTTPClient *http.Client
	MaxRetries uint64
	Backoff    time.Duration
}

func NewSMSGateway(apiKey, baseURL, sender string) *SMSGateway {
	return &SMSGateway{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Sender:     sender,
		HTTPClient: &http.Client{Timeout: defaultSMSTimeout},
		MaxRetries: defaultSMSRetries,
		Backoff:    defaultSMSBackoff,
	}
}

type smsRequest struct {
	Route     string `json:"route"`
	Numbers   string `json:"numbers"`
	Variables string `json:"variables"`
	Sender    string `json:"sender,omitempty"`
}

func (g *SMSGateway) Send(ctx context.Context, to domain.Identifier, code string) error {
	if g.APIKey == "" || g.BaseURL == "" {
		return errors.New("sms: gateway not configured")
	}
	if to.Kind != domain.KindPhone {
		return fmt.Errorf("sms: cannot send to %s identifier", to.Kind)
	}

	raw, err := json.Marshal(smsRequest{
		Route:     "otp",
		Numbers:   to.Value,
		Variables: code,
		Sender:    g.Sender,
	})
	if err != nil {
		return err
	}

	b := retry.WithMaxRetries(g.MaxRetries, retry.NewFibonacci(max(g.Backoff, time.Millisecond)))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		return g.post(ctx, raw)
	})
}

func (g *SMSGateway) post(ctx context.Context, raw []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", g.APIKey)

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return retry.RetryableError(fmt.Errorf("sms: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	err = fmt.Errorf("sms: request failed status=%d body=%s", resp.StatusCode, bytes.TrimSpace(body))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return retry.RetryableError(err)
	}
	return err
}
