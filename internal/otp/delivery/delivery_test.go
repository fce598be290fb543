package delivery_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/otpd/internal/otp/delivery"
	"github.com/aussiebroadwan/otpd/internal/otp/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	phone = domain.MustParseIdentifier("9876543210")
	email = domain.MustParseIdentifier("user@example.com")
)

func newGateway(url string) *delivery.SMSGateway {
	g := delivery.NewSMSGateway("test-api-key", url, "OTPD")
	g.Backoff = time.Millisecond
	return g
}

func TestSMSGatewaySend(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "test-api-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	require.NoError(t, newGateway(srv.URL).Send(context.Background(), phone, "004217"))
	require.Equal(t, map[string]any{
		"route":     "otp",
		"numbers":   "9876543210",
		"variables": "004217",
		"sender":    "OTPD",
	}, got)
}

func TestSMSGatewayRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, newGateway(srv.URL).Send(context.Background(), phone, "123456"))
	require.EqualValues(t, 3, calls.Load())
}

func TestSMSGatewayGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"server error"}`))
	}))
	defer srv.Close()

	err := newGateway(srv.URL).Send(context.Background(), phone, "123456")
	require.ErrorContains(t, err, "status=500")
	require.EqualValues(t, 3, calls.Load()) // first try + 2 retries
}

func TestSMSGatewayClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid request"}`))
	}))
	defer srv.Close()

	err := newGateway(srv.URL).Send(context.Background(), phone, "123456")
	require.ErrorContains(t, err, "status=400")
	require.ErrorContains(t, err, "invalid request")
	require.NotContains(t, err.Error(), "123456")
	require.EqualValues(t, 1, calls.Load())
}

func TestSMSGatewayHonoursDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := newGateway(srv.URL).Send(ctx, phone, "123456")
	require.Error(t, err)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestSMSGatewayRejectsMisuse(t *testing.T) {
	require.Error(t, delivery.NewSMSGateway("", "http://x", "").Send(context.Background(), phone, "1"))
	require.Error(t, newGateway("http://x").Send(context.Background(), email, "1"))
}

func TestRouter(t *testing.T) {
	var phoneCalls, emailCalls int
	r := delivery.Router{
		Phone: delivery.ChannelFunc(func(context.Context, domain.Identifier, string) error { phoneCalls++; return nil }),
		Email: delivery.ChannelFunc(func(context.Context, domain.Identifier, string) error { emailCalls++; return nil }),
	}

	require.NoError(t, r.Send(context.Background(), phone, "1"))
	require.NoError(t, r.Send(context.Background(), email, "1"))
	require.Equal(t, 1, phoneCalls)
	require.Equal(t, 1, emailCalls)

	err := delivery.Router{}.Send(context.Background(), phone, "1")
	require.True(t, errors.Is(err, delivery.ErrNoChannel))
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := delivery.NewConsole(&buf, 15*time.Minute)

	require.NoError(t, c.Send(context.Background(), phone, "004217"))
	require.Contains(t, buf.String(), "to=9876543210")
	require.Contains(t, buf.String(), "004217")
	require.Contains(t, buf.String(), "15 minutes")
}

// fakeSMTP accepts a single message and returns what was received.
func fakeSMTP(t *testing.T) (host string, port int, received <-chan string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	out := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))
		reply := func(s string) {
			_, _ = rw.WriteString(s + "\r\n")
			_ = rw.Flush()
		}

		var transcript strings.Builder
		reply("220 localhost ESMTP")
		for {
			line, err := rw.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				reply("250 localhost")
			case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"):
				transcript.WriteString(line)
				reply("250 OK")
			case cmd == "DATA":
				reply("354 go ahead")
				for {
					l, err := rw.ReadString('\n')
					if err != nil {
						return
					}
					if l == ".\r\n" {
						break
					}
					transcript.WriteString(l)
				}
				reply("250 OK")
			case cmd == "QUIT":
				reply("221 bye")
				out <- transcript.String()
				return
			default:
				reply("502 not implemented")
			}
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port, out
}

func TestSMTPSend(t *testing.T) {
	host, port, received := fakeSMTP(t)

	s, err := delivery.NewSMTP(delivery.SMTPConfig{Host: host, Port: port, From: "otp@example.com"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Send(ctx, email, "004217"))

	select {
	case msg := <-received:
		require.Contains(t, msg, "MAIL FROM:<otp@example.com>")
		require.Contains(t, msg, "RCPT TO:<user@example.com>")
		require.Contains(t, msg, "Subject: Your verification code")
		require.Contains(t, msg, "004217")
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
}

func TestSMTPConfig(t *testing.T) {
	_, err := delivery.NewSMTP(delivery.SMTPConfig{Port: 25, From: "a@b.co"})
	require.ErrorIs(t, err, delivery.ErrSMTPHostPortRequired)

	_, err = delivery.NewSMTP(delivery.SMTPConfig{Host: "localhost", Port: 25})
	require.Error(t, err)

	s, err := delivery.NewSMTP(delivery.SMTPConfig{Host: "localhost", Port: 25, From: "a@b.co"})
	require.NoError(t, err)
	require.Error(t, s.Send(context.Background(), phone, "1"))
}

func TestRender(t *testing.T) {
	msg := delivery.Render("000123", 15*time.Minute)
	require.Contains(t, msg.Body, "000123")
	require.Contains(t, msg.Body, strconv.Itoa(15)+" minutes")
}
