package otpsdk

import (
	"net/http"
	"strings"
	"time"
)

// Client calls the otpd HTTP API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// APIKey, when set, is sent in the apikey header for gateways in front
	// of the service.
	APIKey string
}

// NewClient returns a Client with a 15 second timeout, which covers the
// server's delivery deadline.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}
