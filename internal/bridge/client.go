package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"
)

const (
	clientTimeout      = 5 * time.Second
	defaultDialRetries = 4
)

// ErrBridgeRejected wraps a non-2xx reply from the bridge.
var ErrBridgeRejected = errors.New("bridge rejected request")

// Client talks to a running bridge over HTTP.
type Client struct {
	base    *url.URL
	http    *http.Client
	retries uint64
}

// NewClient builds a client for addr, which may be host:port or a URL.
// Connection failures are retried retries times with exponential backoff.
func NewClient(addr string, retries int) (*Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("bridge address is required")
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	base, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("parse bridge address: %w", err)
	}
	if retries < 0 {
		retries = defaultDialRetries
	}
	return &Client{
		base:    base,
		http:    &http.Client{Timeout: clientTimeout},
		retries: uint64(retries),
	}, nil
}

// Status fetches the current session snapshot.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Proteins lists the catalog the bridge serves.
func (c *Client) Proteins(ctx context.Context) ([]ProteinInfo, error) {
	var resp []ProteinInfo
	if err := c.do(ctx, http.MethodGet, "/api/proteins", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Send posts one inbound message.
func (c *Client) Send(ctx context.Context, msg Inbound) error {
	return c.do(ctx, http.MethodPost, "/api/events", msg, nil)
}

// Dial opens the headset WebSocket, retrying while the bridge is starting.
func (c *Client) Dial(ctx context.Context) (*websocket.Conn, error) {
	wsURL := *c.base
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = "/ws"

	var ws *websocket.Conn
	err := backoff.Retry(func() error {
		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
		if err != nil {
			if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		ws = conn
		return nil
	}, c.policy(ctx))
	if err != nil {
		return nil, fmt.Errorf("dial bridge websocket: %w", err)
	}
	return ws, nil
}

func (c *Client) policy(ctx context.Context) backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	policy.MaxElapsedTime = 10 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(policy, c.retries), ctx)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = encoded
	}
	target := c.base.ResolveReference(&url.URL{Path: path}).String()

	var respBody []byte
	var status int
	err := backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.http.Do(req)
		if err != nil {
			// connection refused while the daemon starts up is worth retrying
			return err
		}
		defer resp.Body.Close()
		respBody, err = io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return backoff.Permanent(err)
		}
		status = resp.StatusCode
		if status == http.StatusServiceUnavailable {
			return fmt.Errorf("bridge busy: %s", strings.TrimSpace(string(respBody)))
		}
		return nil
	}, c.policy(ctx))
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	if status < 200 || status >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%w (%d): %s", ErrBridgeRejected, status, apiErr.Error)
		}
		return fmt.Errorf("%w (%d)", ErrBridgeRejected, status)
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
