package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/errors"
)

// Error is a failure reported by the server.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Unwrap maps the status back to a sentinel so errors.Is works across the
// wire.
func (e *Error) Unwrap() error {
	return sentinelFor(e.Code)
}

func sentinelFor(code int) error {
	switch code {
	case 400:
		return apperrors.ErrInvalidInput
	case 401:
		return apperrors.ErrUnauthorized
	case 403:
		return apperrors.ErrForbidden
	case 404:
		return apperrors.ErrDocumentNotFound
	case 429:
		return apperrors.ErrRateLimited
	case 503:
		return apperrors.ErrModelUnavailable
	case 504:
		return apperrors.ErrTimeout
	case 0:
		return nil
	}
	return apperrors.ErrInternal
}

type response struct {
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
	Code  int             `json:"code,omitempty"`
}

// Client holds one connection and redials after a transport failure. Calls
// are serialized.
type Client struct {
	addr   string
	dialer net.Dialer

	mu     sync.Mutex
	conn   net.Conn
	enc    *json.Encoder
	dec    *json.Decoder
	nextID atomic.Int64
}

// NewClient returns a client for addr. No connection is made until the
// first call.
func NewClient(addr string) *Client {
	return &Client{addr: addr, dialer: net.Dialer{Timeout: 5 * time.Second}}
}

// Dial returns a connected client.
func Dial(ctx context.Context, addr string) (*Client, error) {
	c := NewClient(addr)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect(ctx context.Context) error {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", c.addr, err)
	}
	c.conn = conn
	c.enc = json.NewEncoder(conn)
	c.dec = json.NewDecoder(conn)
	return nil
}

// Call invokes method with params and decodes the reply into result, which
// may be nil. The context deadline bounds the round trip.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshaling params: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		if err := c.connect(ctx); err != nil {
			return err
		}
	}

	deadline, _ := ctx.Deadline()
	c.conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Now())
	})
	defer stop()

	id := strconv.FormatInt(c.nextID.Add(1), 10)
	if err := c.enc.Encode(Request{Method: method, ID: id, Params: raw}); err != nil {
		c.reset()
		return c.transportErr(ctx, "sending request", err)
	}
	var resp response
	if err := c.dec.Decode(&resp); err != nil {
		c.reset()
		return c.transportErr(ctx, "reading response", err)
	}
	if resp.ID != id {
		c.reset()
		return fmt.Errorf("response id %q does not match request %q", resp.ID, id)
	}
	if resp.Error != "" {
		return &Error{Code: resp.Code, Message: resp.Error}
	}
	if result != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, result); err != nil {
			return fmt.Errorf("unmarshaling into result: %w", err)
		}
	}
	return nil
}

func (c *Client) transportErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%s: %w", op, apperrors.ErrTimeout)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (c *Client) reset() {
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn, c.enc, c.dec = nil, nil, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
