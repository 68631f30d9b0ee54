// Package rcon is a client for the remote console protocol used by
// Minecraft servers to accept administrative commands over TCP.
//
// A Client owns one connection and issues requests strictly one at a time;
// concurrent callers are serialised.
package rcon

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/cloudblocks/internal/monitoring"
)

var (
	// ErrAuthentication means the server refused the password, or a command
	// was sent on a connection that never logged in.
	ErrAuthentication = errors.New("rcon: authentication failed")
	// ErrTransport wraps dial, read and write failures. The connection is
	// unusable afterwards.
	ErrTransport = errors.New("rcon: transport failure")
	// ErrCommandRejected is returned for a command the client or server would
	// not execute. The connection stays usable.
	ErrCommandRejected = errors.New("rcon: command rejected")
)

// Conn is the minimal connection a Client needs. net.Conn satisfies it;
// tests may pass one end of a net.Pipe.
type Conn interface {
	io.ReadWriter
	io.Closer
}

type deadliner interface {
	SetDeadline(t time.Time) error
}

// Options configures Dial and NewClient.
type Options struct {
	// DialTimeout bounds connection setup. Zero means no limit beyond ctx.
	DialTimeout time.Duration
	// IOTimeout bounds each request/response exchange. Zero disables it.
	IOTimeout time.Duration
}

// Client is a connected remote console.
type Client struct {
	mu      sync.Mutex
	conn    Conn
	r       *bufio.Reader
	opts    Options
	nextID  int32
	authed  bool
	closed  bool
	sent    int
	lastErr error
}

// Dial connects to addr ("host:port").
func Dial(ctx context.Context, addr string, opts Options) (*Client, error) {
	if opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.DialTimeout)
		defer cancel()
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrTransport, addr, err)
	}
	monitoring.Logf("rcon: connected to %s", addr)
	return NewClient(conn, opts), nil
}

// NewClient wraps an established connection.
func NewClient(conn Conn, opts Options) *Client {
	return &Client{
		conn:   conn,
		r:      bufio.NewReader(conn),
		opts:   opts,
		nextID: 1,
	}
}

func (c *Client) newID() int32 {
	id := c.nextID
	c.nextID++
	if c.nextID <= 0 {
		c.nextID = 1
	}
	return id
}

// exchange sends req and returns the first reply of wantType. Replies of
// other types are skipped; some servers send an empty response value ahead
// of the auth response.
func (c *Client) exchange(req Packet, wantType int32) (Packet, error) {
	if c.closed {
		return Packet{}, fmt.Errorf("%w: client closed", ErrTransport)
	}
	if c.lastErr != nil {
		return Packet{}, fmt.Errorf("%w: connection broken by earlier error: %v", ErrTransport, c.lastErr)
	}
	if d, ok := c.conn.(deadliner); ok && c.opts.IOTimeout > 0 {
		_ = d.SetDeadline(time.Now().Add(c.opts.IOTimeout))
		defer d.SetDeadline(time.Time{})
	}

	if err := Encode(c.conn, req); err != nil {
		c.lastErr = err
		return Packet{}, fmt.Errorf("%w: write: %w", ErrTransport, err)
	}
	for {
		resp, err := Decode(c.r)
		if err != nil {
			c.lastErr = err
			return Packet{}, fmt.Errorf("%w: read: %w", ErrTransport, err)
		}
		if resp.Type == wantType {
			return resp, nil
		}
	}
}

// Authenticate logs in with password. It must succeed before SendCommand.
func (c *Client) Authenticate(password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.newID()
	resp, err := c.exchange(Packet{ID: id, Type: TypeAuth, Body: password}, TypeAuthResponse)
	if err != nil {
		return err
	}
	if resp.ID == AuthFailedID {
		return fmt.Errorf("%w: password refused", ErrAuthentication)
	}
	if resp.ID != id {
		return fmt.Errorf("%w: auth response id %d, want %d", ErrAuthentication, resp.ID, id)
	}
	c.authed = true
	return nil
}

// SendCommand executes cmd and returns the server's reply text.
func (c *Client) SendCommand(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.authed {
		return "", fmt.Errorf("%w: not logged in", ErrAuthentication)
	}
	if len(cmd) > MaxCommandLen {
		return "", fmt.Errorf("%w: command is %d bytes, limit %d", ErrCommandRejected, len(cmd), MaxCommandLen)
	}

	id := c.newID()
	resp, err := c.exchange(Packet{ID: id, Type: TypeExecCommand, Body: cmd}, TypeResponseValue)
	if err != nil {
		return "", err
	}
	c.sent++
	switch resp.ID {
	case id:
		return resp.Body, nil
	case AuthFailedID:
		return "", fmt.Errorf("%w: server dropped the session", ErrAuthentication)
	default:
		return resp.Body, fmt.Errorf("%w: response id %d, want %d", ErrCommandRejected, resp.ID, id)
	}
}

// Sent returns the number of commands that received a reply.
func (c *Client) Sent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent
}

// Close releases the connection. Further calls are no-ops.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
