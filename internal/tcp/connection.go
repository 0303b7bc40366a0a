package tcp

import (
	"bufio"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"msghub/internal/model"
)

const MaxLineSize = 1024 * 1024 // 1MB max request line

// ClientConnection owns one accepted network link: buffered line reads and
// writes plus idempotent teardown. The dispatch loop is the only reader, but
// Send and Close may also be called from an eviction goroutine, so writes go
// through a mutex and teardown through a sync.Once.
type ClientConnection struct {
	ID       string
	conn     net.Conn
	reader   *bufio.Reader
	writer   *bufio.Writer
	registry *Registry
	limiter  *rate.Limiter
	logger   *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once

	mu   sync.Mutex // guards user
	user *model.User
}

// NewClientConnection wraps an accepted net.Conn.
func NewClientConnection(conn net.Conn, registry *Registry, logger *slog.Logger) *ClientConnection {
	return &ClientConnection{
		ID:       uuid.NewString(),
		conn:     conn,
		reader:   bufio.NewReader(conn),
		writer:   bufio.NewWriter(conn),
		registry: registry,
		limiter:  rate.NewLimiter(rate.Limit(10), 20), // 10 reqs/sec, burst of 20
		logger:   logger,
	}
}

// Send writes one line and flushes. On I/O failure the connection is torn
// down and the error is returned so the caller's loop can stop; nothing is
// re-raised beyond that.
func (c *ClientConnection) Send(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.writer.WriteString(line); err != nil {
		c.Close()
		return err
	}
	if err := c.writer.WriteByte('\n'); err != nil {
		c.Close()
		return err
	}
	if err := c.writer.Flush(); err != nil {
		c.Close()
		return err
	}
	return nil
}

// Receive blocks until one full line arrives. End-of-stream is reported as
// io.EOF, distinct from transport errors; both end the caller's loop.
func (c *ClientConnection) Receive() (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF {
			return "", io.EOF
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Allow consumes one rate-limiter token, reporting whether the request may
// proceed.
func (c *ClientConnection) Allow() bool {
	return c.limiter.Allow()
}

// Bind associates an authenticated user with this connection and registers
// the session.
func (c *ClientConnection) Bind(u *model.User) {
	c.mu.Lock()
	c.user = u
	c.mu.Unlock()
	c.registry.Register(u.Username, c)
}

// Unbind clears the authenticated user and unregisters the session.
func (c *ClientConnection) Unbind() {
	c.mu.Lock()
	u := c.user
	c.user = nil
	c.mu.Unlock()
	if u != nil {
		c.registry.Unregister(u.Username)
	}
}

// User returns the bound user, or nil when unauthenticated.
func (c *ClientConnection) User() *model.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// Close tears the connection down: unregisters the bound session, if any,
// and closes the underlying link (which releases both stream directions).
// Safe to call repeatedly and from any goroutine.
func (c *ClientConnection) Close() {
	c.closeOnce.Do(func() {
		c.Unbind()
		if err := c.conn.Close(); err != nil {
			c.logger.Debug("connection_close_error",
				"client_id", c.ID,
				"error", err.Error(),
			)
		}
		c.logger.Info("connection_closed", "client_id", c.ID)
	})
}

// RemoteAddr reports the peer address for logging.
func (c *ClientConnection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
