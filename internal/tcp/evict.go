package tcp

import (
	"log/slog"
	"sync"
	"time"

	"msghub/internal/protocol"
)

// Evictor implements the forced-disconnect handshake used when an
// administrator removes an account with a live session. The eviction runs on
// its own goroutine so the administrator's dispatch loop never blocks on I/O
// belonging to someone else's connection: it notifies the target, waits a
// grace period for the peer to observe the message, then unconditionally
// tears the connection down. The account removal has already been committed
// by the time Evict is called, so every failure here is swallowed.
type Evictor struct {
	registry *Registry
	grace    time.Duration
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewEvictor creates an evictor over the given session directory.
func NewEvictor(registry *Registry, grace time.Duration, logger *slog.Logger) *Evictor {
	return &Evictor{
		registry: registry,
		grace:    grace,
		logger:   logger,
	}
}

// Evict notifies and disconnects the named user's live session, if one
// exists, and returns immediately. The result reports whether a session was
// found; the eviction itself is best-effort.
func (e *Evictor) Evict(username string) bool {
	target, ok := e.registry.Lookup(username)
	if !ok {
		return false
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer target.Close()

		notice := protocol.EncodeResponse(protocol.Response{Status: protocol.StatusAccountRemoved})
		if err := target.Send(notice); err != nil {
			e.logger.Warn("evict_notify_failed",
				"username", username,
				"client_id", target.ID,
				"error", err.Error(),
			)
			return
		}
		time.Sleep(e.grace)

		e.logger.Info("session_evicted",
			"username", username,
			"client_id", target.ID,
		)
	}()
	return true
}

// Wait blocks until all in-flight evictions have finished. Tests use this
// instead of sleeping through the grace period.
func (e *Evictor) Wait() {
	e.wg.Wait()
}
