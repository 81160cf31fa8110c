// Package ingest owns the device connection: it receives raw samples,
// drives them through codec, store, broadcast, and alert evaluation in a
// fixed order, and manages the connection lifecycle.
package ingest

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"solaris-cloud/internal/alerts"
	"solaris-cloud/internal/broadcast"
	"solaris-cloud/internal/observability/metrics"
	"solaris-cloud/internal/telemetry/codec"
	telemetry "solaris-cloud/internal/telemetry/domain"
)

// Conn abstracts the device transport so the session can be tested without
// a network connection.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Acknowledgment texts sent back to the device, one per inbound message.
const (
	AckStored        = "ack stored"
	NackInvalid      = "nack invalid payload"
	NackStoreFailure = "nack store error"
)

// State is the session lifecycle state.
type State int32

const (
	// StateConnected waits for the next inbound message.
	StateConnected State = iota
	// StateProcessing runs the per-message pipeline.
	StateProcessing
	// StateClosed is terminal; no further callbacks fire.
	StateClosed
)

// Session handles one device connection. Messages are processed strictly
// one at a time in arrival order; message N+1 is not read before message N
// has finished the whole pipeline.
type Session struct {
	conn         Conn
	store        telemetry.Appender
	hub          *broadcast.Hub
	engine       *alerts.Engine
	logger       *log.Logger
	storeTimeout time.Duration

	state     atomic.Int32
	closeOnce sync.Once
}

// SessionOption configures a session.
type SessionOption func(*Session)

// WithStoreTimeout bounds each store append. Defaults to 5s.
func WithStoreTimeout(timeout time.Duration) SessionOption {
	return func(s *Session) {
		if timeout > 0 {
			s.storeTimeout = timeout
		}
	}
}

// NewSession constructs a session for one device connection.
func NewSession(conn Conn, store telemetry.Appender, hub *broadcast.Hub, engine *alerts.Engine, logger *log.Logger, opts ...SessionOption) (*Session, error) {
	if conn == nil {
		return nil, errors.New("ingest: nil conn")
	}
	if store == nil {
		return nil, errors.New("ingest: nil store")
	}
	if hub == nil {
		return nil, errors.New("ingest: nil hub")
	}
	if engine == nil {
		return nil, errors.New("ingest: nil alert engine")
	}
	if logger == nil {
		logger = log.Default()
	}
	session := &Session{
		conn:         conn,
		store:        store,
		hub:          hub,
		engine:       engine,
		logger:       logger,
		storeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(session)
	}
	return session, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Run receives messages until the connection fails or ctx is cancelled.
// Transport errors close this session only; they are returned for logging
// and never propagate past the caller.
func (s *Session) Run(ctx context.Context) error {
	defer s.Close()

	for {
		if s.State() == StateClosed {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		raw, err := s.conn.ReadMessage()
		if err != nil {
			if s.State() == StateClosed {
				return nil
			}
			return err
		}
		s.handleMessage(ctx, raw)
	}
}

// Close transitions the session to Closed and releases the connection.
// Idempotent; safe to call from another goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		_ = s.conn.Close()
	})
}

// handleMessage runs the five pipeline steps for one inbound message.
// Early exits skip all later steps; per-message failures never close the
// connection.
func (s *Session) handleMessage(ctx context.Context, raw []byte) {
	if !s.state.CompareAndSwap(int32(StateConnected), int32(StateProcessing)) {
		return
	}
	defer s.state.CompareAndSwap(int32(StateProcessing), int32(StateConnected))

	sample, err := codec.Decode(raw)
	if err != nil {
		s.logger.Printf("ingest: invalid payload: %v", err)
		metrics.IncIngestMessage(metrics.ResultError)
		metrics.IncIngestError("codec")
		s.send(NackInvalid)
		return
	}

	appendCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	start := time.Now()
	_, err = s.store.Append(appendCtx, &sample)
	cancel()
	if err != nil {
		s.logger.Printf("ingest: store append failed, dropping message: %v", err)
		metrics.ObserveAppend(metrics.ResultError, time.Since(start))
		metrics.IncIngestMessage(metrics.ResultError)
		metrics.IncIngestError("store")
		s.send(NackStoreFailure)
		return
	}
	metrics.ObserveAppend(metrics.ResultSuccess, time.Since(start))

	s.send(AckStored)
	metrics.IncIngestMessage(metrics.ResultSuccess)

	s.hub.Publish(broadcast.Event{Type: broadcast.EventNewSample, Payload: sample})

	for _, alert := range s.engine.Evaluate(ctx, sample) {
		s.hub.Publish(broadcast.Event{Type: broadcast.EventAlert, Payload: alert})
	}
}

// send writes an acknowledgment; a write failure is transport-level and
// will surface on the next read, so it is only logged here.
func (s *Session) send(text string) {
	if err := s.conn.WriteMessage([]byte(text)); err != nil {
		s.logger.Printf("ingest: ack write failed: %v", err)
	}
}
