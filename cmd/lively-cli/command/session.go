package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"

	"livelyclient/internal/eventlog"
	"livelyclient/internal/history"
	"livelyclient/internal/lively"
	"livelyclient/internal/logging"
	"livelyclient/internal/transport/socketio"
)

// session is one connected broadcast client plus the sinks its events flow into.
type session struct {
	client    *lively.Client
	transport *socketio.Client
	log       *eventlog.MemoryLog
	acked     atomic.Int64
	ackSignal chan struct{}
	closers   []func() error
}

// openSession wires the recorders, connects and returns a ready session.
// The caller must Close it.
func openSession(ctx context.Context, out io.Writer) (*session, error) {
	s := &session{
		log:       eventlog.NewMemoryLog(),
		ackSignal: make(chan struct{}, 1),
	}

	recorders := []eventlog.Recorder{
		s.log,
		consoleRecorder(out, cfg.Debug),
		eventlog.NewSlogRecorder(logging.Logger, slog.LevelDebug),
		eventlog.RecorderFunc(func(ev eventlog.Event) {
			if ev.Kind != eventlog.KindAck {
				return
			}
			s.acked.Add(1)
			select {
			case s.ackSignal <- struct{}{}:
			default:
			}
		}),
	}

	if cfg.RedisURL != "" {
		mirror, err := eventlog.NewRedisRecorder(cfg.RedisURL, cfg.RedisLogKey, logging.Logger)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open redis event log: %w", err)
		}
		recorders = append(recorders, mirror)
		s.closers = append(s.closers, mirror.Close)
	}

	if cfg.DatabaseURL != "" {
		db, err := history.Open(cfg.DatabaseURL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open history: %w", err)
		}
		recorders = append(recorders, history.NewRecorder(history.NewRepository(db), logging.Logger))
		s.closers = append(s.closers, func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
	}

	s.transport = socketio.NewClient(socketio.WithLogger(logging.Logger))
	s.client = lively.NewClient(cfg.ClientConfig(), s.transport,
		lively.WithRecorder(eventlog.Multi(recorders...)),
		lively.WithLogger(logging.Logger),
	)

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := s.client.Connect(connectCtx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// waitForAcks blocks until want acks arrived, timeout passes or ctx ends.
// It returns how many arrived.
func (s *session) waitForAcks(ctx context.Context, want int, timeout time.Duration) int {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		got := int(s.acked.Load())
		if got >= want {
			return got
		}
		select {
		case <-s.ackSignal:
		case <-deadline.C:
			return int(s.acked.Load())
		case <-ctx.Done():
			return int(s.acked.Load())
		}
	}
}

// Close disconnects if still connected and releases the sinks.
func (s *session) Close() error {
	var errs []error
	if s.client != nil && s.transport.Connected() {
		if err := s.client.Disconnect(); err != nil && !errors.Is(err, socketio.ErrNotConnected) {
			errs = append(errs, err)
		}
	}
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// consoleRecorder prints lifecycle events; the raw connected flag and the
// serialized message only show under --debug.
// Acks arrive on their own goroutines, so writes to out are serialized.
func consoleRecorder(out io.Writer, debug bool) eventlog.Recorder {
	var mu sync.Mutex
	return eventlog.RecorderFunc(func(ev eventlog.Event) {
		mu.Lock()
		defer mu.Unlock()

		switch ev.Kind {
		case eventlog.KindConnected:
			color.New(color.FgGreen).Fprintln(out, ev.Text)
		case eventlog.KindDisconnected:
			color.New(color.FgHiBlack).Fprintln(out, ev.Text)
		case eventlog.KindAck:
			color.New(color.FgCyan).Fprintln(out, ev.Text)
		case eventlog.KindSent:
			color.New(color.FgYellow).Fprintln(out, ev.Text)
			if debug {
				fmt.Fprintln(out, ev.Message)
			}
		case eventlog.KindConnectedFlag:
			if debug {
				fmt.Fprintln(out, ev.Value())
			}
		}
	})
}
