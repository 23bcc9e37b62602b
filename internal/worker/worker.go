// Package worker manages the face-analysis subprocess: a supervisor
// that owns the process handle and a protocol client that owns the
// WebSocket link to it. Both compose into a Subsystem that the relay
// and the host API receive by injection.
package worker

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// Subsystem ties the process supervisor and the protocol client
// together: the process and the link share one lifecycle.
type Subsystem struct {
	log    *zap.SugaredLogger
	sup    *Supervisor
	client *Client
}

func NewSubsystem(log *zap.SugaredLogger, sup *Supervisor, client *Client) *Subsystem {
	return &Subsystem{log: log.Named("worker"), sup: sup, client: client}
}

// Start spawns the worker, waits for readiness and dials its
// WebSocket. A dial failure is terminal: the freshly spawned process
// is stopped again rather than left running behind a dead link.
func (s *Subsystem) Start(ctx context.Context, port int) error {
	if err := s.sup.Start(ctx, port); err != nil {
		return err
	}
	if err := s.client.Connect(ctx, port); err != nil {
		if stopErr := s.sup.Stop(); stopErr != nil {
			s.log.Warnf("stopping worker after failed connect: %v", stopErr)
		}
		return err
	}
	return nil
}

// Stop closes the link and terminates the process. A no-op when
// nothing is running.
func (s *Subsystem) Stop() error {
	if err := s.client.Close(); err != nil {
		s.log.Warnf("closing worker link: %v", err)
	}
	return s.sup.Stop()
}

// Running reports whether the worker process is up.
func (s *Subsystem) Running() bool {
	return s.sup.Running()
}

func (s *Subsystem) Analyze(ctx context.Context, frame, actions string, detector, model *string) (json.RawMessage, error) {
	return s.client.Analyze(ctx, frame, actions, detector, model)
}

func (s *Subsystem) Verify(ctx context.Context, img1, img2 string, detector, model *string) (json.RawMessage, error) {
	return s.client.Verify(ctx, img1, img2, detector, model)
}

func (s *Subsystem) Detect(ctx context.Context, frame string, detector *string) (json.RawMessage, error) {
	return s.client.Detect(ctx, frame, detector)
}
