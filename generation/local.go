package generation

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// LocalService is a Service that runs every phase in-process and writes
// placeholder artifacts to the output directory. Each phase is split into
// a number of steps separated by a delay so progress is observable.
type LocalService struct {
	steps            int
	stepDelay        time.Duration
	keepIntermediate bool
	auth             *Authenticator
	logger           *zap.Logger
	now              func() time.Time
}

// LocalOption configures a LocalService.
type LocalOption func(*LocalService)

// WithSteps sets the number of progress steps per phase.
func WithSteps(n int) LocalOption {
	return func(s *LocalService) {
		if n > 0 {
			s.steps = n
		}
	}
}

// WithStepDelay sets the delay between progress steps.
func WithStepDelay(d time.Duration) LocalOption {
	return func(s *LocalService) {
		if d >= 0 {
			s.stepDelay = d
		}
	}
}

// WithKeepIntermediate keeps the tracking data file after the database is built.
func WithKeepIntermediate(keep bool) LocalOption {
	return func(s *LocalService) {
		s.keepIntermediate = keep
	}
}

// WithAuthenticator sets the credential check run before the first phase.
func WithAuthenticator(a *Authenticator) LocalOption {
	return func(s *LocalService) {
		s.auth = a
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) LocalOption {
	return func(s *LocalService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewLocalService creates a local backend. Defaults: 10 steps of 200ms per phase.
func NewLocalService(opts ...LocalOption) *LocalService {
	s := &LocalService{
		steps:     10,
		stepDelay: 200 * time.Millisecond,
		auth:      &Authenticator{},
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunPhase implements Service.
func (s *LocalService) RunPhase(ctx context.Context, phase Phase, req Request, report func(float64)) error {
	logger := s.logger.With(
		zap.String("job_id", req.JobID),
		zap.String("phase", phase.String()),
	)

	if phase == PhaseTrackingData {
		if err := s.auth.Verify(req.UserAuth, req.SecretAuth); err != nil {
			logger.Warn("Generation credentials rejected", zap.String("user_auth", req.UserAuth))
			return err
		}
	}

	for step := 1; step <= s.steps; step++ {
		if s.stepDelay > 0 {
			timer := time.NewTimer(s.stepDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		// The final step is reported after the artifacts exist.
		if step < s.steps {
			report(float64(step) / float64(s.steps))
		}
	}

	if err := s.writePhase(phase, req); err != nil {
		return fmt.Errorf("%s phase failed: %w", phase, err)
	}
	report(1)
	logger.Debug("Generation phase complete")
	return nil
}

func (s *LocalService) writePhase(phase Phase, req Request) error {
	switch phase {
	case PhaseTrackingData:
		return writeTrackingData(req, s.now())
	case PhaseAuthoringData:
		return writeAuthoringData(req, s.now())
	case PhaseDeviceDatabase:
		if err := writeDeviceDatabase(req); err != nil {
			return err
		}
		if !s.keepIntermediate {
			if err := os.Remove(ArtifactPath(req, SuffixTrackingData)); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove intermediate tracking data: %w", err)
			}
		}
		return nil
	case PhasePackage:
		return writePackage(req)
	default:
		return fmt.Errorf("unknown phase %d", int(phase))
	}
}
