// Package bot connects inbound chat interactions to the selection wizard
// and hands completed selections to the run pipeline in the background.
package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"

	"github.com/chattigo/autobot/cli/metrics"
	"github.com/chattigo/autobot/cli/pipeline"
	"github.com/chattigo/autobot/cli/wizard"
	"github.com/chattigo/autobot/model"
	"github.com/chattigo/autobot/notify"
)

// ErrShuttingDown is returned for interactions arriving after Shutdown.
var ErrShuttingDown = errors.New("service is shutting down")

// Runner executes one run request.
type Runner interface {
	Run(ctx context.Context, req model.RunRequest, n notify.Notifier) (*pipeline.Result, error)
}

// Service handles the /auto command and the wizard buttons.
type Service struct {
	logger  zerolog.Logger
	machine *wizard.Machine
	runner  Runner
	metrics *metrics.Collector

	// ctx outlives single interactions and is canceled by Shutdown
	ctx    context.Context
	cancel context.CancelFunc

	// mu orders wg.Add in start against Shutdown
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics counts wizard events on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Service) { s.metrics = c }
}

// New creates a Service. Runs started by it are canceled by Shutdown.
func New(logger zerolog.Logger, machine *wizard.Machine, runner Runner, opts ...Option) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		logger:  logger,
		machine: machine,
		runner:  runner,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleCommand acknowledges the command and starts a new wizard.
func (s *Service) HandleCommand(ctx context.Context, it notify.Interaction) error {
	if err := it.Defer(ctx); err != nil {
		return fmt.Errorf("failed to acknowledge command: %w", err)
	}
	if s.ctx.Err() != nil {
		s.replyPrivate(ctx, it, shuttingDownMessage())
		return ErrShuttingDown
	}

	res := s.machine.Start(it.User())
	s.observe(wizard.EventStart.String())
	s.logger.Info().Str("wizard", res.Wizard.ID).Str("user", it.User()).Msg("Wizard started")

	if err := it.Reply(ctx, *res.Prompt); err != nil {
		s.logger.Warn().Err(err).Str("wizard", res.Wizard.ID).Msg("Failed to send environment prompt")
		s.replyPrivate(ctx, it, wizardErrorMessage(err))
		return fmt.Errorf("failed to send environment prompt: %w", err)
	}
	return nil
}

// HandleComponent applies a button press. When it completes the
// selection, the run is started in the background and reported to n.
func (s *Service) HandleComponent(ctx context.Context, it notify.Interaction, customID string, n notify.Notifier) error {
	if err := it.Defer(ctx); err != nil {
		return fmt.Errorf("failed to acknowledge component: %w", err)
	}
	if s.ctx.Err() != nil {
		s.replyPrivate(ctx, it, shuttingDownMessage())
		return ErrShuttingDown
	}

	ev, err := wizard.DecodeButtonID(customID)
	if err != nil {
		s.logger.Warn().Err(err).Str("custom_id", customID).Msg("Ignoring unknown component")
		s.replyPrivate(ctx, it, wizardErrorMessage(err))
		return nil
	}

	res, err := s.machine.Handle(ev)
	switch {
	case errors.Is(err, wizard.ErrExpired):
		s.observe(wizard.EventExpired.String())
		s.logger.Info().Str("wizard", ev.WizardID).Msg("Selection expired")
		s.replyPrivate(ctx, it, expiredMessage())
		return nil
	case errors.Is(err, wizard.ErrUnknownWizard), errors.Is(err, wizard.ErrStaleInteraction):
		s.observe("stale")
		s.logger.Info().Err(err).Str("wizard", ev.WizardID).Str("event", ev.Kind.String()).Msg("Rejected stale interaction")
		s.replyPrivate(ctx, it, staleMessage())
		return nil
	case err != nil:
		s.logger.Warn().Err(err).Str("wizard", ev.WizardID).Msg("Failed to apply wizard event")
		s.replyPrivate(ctx, it, wizardErrorMessage(err))
		return nil
	}
	s.observe(ev.Kind.String())

	switch res.Effect {
	case wizard.EffectPromptProfile:
		if err := it.Reply(ctx, *res.Prompt); err != nil {
			s.logger.Warn().Err(err).Str("wizard", ev.WizardID).Msg("Failed to send profile prompt")
			s.replyPrivate(ctx, it, wizardErrorMessage(err))
			return fmt.Errorf("failed to send profile prompt: %w", err)
		}
	case wizard.EffectStartRun:
		if err := s.start(res.Wizard.ID, *res.Request, n); err != nil {
			if _, err := s.machine.Handle(wizard.Event{Kind: wizard.EventRunFailed, WizardID: res.Wizard.ID}); err != nil {
				s.logger.Debug().Err(err).Str("wizard", res.Wizard.ID).Msg("Failed to close wizard")
			}
			s.replyPrivate(ctx, it, shuttingDownMessage())
			return err
		}
	}
	return nil
}

// start runs req in its own goroutine, tracked for Shutdown. Once
// Shutdown was called no goroutine is started.
func (s *Service) start(wizardID string, req model.RunRequest, n notify.Notifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrShuttingDown
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		kind := wizard.EventRunFinished
		defer func() {
			if r := recover(); r != nil {
				kind = wizard.EventRunFailed
				s.logger.Error().
					Str("correlation_id", req.CorrelationID).
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("Run panicked")
				if _, err := n.Send(context.WithoutCancel(s.ctx), pipeline.ErrorMessage(fmt.Errorf("internal error: %v", r))); err != nil {
					s.logger.Warn().Err(err).Msg("Failed to report panic")
				}
			}
			if _, err := s.machine.Handle(wizard.Event{Kind: kind, WizardID: wizardID}); err != nil {
				s.logger.Debug().Err(err).Str("wizard", wizardID).Msg("Failed to close wizard")
			}
			s.observe(kind.String())
		}()

		if _, err := s.runner.Run(s.ctx, req, n); err != nil {
			kind = wizard.EventRunFailed
			s.logger.Warn().Err(err).Str("correlation_id", req.CorrelationID).Msg("Run did not complete")
		}
	}()
	return nil
}

// Shutdown cancels in-flight runs and waits for them until ctx is done.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to wait for runs: %w", ctx.Err())
	}
}

// Wait blocks until every started run has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) observe(event string) {
	if s.metrics != nil {
		s.metrics.ObserveWizard(event)
	}
}

func (s *Service) replyPrivate(ctx context.Context, it notify.Interaction, msg notify.Message) {
	if err := it.ReplyPrivate(ctx, msg); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to send private reply")
	}
}

func staleMessage() notify.Message {
	return notify.Message{Content: "⚠️ This selection was already used. Start again with /auto."}
}

func expiredMessage() notify.Message {
	return notify.Message{Content: "⚠️ This selection expired. Start again with /auto."}
}

func shuttingDownMessage() notify.Message {
	return notify.Message{Content: "⚠️ The bot is restarting. Please try again in a moment."}
}

func wizardErrorMessage(err error) notify.Message {
	return notify.Message{Content: fmt.Sprintf("⚠️ Could not process the selection: %v", err)}
}
