package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chattigo/autobot/cli/pipeline"
	"github.com/chattigo/autobot/cli/wizard"
	"github.com/chattigo/autobot/model"
	"github.com/chattigo/autobot/notify"
)

type fakeRunner struct {
	mu   sync.Mutex
	reqs []model.RunRequest
	fn   func(ctx context.Context) error
}

func (f *fakeRunner) Run(ctx context.Context, req model.RunRequest, _ notify.Notifier) (*pipeline.Result, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.fn != nil {
		if err := f.fn(ctx); err != nil {
			return nil, err
		}
	}
	return &pipeline.Result{}, nil
}

func (f *fakeRunner) requests() []model.RunRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.RunRequest(nil), f.reqs...)
}

func baseURL(env model.Environment) string {
	return "https://qa-" + string(env) + ".example.com"
}

// lastButtons returns the buttons of the newest message sent to rec.
func lastButtons(t *testing.T, rec *notify.Recorder) []notify.Button {
	t.Helper()
	msg, ok := rec.Last()
	require.True(t, ok)
	require.NotEmpty(t, msg.Buttons)
	return msg.Buttons
}

func TestService_FullWizard(t *testing.T) {
	runner := &fakeRunner{}
	machine := wizard.NewMachine(baseURL)
	svc := New(zerolog.Nop(), machine, runner)
	ctx := context.Background()
	rec := notify.NewRecorder("operator")

	require.NoError(t, svc.HandleCommand(ctx, rec))
	assert.Equal(t, 1, rec.Deferred())
	envButtons := lastButtons(t, rec)
	require.Len(t, envButtons, len(model.Environments))
	assert.Equal(t, "Pantera", envButtons[0].Label)

	require.NoError(t, svc.HandleComponent(ctx, rec, envButtons[2].ID, rec))
	msg, _ := rec.Last()
	assert.Equal(t, "You selected **support-bugs**. Which profile do you want to test?", msg.Content)
	profileButtons := lastButtons(t, rec)
	require.Len(t, profileButtons, len(model.Profiles))

	require.NoError(t, svc.HandleComponent(ctx, rec, profileButtons[1].ID, rec))
	svc.Wait()

	reqs := runner.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, model.EnvironmentSupportBugs, reqs[0].Environment)
	assert.Equal(t, model.ProfileSupervisor, reqs[0].Profile)
	assert.Equal(t, "https://qa-support-bugs.example.com", reqs[0].BaseURL)
	assert.Equal(t, "operator", reqs[0].RequestedBy)
	assert.NotEmpty(t, reqs[0].CorrelationID)

	// every interaction was acknowledged before its content was sent
	assert.Equal(t, 3, rec.Deferred())
}

func TestService_ReplayedButtons(t *testing.T) {
	runner := &fakeRunner{}
	svc := New(zerolog.Nop(), wizard.NewMachine(baseURL), runner)
	ctx := context.Background()
	rec := notify.NewRecorder("operator")

	require.NoError(t, svc.HandleCommand(ctx, rec))
	envButtons := lastButtons(t, rec)
	require.NoError(t, svc.HandleComponent(ctx, rec, envButtons[0].ID, rec))
	profileButtons := lastButtons(t, rec)

	require.NoError(t, svc.HandleComponent(ctx, rec, profileButtons[0].ID, rec))
	require.NoError(t, svc.HandleComponent(ctx, rec, profileButtons[0].ID, rec))
	require.NoError(t, svc.HandleComponent(ctx, rec, envButtons[1].ID, rec))
	svc.Wait()

	require.Len(t, runner.requests(), 1)
	private := rec.Private()
	require.Len(t, private, 2)
	assert.Equal(t, staleMessage(), private[0])
	assert.Equal(t, staleMessage(), private[1])
}

func TestService_TwoWizardsAreIndependent(t *testing.T) {
	runner := &fakeRunner{}
	svc := New(zerolog.Nop(), wizard.NewMachine(baseURL), runner)
	ctx := context.Background()
	a := notify.NewRecorder("a")
	b := notify.NewRecorder("b")

	require.NoError(t, svc.HandleCommand(ctx, a))
	require.NoError(t, svc.HandleCommand(ctx, b))
	require.NoError(t, svc.HandleComponent(ctx, a, lastButtons(t, a)[0].ID, a))
	require.NoError(t, svc.HandleComponent(ctx, b, lastButtons(t, b)[3].ID, b))
	require.NoError(t, svc.HandleComponent(ctx, b, lastButtons(t, b)[2].ID, b))
	require.NoError(t, svc.HandleComponent(ctx, a, lastButtons(t, a)[0].ID, a))
	svc.Wait()

	reqs := runner.requests()
	require.Len(t, reqs, 2)
	byUser := map[string]model.RunRequest{}
	for _, r := range reqs {
		byUser[r.RequestedBy] = r
	}
	assert.Equal(t, model.EnvironmentPantera, byUser["a"].Environment)
	assert.Equal(t, model.ProfileAgente, byUser["a"].Profile)
	assert.Equal(t, model.EnvironmentLeones, byUser["b"].Environment)
	assert.Equal(t, model.ProfileBot, byUser["b"].Profile)
	assert.NotEqual(t, byUser["a"].CorrelationID, byUser["b"].CorrelationID)
}

func TestService_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	runner := &fakeRunner{}
	svc := New(zerolog.Nop(), wizard.NewMachine(baseURL, wizard.WithTTL(time.Minute), wizard.WithClock(clock)), runner)
	ctx := context.Background()
	rec := notify.NewRecorder("operator")

	require.NoError(t, svc.HandleCommand(ctx, rec))
	envButtons := lastButtons(t, rec)

	now = now.Add(2 * time.Minute)
	require.NoError(t, svc.HandleComponent(ctx, rec, envButtons[0].ID, rec))
	require.Equal(t, []notify.Message{expiredMessage()}, rec.Private())
	assert.Empty(t, runner.requests())
}

func TestService_MalformedComponent(t *testing.T) {
	svc := New(zerolog.Nop(), wizard.NewMachine(baseURL), &fakeRunner{})
	rec := notify.NewRecorder("operator")
	require.NoError(t, svc.HandleComponent(context.Background(), rec, "autobot:env", rec))
	require.Len(t, rec.Private(), 1)
	assert.Contains(t, rec.Private()[0].Content, "Could not process the selection")
}

func TestService_RunFailureAndPanic(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(ctx context.Context) error
		wantMsg bool
	}{
		{"error", func(context.Context) error { return errors.New("gate: busy") }, false},
		{"panic", func(context.Context) error { panic("boom") }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := wizard.NewMachine(baseURL)
			svc := New(zerolog.Nop(), machine, &fakeRunner{fn: tt.fn})
			ctx := context.Background()
			rec := notify.NewRecorder("operator")

			require.NoError(t, svc.HandleCommand(ctx, rec))
			require.NoError(t, svc.HandleComponent(ctx, rec, lastButtons(t, rec)[0].ID, rec))
			profileButtons := lastButtons(t, rec)
			require.NoError(t, svc.HandleComponent(ctx, rec, profileButtons[0].ID, rec))
			svc.Wait()

			id := profileButtons[0].ID
			ev, err := wizard.DecodeButtonID(id)
			require.NoError(t, err)
			w, ok := machine.Get(ev.WizardID)
			require.True(t, ok)
			assert.Equal(t, wizard.StateFailed, w.State)

			msg, _ := rec.Last()
			if tt.wantMsg {
				assert.Equal(t, "⚠️ Error running the command: internal error: boom", msg.Content)
			}
		})
	}
}

func TestService_Shutdown(t *testing.T) {
	started := make(chan struct{})
	runner := &fakeRunner{fn: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}}
	svc := New(zerolog.Nop(), wizard.NewMachine(baseURL), runner)
	ctx := context.Background()
	rec := notify.NewRecorder("operator")

	require.NoError(t, svc.HandleCommand(ctx, rec))
	require.NoError(t, svc.HandleComponent(ctx, rec, lastButtons(t, rec)[0].ID, rec))
	require.NoError(t, svc.HandleComponent(ctx, rec, lastButtons(t, rec)[0].ID, rec))
	<-started

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(shutdownCtx))

	require.ErrorIs(t, svc.HandleCommand(ctx, rec), ErrShuttingDown)
	assert.Equal(t, shuttingDownMessage(), rec.Private()[len(rec.Private())-1])
}

func TestService_StartAfterShutdown(t *testing.T) {
	runner := &fakeRunner{}
	svc := New(zerolog.Nop(), wizard.NewMachine(baseURL), runner)
	require.NoError(t, svc.Shutdown(context.Background()))

	req := model.NewRunRequest(model.EnvironmentPantera, model.ProfileAgente, baseURL(model.EnvironmentPantera), time.Now())
	require.ErrorIs(t, svc.start("w1", req, notify.NewRecorder("operator")), ErrShuttingDown)
	svc.Wait()
	assert.Empty(t, runner.requests())
}

func TestService_ShutdownRacingLastClick(t *testing.T) {
	for i := 0; i < 50; i++ {
		var mu sync.Mutex
		stopped := false
		lateRuns := 0
		runner := &fakeRunner{fn: func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			if stopped {
				lateRuns++
			}
			return nil
		}}
		svc := New(zerolog.Nop(), wizard.NewMachine(baseURL), runner)
		ctx := context.Background()
		rec := notify.NewRecorder("operator")

		require.NoError(t, svc.HandleCommand(ctx, rec))
		require.NoError(t, svc.HandleComponent(ctx, rec, lastButtons(t, rec)[0].ID, rec))
		profileID := lastButtons(t, rec)[0].ID

		clicked := make(chan struct{})
		go func() {
			defer close(clicked)
			_ = svc.HandleComponent(ctx, rec, profileID, rec)
		}()
		require.NoError(t, svc.Shutdown(ctx))
		mu.Lock()
		stopped = true
		mu.Unlock()

		<-clicked
		svc.Wait()
		mu.Lock()
		assert.Zero(t, lateRuns, "run started after Shutdown returned")
		mu.Unlock()
	}
}
