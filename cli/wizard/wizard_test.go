package wizard

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chattigo/autobot/model"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name       string
		state      State
		event      Event
		wantState  State
		wantEffect Effect
		wantErr    error
	}{
		{"start", StateIdle, Event{Kind: EventStart}, StateAwaitingEnvironment, EffectPromptEnvironment, nil},
		{"environment", StateAwaitingEnvironment, Event{Kind: EventEnvironmentChosen, Environment: model.EnvironmentBugs}, StateAwaitingProfile, EffectPromptProfile, nil},
		{"profile", StateAwaitingProfile, Event{Kind: EventProfileChosen, Profile: model.ProfileBot}, StateRunning, EffectStartRun, nil},
		{"finished", StateRunning, Event{Kind: EventRunFinished}, StateCompleted, EffectNone, nil},
		{"failed while running", StateRunning, Event{Kind: EventRunFailed}, StateFailed, EffectNone, nil},
		{"prompt failure", StateAwaitingEnvironment, Event{Kind: EventRunFailed}, StateFailed, EffectNone, nil},
		{"expired", StateAwaitingProfile, Event{Kind: EventExpired}, StateFailed, EffectNone, nil},
		{"replayed environment", StateAwaitingProfile, Event{Kind: EventEnvironmentChosen, Environment: model.EnvironmentBugs}, StateAwaitingProfile, EffectNone, ErrStaleInteraction},
		{"replayed profile", StateRunning, Event{Kind: EventProfileChosen, Profile: model.ProfileBot}, StateRunning, EffectNone, ErrStaleInteraction},
		{"profile before environment", StateAwaitingEnvironment, Event{Kind: EventProfileChosen, Profile: model.ProfileBot}, StateAwaitingEnvironment, EffectNone, ErrStaleInteraction},
		{"terminal", StateCompleted, Event{Kind: EventRunFailed}, StateCompleted, EffectNone, ErrStaleInteraction},
		{"restart", StateAwaitingEnvironment, Event{Kind: EventStart}, StateAwaitingEnvironment, EffectNone, ErrStaleInteraction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, effect, err := Transition(Wizard{ID: "w", State: tt.state}, tt.event)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantState, next.State)
			assert.Equal(t, tt.wantEffect, effect)
		})
	}
}

func TestTransition_InvalidChoice(t *testing.T) {
	w := Wizard{ID: "w", State: StateAwaitingEnvironment}
	next, _, err := Transition(w, Event{Kind: EventEnvironmentChosen, Environment: "prod"})
	require.Error(t, err)
	require.Equal(t, w, next)
}

func TestButtonID(t *testing.T) {
	ev := Event{Kind: EventEnvironmentChosen, WizardID: "abc-123", Environment: model.EnvironmentSupportBugs}
	id := EncodeButtonID(ev)
	require.Equal(t, "autobot:env:abc-123:support-bugs", id)
	require.True(t, IsButtonID(id))

	decoded, err := DecodeButtonID(id)
	require.NoError(t, err)
	require.Equal(t, ev, decoded)

	decoded, err = DecodeButtonID("autobot:profile:abc-123:supervisor")
	require.NoError(t, err)
	require.Equal(t, EventProfileChosen, decoded.Kind)
	require.Equal(t, model.ProfileSupervisor, decoded.Profile)

	for _, bad := range []string{"", "autobot:env:abc", "other:env:abc:pantera", "autobot:env::pantera", "autobot:env:abc:prod", "autobot:x:abc:pantera"} {
		_, err := DecodeButtonID(bad)
		require.Error(t, err, bad)
	}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMachine(c *clock) *Machine {
	return NewMachine(func(env model.Environment) string {
		return "https://qa-" + string(env) + ".example.com"
	}, WithClock(c.Now), WithTTL(2*time.Minute))
}

func TestMachine_HappyPath(t *testing.T) {
	c := &clock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := newTestMachine(c)

	res := m.Start("alice")
	require.Equal(t, StateAwaitingEnvironment, res.Wizard.State)
	require.NotNil(t, res.Prompt)
	require.Len(t, res.Prompt.Buttons, len(model.Environments))

	ev, err := DecodeButtonID(res.Prompt.Buttons[0].ID)
	require.NoError(t, err)
	res, err = m.Handle(ev)
	require.NoError(t, err)
	require.Equal(t, EffectPromptProfile, res.Effect)
	require.Contains(t, res.Prompt.Content, "**pantera**")
	require.Equal(t, "Agente", res.Prompt.Buttons[0].Label)

	ev, err = DecodeButtonID(res.Prompt.Buttons[0].ID)
	require.NoError(t, err)
	c.Advance(time.Minute)
	res, err = m.Handle(ev)
	require.NoError(t, err)
	require.Equal(t, EffectStartRun, res.Effect)
	require.NotNil(t, res.Request)
	assert.Equal(t, model.EnvironmentPantera, res.Request.Environment)
	assert.Equal(t, model.ProfileAgente, res.Request.Profile)
	assert.Equal(t, "https://qa-pantera.example.com", res.Request.BaseURL)
	assert.Equal(t, "alice", res.Request.RequestedBy)
	assert.Equal(t, c.Now(), res.Request.RequestedAt)
	assert.NotEmpty(t, res.Request.CorrelationID)

	// replaying the consumed click never starts a second run
	_, err = m.Handle(ev)
	require.ErrorIs(t, err, ErrStaleInteraction)

	res, err = m.Handle(Event{Kind: EventRunFinished, WizardID: ev.WizardID})
	require.NoError(t, err)
	require.Equal(t, StateCompleted, res.Wizard.State)
}

func TestMachine_IndependentWizards(t *testing.T) {
	c := &clock{now: time.Now()}
	m := newTestMachine(c)
	a := m.Start("a")
	b := m.Start("b")
	require.NotEqual(t, a.Wizard.ID, b.Wizard.ID)

	_, err := m.Handle(Event{Kind: EventEnvironmentChosen, WizardID: a.Wizard.ID, Environment: model.EnvironmentBugs})
	require.NoError(t, err)
	w, ok := m.Get(b.Wizard.ID)
	require.True(t, ok)
	require.Equal(t, StateAwaitingEnvironment, w.State)
}

func TestMachine_Expiry(t *testing.T) {
	c := &clock{now: time.Now()}
	m := newTestMachine(c)
	res := m.Start("alice")

	c.Advance(3 * time.Minute)
	_, err := m.Handle(Event{Kind: EventEnvironmentChosen, WizardID: res.Wizard.ID, Environment: model.EnvironmentBugs})
	require.ErrorIs(t, err, ErrExpired)
	w, _ := m.Get(res.Wizard.ID)
	require.Equal(t, StateFailed, w.State)

	// the next Start sweeps it away
	c.Advance(3 * time.Minute)
	m.Start("bob")
	_, err = m.Handle(Event{Kind: EventEnvironmentChosen, WizardID: res.Wizard.ID, Environment: model.EnvironmentBugs})
	require.ErrorIs(t, err, ErrUnknownWizard)
	require.Equal(t, 1, m.Len())
}

func TestMachine_Unknown(t *testing.T) {
	m := NewMachine(nil)
	_, err := m.Handle(Event{Kind: EventProfileChosen, WizardID: "nope", Profile: model.ProfileBot})
	require.ErrorIs(t, err, ErrUnknownWizard)
}
