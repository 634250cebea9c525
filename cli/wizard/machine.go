package wizard

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chattigo/autobot/model"
	"github.com/chattigo/autobot/notify"
)

// DefaultTTL is how long a wizard may wait for an operator choice.
const DefaultTTL = 10 * time.Minute

// Result is what Machine hands back after an event was applied.
type Result struct {
	Wizard Wizard
	Effect Effect
	// Prompt is set for EffectPromptEnvironment and EffectPromptProfile
	Prompt *notify.Message
	// Request is set for EffectStartRun
	Request *model.RunRequest
}

// Machine holds the live wizards.
type Machine struct {
	ttl     time.Duration
	now     func() time.Time
	baseURL func(model.Environment) string

	mu      sync.Mutex
	wizards map[string]Wizard
}

// Option configures a Machine.
type Option func(*Machine)

// WithTTL sets the expiry of wizards awaiting a choice.
func WithTTL(ttl time.Duration) Option {
	return func(m *Machine) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// NewMachine creates a Machine. baseURL resolves the environment URL
// copied into each RunRequest.
func NewMachine(baseURL func(model.Environment) string, opts ...Option) *Machine {
	m := &Machine{
		ttl:     DefaultTTL,
		now:     time.Now,
		baseURL: baseURL,
		wizards: make(map[string]Wizard),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start creates a wizard and returns the environment prompt.
func (m *Machine) Start(requestedBy string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.sweep(now)

	w := Wizard{
		ID:          uuid.NewString(),
		RequestedBy: requestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	// Idle + start always succeeds
	next, effect, _ := Transition(w, Event{Kind: EventStart, WizardID: w.ID, At: now})
	m.wizards[next.ID] = next
	return m.result(next, effect)
}

// Handle applies an operator or pipeline event.
func (m *Machine) Handle(ev Event) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	ev.At = now

	w, ok := m.wizards[ev.WizardID]
	if !ok {
		return Result{}, ErrUnknownWizard
	}
	if w.State.Awaiting() && now.Sub(w.UpdatedAt) > m.ttl {
		expired, _, _ := Transition(w, Event{Kind: EventExpired, WizardID: w.ID, At: now})
		m.wizards[w.ID] = expired
		return Result{Wizard: expired}, ErrExpired
	}

	next, effect, err := Transition(w, ev)
	if err != nil {
		return Result{Wizard: w}, err
	}
	m.wizards[next.ID] = next
	return m.result(next, effect), nil
}

// Get returns a wizard by ID.
func (m *Machine) Get(id string) (Wizard, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wizards[id]
	return w, ok
}

// Len returns the number of tracked wizards.
func (m *Machine) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.wizards)
}

func (m *Machine) result(w Wizard, effect Effect) Result {
	res := Result{Wizard: w, Effect: effect}
	switch effect {
	case EffectPromptEnvironment:
		p := EnvironmentPrompt(w.ID)
		res.Prompt = &p
	case EffectPromptProfile:
		p := ProfilePrompt(w.ID, w.Environment)
		res.Prompt = &p
	case EffectStartRun:
		baseURL := ""
		if m.baseURL != nil {
			baseURL = m.baseURL(w.Environment)
		}
		req := model.NewRunRequest(w.Environment, w.Profile, baseURL, w.UpdatedAt)
		req.RequestedBy = w.RequestedBy
		res.Request = &req
	}
	return res
}

// sweep forgets finished wizards and wizards idle for longer than the
// TTL. Late clicks on them are answered with ErrUnknownWizard.
func (m *Machine) sweep(now time.Time) {
	for id, w := range m.wizards {
		if w.State == StateRunning {
			continue
		}
		if now.Sub(w.UpdatedAt) > m.ttl {
			delete(m.wizards, id)
		}
	}
}
