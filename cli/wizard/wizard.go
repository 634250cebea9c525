// Package wizard implements the two-step environment/profile selection.
// Transition is a pure function over Wizard values; Machine owns the
// live wizards and guards them with a mutex.
package wizard

import (
	"errors"
	"fmt"
	"time"

	"github.com/chattigo/autobot/model"
)

var (
	ErrUnknownWizard    = errors.New("unknown or finished selection")
	ErrStaleInteraction = errors.New("this choice was already made")
	ErrExpired          = errors.New("selection expired, start again with /auto")
)

// State of a wizard.
type State int

const (
	StateIdle State = iota
	StateAwaitingEnvironment
	StateAwaitingProfile
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingEnvironment:
		return "awaitingEnvironment"
	case StateAwaitingProfile:
		return "awaitingProfile"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Awaiting reports whether the wizard waits for an operator choice.
func (s State) Awaiting() bool {
	return s == StateAwaitingEnvironment || s == StateAwaitingProfile
}

// EventKind identifies what happened.
type EventKind int

const (
	EventStart EventKind = iota + 1
	EventEnvironmentChosen
	EventProfileChosen
	EventRunFinished
	EventRunFailed
	EventExpired
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventEnvironmentChosen:
		return "environmentChosen"
	case EventProfileChosen:
		return "profileChosen"
	case EventRunFinished:
		return "runFinished"
	case EventRunFailed:
		return "runFailed"
	case EventExpired:
		return "expired"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event drives a wizard forward.
type Event struct {
	Kind        EventKind
	WizardID    string
	Environment model.Environment
	Profile     model.Profile
	At          time.Time
}

// Effect tells the caller what to do after a transition.
type Effect int

const (
	EffectNone Effect = iota
	EffectPromptEnvironment
	EffectPromptProfile
	EffectStartRun
)

// Wizard is one selection in progress.
type Wizard struct {
	ID          string
	State       State
	Environment model.Environment
	Profile     model.Profile
	RequestedBy string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Transition computes the next wizard for an event. It has no side
// effects; an error leaves the wizard unchanged.
func Transition(w Wizard, ev Event) (Wizard, Effect, error) {
	if w.State.Terminal() {
		return w, EffectNone, ErrStaleInteraction
	}

	next := w
	next.UpdatedAt = ev.At

	switch {
	case w.State == StateIdle && ev.Kind == EventStart:
		next.State = StateAwaitingEnvironment
		return next, EffectPromptEnvironment, nil

	case w.State == StateAwaitingEnvironment && ev.Kind == EventEnvironmentChosen:
		env, err := model.ParseEnvironment(string(ev.Environment))
		if err != nil {
			return w, EffectNone, err
		}
		next.Environment = env
		next.State = StateAwaitingProfile
		return next, EffectPromptProfile, nil

	case w.State == StateAwaitingProfile && ev.Kind == EventProfileChosen:
		profile, err := model.ParseProfile(string(ev.Profile))
		if err != nil {
			return w, EffectNone, err
		}
		next.Profile = profile
		next.State = StateRunning
		return next, EffectStartRun, nil

	case w.State.Awaiting() && ev.Kind == EventExpired:
		next.State = StateFailed
		return next, EffectNone, nil

	case w.State == StateRunning && ev.Kind == EventRunFinished:
		next.State = StateCompleted
		return next, EffectNone, nil

	case ev.Kind == EventRunFailed:
		next.State = StateFailed
		return next, EffectNone, nil
	}

	return w, EffectNone, ErrStaleInteraction
}
