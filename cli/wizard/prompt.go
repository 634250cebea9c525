package wizard

import (
	"fmt"
	"strings"

	"github.com/chattigo/autobot/model"
	"github.com/chattigo/autobot/notify"
)

const buttonPrefix = "autobot"

const (
	kindEnvironment = "env"
	kindProfile     = "profile"
)

var environmentStyles = map[model.Environment]notify.ButtonStyle{
	model.EnvironmentPantera:     notify.StyleSuccess,
	model.EnvironmentBugs:        notify.StyleDanger,
	model.EnvironmentSupportBugs: notify.StylePrimary,
	model.EnvironmentLeones:      notify.StyleSecondary,
}

var profileStyles = map[model.Profile]notify.ButtonStyle{
	model.ProfileAgente:     notify.StylePrimary,
	model.ProfileSupervisor: notify.StyleSecondary,
	model.ProfileBot:        notify.StyleSecondary,
}

// EnvironmentPrompt asks for the environment.
func EnvironmentPrompt(wizardID string) notify.Message {
	buttons := make([]notify.Button, 0, len(model.Environments))
	for _, env := range model.Environments {
		buttons = append(buttons, notify.Button{
			Label: env.Label(),
			ID:    EncodeButtonID(Event{Kind: EventEnvironmentChosen, WizardID: wizardID, Environment: env}),
			Style: environmentStyles[env],
		})
	}
	return notify.Message{
		Content: "Select the environment for the tests:",
		Buttons: buttons,
	}
}

// ProfilePrompt asks for the profile once env is known.
func ProfilePrompt(wizardID string, env model.Environment) notify.Message {
	buttons := make([]notify.Button, 0, len(model.Profiles))
	for _, p := range model.Profiles {
		buttons = append(buttons, notify.Button{
			Label: p.Label(),
			ID:    EncodeButtonID(Event{Kind: EventProfileChosen, WizardID: wizardID, Profile: p}),
			Style: profileStyles[p],
		})
	}
	return notify.Message{
		Content: fmt.Sprintf("You selected **%s**. Which profile do you want to test?", env),
		Buttons: buttons,
	}
}

// EncodeButtonID packs a choice into a component ID such as
// "autobot:env:<wizard>:pantera".
func EncodeButtonID(ev Event) string {
	switch ev.Kind {
	case EventEnvironmentChosen:
		return strings.Join([]string{buttonPrefix, kindEnvironment, ev.WizardID, string(ev.Environment)}, ":")
	case EventProfileChosen:
		return strings.Join([]string{buttonPrefix, kindProfile, ev.WizardID, string(ev.Profile)}, ":")
	default:
		return ""
	}
}

// DecodeButtonID is the inverse of EncodeButtonID.
func DecodeButtonID(id string) (Event, error) {
	parts := strings.Split(id, ":")
	if len(parts) != 4 || parts[0] != buttonPrefix || parts[2] == "" {
		return Event{}, fmt.Errorf("malformed component id %q", id)
	}
	ev := Event{WizardID: parts[2]}
	switch parts[1] {
	case kindEnvironment:
		env, err := model.ParseEnvironment(parts[3])
		if err != nil {
			return Event{}, err
		}
		ev.Kind = EventEnvironmentChosen
		ev.Environment = env
	case kindProfile:
		p, err := model.ParseProfile(parts[3])
		if err != nil {
			return Event{}, err
		}
		ev.Kind = EventProfileChosen
		ev.Profile = p
	default:
		return Event{}, fmt.Errorf("unknown component kind %q", parts[1])
	}
	return ev, nil
}

// IsButtonID reports whether id was produced by EncodeButtonID.
func IsButtonID(id string) bool {
	return strings.HasPrefix(id, buttonPrefix+":")
}
