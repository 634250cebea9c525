package pipeline

import (
	"fmt"
	"time"

	"github.com/chattigo/autobot/model"
	"github.com/chattigo/autobot/notify"
)

const (
	// FooterTimeFormat is the layout of the summary footer.
	FooterTimeFormat = "02/01/06, 15:04"

	barFilled = "🟩"
	barEmpty  = "⬜"
)

// Compose builds the final summary message of a run. The color is green
// only when the command itself succeeded, whatever the percentage.
func Compose(req model.RunRequest, summary model.RunSummary, status model.ExitStatus, reportURL string, now time.Time) notify.Message {
	color := notify.ColorFailure
	if status == model.ExitSuccess {
		color = notify.ColorSuccess
	}
	description := fmt.Sprintf(
		"The rocket has reached its destination! 🪐 Click [here](%s) to see the report!\n-\nPassed : %d\nFailed : %d\nTotal : %d\n[%s]",
		reportURL, summary.Passed, summary.Failed, summary.Total, summary.ProgressBar(barFilled, barEmpty),
	)
	msg := notify.Message{
		Embed: &notify.Embed{
			Title:       fmt.Sprintf("[%s][%s]: %d %% -", req.Profile, req.Environment, summary.SuccessPercent),
			Description: description,
			URL:         reportURL,
			Color:       color,
			Footer:      now.Format(FooterTimeFormat),
		},
	}
	if reportURL != "" {
		msg.Buttons = []notify.Button{{Label: "Report", URL: reportURL, Style: notify.StyleLink}}
	}
	return msg
}

// StartMessage announces a run before it executes.
func StartMessage(req model.RunRequest) notify.Message {
	return notify.Message{Content: fmt.Sprintf(
		"🚀 Starting tests for profile **%s** on **%s**. This may take a few seconds...",
		req.Profile, req.Environment,
	)}
}

// ProgressMessage replaces the start message while a remote backend polls.
func ProgressMessage(req model.RunRequest, elapsed time.Duration) notify.Message {
	return notify.Message{Content: fmt.Sprintf(
		"⏳ Tests for profile **%s** on **%s** are still running... (%s)",
		req.Profile, req.Environment, elapsed.Round(time.Second),
	)}
}

// TimeoutMessage reports a run killed by its deadline.
func TimeoutMessage() notify.Message {
	return notify.Message{Content: "⚠️ Timeout while running the tests. Please check that the tests do not require manual interaction."}
}

// PublishWarning reports that the report could not be uploaded.
func PublishWarning(err error) notify.Message {
	return notify.Message{Content: fmt.Sprintf("⚠️ Error uploading report to storage: %v", err)}
}

// ErrorMessage reports a run that could not be executed.
func ErrorMessage(err error) notify.Message {
	return notify.Message{Content: fmt.Sprintf("⚠️ Error running the command: %v", err)}
}

// BusyMessage rejects a run while another one holds the suite.
func BusyMessage() notify.Message {
	return notify.Message{Content: "⚠️ A run is already in progress. Please wait for it to finish and try again."}
}

// QueuedMessage tells the operator a run waits for the one in progress.
func QueuedMessage(req model.RunRequest) notify.Message {
	return notify.Message{Content: fmt.Sprintf(
		"⏳ Another run is in progress. Tests for profile **%s** on **%s** will start when it finishes.",
		req.Profile, req.Environment,
	)}
}
