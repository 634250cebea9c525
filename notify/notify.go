// Package notify describes the outbound side of a chat surface: messages
// with optional embeds and buttons, and the interaction handle that must
// be acknowledged before its platform deadline.
package notify

import (
	"context"
	"time"
)

// Colors used for embeds.
const (
	ColorSuccess = 0x00ff00
	ColorFailure = 0xff0000
	ColorInfo    = 0x3498db
)

// ButtonStyle selects how a button is drawn.
type ButtonStyle int

const (
	StylePrimary ButtonStyle = iota + 1
	StyleSecondary
	StyleSuccess
	StyleDanger
	StyleLink
)

// Button is an interactive component. Link buttons carry a URL instead of an ID.
type Button struct {
	Label    string
	ID       string
	URL      string
	Style    ButtonStyle
	Disabled bool
}

// Field is a name/value pair inside an embed.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Embed is a rich message block.
type Embed struct {
	Title       string
	Description string
	URL         string
	Color       int
	Fields      []Field
	Footer      string
	ImageURL    string
	Timestamp   time.Time
}

// Message is what gets delivered to the chat surface.
type Message struct {
	Content string
	Embed   *Embed
	Buttons []Button
}

// MessageRef identifies a delivered message so that it can be edited.
type MessageRef struct {
	ChannelID string
	MessageID string
}

// Notifier delivers messages to the run's channel.
type Notifier interface {
	Send(ctx context.Context, msg Message) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, msg Message) error
}

// Interaction is one inbound command or button press.
type Interaction interface {
	// Defer acknowledges the interaction without content.
	Defer(ctx context.Context) error
	// Reply sends a visible follow-up.
	Reply(ctx context.Context, msg Message) error
	// ReplyPrivate sends a follow-up only the invoking user can see.
	ReplyPrivate(ctx context.Context, msg Message) error
	// User is the display name of the invoking user.
	User() string
}
