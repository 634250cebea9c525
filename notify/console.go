package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Console prints messages as plain text. It backs the one-shot CLI run.
type Console struct {
	mu  sync.Mutex
	out io.Writer
	n   int
}

// NewConsole creates a console notifier writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Send(_ context.Context, msg Message) (MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	ref := MessageRef{ChannelID: "console", MessageID: fmt.Sprint(c.n)}
	_, err := io.WriteString(c.out, Format(msg))
	return ref, err
}

func (c *Console) Edit(_ context.Context, _ MessageRef, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.out, Format(msg))
	return err
}

// Format renders a message as text, one block per message.
func Format(msg Message) string {
	var b strings.Builder
	if msg.Content != "" {
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	if e := msg.Embed; e != nil {
		if e.Title != "" {
			b.WriteString(e.Title)
			b.WriteString("\n")
		}
		if e.Description != "" {
			b.WriteString(e.Description)
			b.WriteString("\n")
		}
		for _, f := range e.Fields {
			fmt.Fprintf(&b, "%s: %s\n", f.Name, f.Value)
		}
		if e.URL != "" {
			b.WriteString(e.URL)
			b.WriteString("\n")
		}
		if e.Footer != "" {
			b.WriteString(e.Footer)
			b.WriteString("\n")
		}
	}
	for _, btn := range msg.Buttons {
		if btn.URL != "" {
			fmt.Fprintf(&b, "[%s] %s\n", btn.Label, btn.URL)
		}
	}
	return b.String()
}
