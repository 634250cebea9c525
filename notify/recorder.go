package notify

import (
	"context"
	"fmt"
	"sync"
)

// Recorder keeps every message in memory. Used by tests and dry runs.
type Recorder struct {
	mu       sync.Mutex
	sent     []Message
	edits    map[string][]Message
	SendErr  error
	deferred int
	private  []Message
	user     string
}

// NewRecorder creates a recorder acting as a Notifier and, for the
// given user, as an Interaction.
func NewRecorder(user string) *Recorder {
	return &Recorder{edits: make(map[string][]Message), user: user}
}

func (r *Recorder) Send(_ context.Context, msg Message) (MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SendErr != nil {
		return MessageRef{}, r.SendErr
	}
	r.sent = append(r.sent, msg)
	return MessageRef{ChannelID: "recorder", MessageID: fmt.Sprint(len(r.sent))}, nil
}

func (r *Recorder) Edit(_ context.Context, ref MessageRef, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits[ref.MessageID] = append(r.edits[ref.MessageID], msg)
	return nil
}

func (r *Recorder) Defer(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deferred++
	return nil
}

func (r *Recorder) Reply(ctx context.Context, msg Message) error {
	_, err := r.Send(ctx, msg)
	return err
}

func (r *Recorder) ReplyPrivate(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.private = append(r.private, msg)
	return nil
}

func (r *Recorder) User() string { return r.user }

// Sent returns a copy of all sent messages.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}

// Last returns the most recently sent message.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return Message{}, false
	}
	return r.sent[len(r.sent)-1], true
}

// Edits returns the edits applied to a message.
func (r *Recorder) Edits(ref MessageRef) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.edits[ref.MessageID]...)
}

// Private returns the ephemeral replies.
func (r *Recorder) Private() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.private...)
}

// Deferred reports how many times the interaction was acknowledged.
func (r *Recorder) Deferred() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deferred
}
