package discord

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chattigo/autobot/notify"
)

type fakeSession struct {
	responses []*discordgo.InteractionResponse
	followups []*discordgo.WebhookParams
	sent      map[string][]*discordgo.MessageSend
	edits     []*discordgo.MessageEdit
	sendErr   error
}

func newFakeSession() *fakeSession {
	return &fakeSession{sent: make(map[string][]*discordgo.MessageSend)}
}

func (f *fakeSession) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeSession) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.followups = append(f.followups, data)
	return &discordgo.Message{ID: "followup"}, nil
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent[channelID] = append(f.sent[channelID], data)
	return &discordgo.Message{ID: "m1", ChannelID: channelID}, nil
}

func (f *fakeSession) ChannelMessageEditComplex(m *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.edits = append(f.edits, m)
	return &discordgo.Message{ID: m.ID, ChannelID: m.Channel}, nil
}

type fakeHandler struct {
	commands   int
	components []string
	notifier   notify.Notifier
}

func (h *fakeHandler) HandleCommand(ctx context.Context, it notify.Interaction) error {
	h.commands++
	if err := it.Defer(ctx); err != nil {
		return err
	}
	return it.Reply(ctx, notify.Message{Content: "hello " + it.User()})
}

func (h *fakeHandler) HandleComponent(ctx context.Context, it notify.Interaction, customID string, n notify.Notifier) error {
	h.components = append(h.components, customID)
	h.notifier = n
	if err := it.Defer(ctx); err != nil {
		return err
	}
	return it.ReplyPrivate(ctx, notify.Message{Content: "stale"})
}

func newTestGateway(channelID string) *Gateway {
	return &Gateway{logger: zerolog.Nop(), ctx: context.Background(), channelID: channelID}
}

func TestDispatch_Command(t *testing.T) {
	s := newFakeSession()
	h := &fakeHandler{}
	i := &discordgo.Interaction{
		ID:        "1",
		Type:      discordgo.InteractionApplicationCommand,
		ChannelID: "c1",
		Data:      discordgo.ApplicationCommandInteractionData{Name: CommandName},
		Member:    &discordgo.Member{User: &discordgo.User{Username: "qa-lead"}},
	}
	newTestGateway("").dispatch(s, i, h)

	require.Equal(t, 1, h.commands)
	require.Len(t, s.responses, 1)
	assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, s.responses[0].Type)
	require.Len(t, s.followups, 1)
	assert.Equal(t, "hello qa-lead", s.followups[0].Content)
	assert.Zero(t, s.followups[0].Flags)

	// other commands are ignored
	i.Data = discordgo.ApplicationCommandInteractionData{Name: "other"}
	newTestGateway("").dispatch(s, i, h)
	assert.Equal(t, 1, h.commands)
}

func TestDispatch_Component(t *testing.T) {
	tests := []struct {
		name        string
		channelID   string
		wantChannel string
	}{
		{"interaction channel", "", "c1"},
		{"fixed channel", "reports", "reports"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFakeSession()
			h := &fakeHandler{}
			i := &discordgo.Interaction{
				ID:        "2",
				Type:      discordgo.InteractionMessageComponent,
				ChannelID: "c1",
				Data:      discordgo.MessageComponentInteractionData{CustomID: "autobot:env:w1:pantera"},
				User:      &discordgo.User{Username: "dm-user"},
			}
			newTestGateway(tt.channelID).dispatch(s, i, h)

			require.Equal(t, []string{"autobot:env:w1:pantera"}, h.components)
			require.Len(t, s.responses, 1)
			assert.Equal(t, discordgo.InteractionResponseDeferredMessageUpdate, s.responses[0].Type)
			require.Len(t, s.followups, 1)
			assert.Equal(t, discordgo.MessageFlagsEphemeral, s.followups[0].Flags)

			ref, err := h.notifier.Send(context.Background(), notify.Message{Content: "run started"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantChannel, ref.ChannelID)
			require.Len(t, s.sent[tt.wantChannel], 1)
		})
	}
}

func TestChannel_SendAndEdit(t *testing.T) {
	s := newFakeSession()
	c := newChannel(s, "c1")

	ref, err := c.Send(context.Background(), notify.Message{
		Embed:   &notify.Embed{Title: "[agente][pantera]: 80 % -", Color: notify.ColorFailure, Footer: "04/03/26, 15:16"},
		Buttons: []notify.Button{{Label: "Report", URL: "https://reports.example.com/r", Style: notify.StyleLink}},
	})
	require.NoError(t, err)
	assert.Equal(t, notify.MessageRef{ChannelID: "c1", MessageID: "m1"}, ref)

	sent := s.sent["c1"][0]
	require.Len(t, sent.Embeds, 1)
	assert.Equal(t, notify.ColorFailure, sent.Embeds[0].Color)
	assert.Equal(t, "04/03/26, 15:16", sent.Embeds[0].Footer.Text)
	require.Len(t, sent.Components, 1)
	row := sent.Components[0].(discordgo.ActionsRow)
	btn := row.Components[0].(discordgo.Button)
	assert.Equal(t, discordgo.LinkButton, btn.Style)
	assert.Equal(t, "https://reports.example.com/r", btn.URL)
	assert.Empty(t, btn.CustomID)

	require.NoError(t, c.Edit(context.Background(), ref, notify.Message{Content: "still running"}))
	require.Len(t, s.edits, 1)
	assert.Equal(t, "m1", s.edits[0].ID)
	require.NotNil(t, s.edits[0].Content)
	assert.Equal(t, "still running", *s.edits[0].Content)

	s.sendErr = errors.New("missing access")
	_, err = c.Send(context.Background(), notify.Message{Content: "x"})
	require.ErrorContains(t, err, "missing access")
}

func TestToComponents_RowsOfFive(t *testing.T) {
	var buttons []notify.Button
	for i := 0; i < 7; i++ {
		buttons = append(buttons, notify.Button{Label: "b", ID: "id", Style: notify.StyleDanger})
	}
	rows := toComponents(buttons)
	require.Len(t, rows, 2)
	assert.Len(t, rows[0].(discordgo.ActionsRow).Components, 5)
	assert.Len(t, rows[1].(discordgo.ActionsRow).Components, 2)
	assert.Equal(t, discordgo.DangerButton, rows[0].(discordgo.ActionsRow).Components[0].(discordgo.Button).Style)
	assert.Nil(t, toComponents(nil))
}
