// Package discord adapts the Discord gateway to the notify contracts:
// slash commands and button presses become notify.Interaction values,
// and channels become notify.Notifier values.
package discord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/chattigo/autobot/notify"
)

const (
	// CommandName is the slash command that starts a wizard.
	CommandName        = "auto"
	commandDescription = "Run the end-to-end test suite"

	// interactionTimeout bounds the handling of one interaction. Tokens
	// stay valid for 15 minutes, so this is only a safety net.
	interactionTimeout = 5 * time.Minute
)

// Handler receives the interactions of the gateway.
type Handler interface {
	HandleCommand(ctx context.Context, it notify.Interaction) error
	HandleComponent(ctx context.Context, it notify.Interaction, customID string, n notify.Notifier) error
}

// session is the part of *discordgo.Session used to talk back.
type session interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Gateway is a bot connection serving the /auto command.
type Gateway struct {
	logger    zerolog.Logger
	session   *discordgo.Session
	guildID   string
	channelID string

	ctx      context.Context
	cancel   context.CancelFunc
	commands []*discordgo.ApplicationCommand
	removeFn func()
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithGuild registers the command in one guild instead of globally.
// Guild commands are available immediately.
func WithGuild(guildID string) Option {
	return func(g *Gateway) { g.guildID = guildID }
}

// WithChannel posts run messages to a fixed channel instead of the
// channel the command was used in.
func WithChannel(channelID string) Option {
	return func(g *Gateway) { g.channelID = channelID }
}

// New creates a gateway for the bot token. It does not connect yet.
func New(logger zerolog.Logger, token string, opts ...Option) (*Gateway, error) {
	if token == "" {
		return nil, errors.New("discord token is required")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds

	ctx, cancel := context.WithCancel(context.Background())
	g := &Gateway{logger: logger, session: s, ctx: ctx, cancel: cancel}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Start connects, registers the command and dispatches interactions to h.
func (g *Gateway) Start(h Handler) error {
	g.removeFn = g.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		g.dispatch(s, ic.Interaction, h)
	})
	g.session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		g.logger.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("Connected to Discord")
	})

	if err := g.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	cmd, err := g.session.ApplicationCommandCreate(g.session.State.User.ID, g.guildID, &discordgo.ApplicationCommand{
		Name:        CommandName,
		Description: commandDescription,
	})
	if err != nil {
		g.session.Close()
		return fmt.Errorf("failed to register /%s command: %w", CommandName, err)
	}
	g.commands = append(g.commands, cmd)
	g.logger.Info().Str("command", CommandName).Str("guild", g.guildID).Msg("Registered command")
	return nil
}

// Close unregisters guild commands and disconnects.
func (g *Gateway) Close() error {
	g.cancel()
	if g.removeFn != nil {
		g.removeFn()
	}
	// Global commands are kept, they take long to propagate again.
	if g.guildID != "" && g.session.State != nil && g.session.State.User != nil {
		for _, cmd := range g.commands {
			if err := g.session.ApplicationCommandDelete(g.session.State.User.ID, g.guildID, cmd.ID); err != nil {
				g.logger.Warn().Err(err).Str("command", cmd.Name).Msg("Failed to delete command")
			}
		}
	}
	if err := g.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	return nil
}

func (g *Gateway) dispatch(s session, i *discordgo.Interaction, h Handler) {
	ctx, cancel := context.WithTimeout(g.ctx, interactionTimeout)
	defer cancel()

	logger := g.logger.With().Str("interaction", i.ID).Str("channel", i.ChannelID).Logger()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Interaction handler panicked")
		}
	}()

	var err error
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if i.ApplicationCommandData().Name != CommandName {
			return
		}
		err = h.HandleCommand(ctx, newInteraction(s, i, false))
	case discordgo.InteractionMessageComponent:
		channelID := g.channelID
		if channelID == "" {
			channelID = i.ChannelID
		}
		err = h.HandleComponent(ctx, newInteraction(s, i, true), i.MessageComponentData().CustomID, newChannel(s, channelID))
	default:
		return
	}
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to handle interaction")
	}
}

// interaction wraps one inbound interaction.
type interaction struct {
	s         session
	i         *discordgo.Interaction
	component bool
}

func newInteraction(s session, i *discordgo.Interaction, component bool) *interaction {
	return &interaction{s: s, i: i, component: component}
}

func (it *interaction) Defer(ctx context.Context) error {
	typ := discordgo.InteractionResponseDeferredChannelMessageWithSource
	if it.component {
		// keeps the pressed message as is, follow-ups are new messages
		typ = discordgo.InteractionResponseDeferredMessageUpdate
	}
	return it.s.InteractionRespond(it.i, &discordgo.InteractionResponse{Type: typ}, discordgo.WithContext(ctx))
}

func (it *interaction) Reply(ctx context.Context, msg notify.Message) error {
	_, err := it.s.FollowupMessageCreate(it.i, true, toWebhookParams(msg, false), discordgo.WithContext(ctx))
	return err
}

func (it *interaction) ReplyPrivate(ctx context.Context, msg notify.Message) error {
	_, err := it.s.FollowupMessageCreate(it.i, true, toWebhookParams(msg, true), discordgo.WithContext(ctx))
	return err
}

func (it *interaction) User() string {
	switch {
	case it.i.Member != nil && it.i.Member.User != nil:
		return it.i.Member.User.Username
	case it.i.User != nil:
		return it.i.User.Username
	default:
		return ""
	}
}

// channel posts plain channel messages, which unlike interaction
// follow-ups do not expire while a long run is in progress.
type channel struct {
	s  session
	id string
}

func newChannel(s session, id string) *channel {
	return &channel{s: s, id: id}
}

func (c *channel) Send(ctx context.Context, msg notify.Message) (notify.MessageRef, error) {
	m, err := c.s.ChannelMessageSendComplex(c.id, toMessageSend(msg), discordgo.WithContext(ctx))
	if err != nil {
		return notify.MessageRef{}, fmt.Errorf("failed to send message to channel %s: %w", c.id, err)
	}
	return notify.MessageRef{ChannelID: m.ChannelID, MessageID: m.ID}, nil
}

func (c *channel) Edit(ctx context.Context, ref notify.MessageRef, msg notify.Message) error {
	edit := discordgo.NewMessageEdit(ref.ChannelID, ref.MessageID).SetContent(msg.Content)
	if embeds := toEmbeds(msg.Embed); embeds != nil {
		edit.SetEmbeds(embeds)
	}
	if _, err := c.s.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to edit message %s: %w", ref.MessageID, err)
	}
	return nil
}
