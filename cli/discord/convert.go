package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/chattigo/autobot/notify"
)

// maxButtonsPerRow is the platform limit for one action row.
const maxButtonsPerRow = 5

var buttonStyles = map[notify.ButtonStyle]discordgo.ButtonStyle{
	notify.StylePrimary:   discordgo.PrimaryButton,
	notify.StyleSecondary: discordgo.SecondaryButton,
	notify.StyleSuccess:   discordgo.SuccessButton,
	notify.StyleDanger:    discordgo.DangerButton,
	notify.StyleLink:      discordgo.LinkButton,
}

func toComponents(buttons []notify.Button) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	for start := 0; start < len(buttons); start += maxButtonsPerRow {
		end := min(start+maxButtonsPerRow, len(buttons))
		row := discordgo.ActionsRow{}
		for _, b := range buttons[start:end] {
			row.Components = append(row.Components, toButton(b))
		}
		rows = append(rows, row)
	}
	return rows
}

func toButton(b notify.Button) discordgo.Button {
	style, ok := buttonStyles[b.Style]
	if !ok {
		style = discordgo.SecondaryButton
	}
	btn := discordgo.Button{
		Label:    b.Label,
		Style:    style,
		Disabled: b.Disabled,
	}
	if b.URL != "" {
		// link buttons cannot carry a custom ID
		btn.Style = discordgo.LinkButton
		btn.URL = b.URL
	} else {
		btn.CustomID = b.ID
	}
	return btn
}

func toEmbeds(e *notify.Embed) []*discordgo.MessageEmbed {
	if e == nil {
		return nil
	}
	embed := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		URL:         e.URL,
		Color:       e.Color,
	}
	for _, f := range e.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if e.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	if e.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: e.ImageURL}
	}
	if !e.Timestamp.IsZero() {
		embed.Timestamp = e.Timestamp.Format(time.RFC3339)
	}
	return []*discordgo.MessageEmbed{embed}
}

func toMessageSend(msg notify.Message) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content:    msg.Content,
		Embeds:     toEmbeds(msg.Embed),
		Components: toComponents(msg.Buttons),
	}
}

func toWebhookParams(msg notify.Message, ephemeral bool) *discordgo.WebhookParams {
	params := &discordgo.WebhookParams{
		Content:    msg.Content,
		Embeds:     toEmbeds(msg.Embed),
		Components: toComponents(msg.Buttons),
	}
	if ephemeral {
		params.Flags = discordgo.MessageFlagsEphemeral
	}
	return params
}
