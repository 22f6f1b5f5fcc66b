// Package chatbot is the Discord front-end of the bots. Bot owns the gateway
// connection and the slash-command registrations; features plug into it as
// modules.
package chatbot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/patric-chuzhbe/verifybot/internal/logger"
)

// session is the part of *discordgo.Session the handlers call.
type session interface {
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Module is a set of slash commands and the handlers serving them.
type Module interface {
	Commands() []*discordgo.ApplicationCommand
	Register(dg *discordgo.Session)
	Intents() discordgo.Intent
}

type Bot struct {
	dg         *discordgo.Session
	guildID    string
	modules    []Module
	registered []*discordgo.ApplicationCommand
}

// New prepares a gateway session for token. Commands are registered in
// guildID, or globally when it is empty.
func New(token, guildID string, modules ...Module) (*Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("in chatbot.New(): empty bot token")
	}

	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("in chatbot.New(): error while `discordgo.New()` calling: %w", err)
	}

	dg.Identify.Intents = discordgo.IntentsGuilds
	for _, module := range modules {
		dg.Identify.Intents |= module.Intents()
		module.Register(dg)
	}
	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		logger.Log.Infof("%s is ready and online!", r.User.String())
	})

	return &Bot{
		dg:      dg,
		guildID: guildID,
		modules: modules,
	}, nil
}

// Open connects to the gateway and registers every module command.
func (b *Bot) Open() error {
	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("in chatbot.Open(): error while `b.dg.Open()` calling: %w", err)
	}

	for _, module := range b.modules {
		for _, command := range module.Commands() {
			created, err := b.dg.ApplicationCommandCreate(b.dg.State.User.ID, b.guildID, command)
			if err != nil {
				return fmt.Errorf("in chatbot.Open(): cannot register /%s: %w", command.Name, err)
			}
			b.registered = append(b.registered, created)
		}
	}

	return nil
}

// Close removes the registered commands and disconnects.
func (b *Bot) Close() error {
	for _, command := range b.registered {
		err := b.dg.ApplicationCommandDelete(b.dg.State.User.ID, b.guildID, command.ID)
		if err != nil {
			logger.Log.Warnw("cannot delete command", "command", command.Name, "error", err)
		}
	}
	b.registered = nil

	return b.dg.Close()
}

func interactionUser(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}

	return i.User
}
