package chatbot

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/mock"
)

type sessionMock struct {
	mock.Mock
}

func (m *sessionMock) ChannelMessageDelete(channelID, messageID string, _ ...discordgo.RequestOption) error {
	args := m.Called(channelID, messageID)
	return args.Error(0)
}

func (m *sessionMock) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	args := m.Called(interaction, resp)
	return args.Error(0)
}

func (m *sessionMock) InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	args := m.Called(interaction, newresp)
	msg, _ := args.Get(0).(*discordgo.Message)
	return msg, args.Error(1)
}

type mailerMock struct {
	mock.Mock
}

func (m *mailerMock) SendEmail(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

func newCommandInteraction(user *discordgo.User, name string, options ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:      "i1",
			Type:    discordgo.InteractionApplicationCommand,
			GuildID: "g1",
			Member:  &discordgo.Member{User: user},
			Data: discordgo.ApplicationCommandInteractionData{
				Name:    name,
				Options: options,
			},
		},
	}
}

func newButtonInteraction(user *discordgo.User, customID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:   "i2",
			Type: discordgo.InteractionMessageComponent,
			User: user,
			Data: discordgo.MessageComponentInteractionData{
				CustomID:      customID,
				ComponentType: discordgo.ButtonComponent,
			},
		},
	}
}
