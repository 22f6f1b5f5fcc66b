package chatbot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-playground/validator/v10"

	"github.com/patric-chuzhbe/verifybot/internal/logger"
	"github.com/patric-chuzhbe/verifybot/internal/models"
)

const (
	VerifyCommandName = "verify"
	UserIDOptionName  = "user_id"

	AlreadyVerifiedText = "This discord account has already been verified."
	InvalidUserIDText   = "Invalid User ID."
	LinkSentText        = "Link sent!"
	LinkNotSentText     = "The link could not be sent. Please try again later."

	emailSubject = "Link your discord account"
	emailTimeout = 30 * time.Second
)

type verifier interface {
	GetEmail(ctx context.Context, externalUserID string) (string, bool, error)
	IsVerified(ctx context.Context, chatUserID string) (bool, error)
	CreateSession(ctx context.Context, chatUserID, externalUserID string) (string, error)
}

type emailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// VerifyModule deletes messages of unverified members and serves /verify.
type VerifyModule struct {
	verifier    verifier
	mailer      emailSender
	linkBaseURL string
	validate    *validator.Validate
}

func NewVerifyModule(verifier verifier, mailer emailSender, linkBaseURL string) *VerifyModule {
	return &VerifyModule{
		verifier:    verifier,
		mailer:      mailer,
		linkBaseURL: strings.TrimRight(linkBaseURL, "/"),
		validate:    validator.New(),
	}
}

func (m *VerifyModule) Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        VerifyCommandName,
			Description: "Request a verification link email to speak in the server.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        UserIDOptionName,
					Description: "Your user ID",
					Required:    true,
				},
			},
		},
	}
}

func (m *VerifyModule) Intents() discordgo.Intent {
	return discordgo.IntentsGuildMessages
}

func (m *VerifyModule) Register(dg *discordgo.Session) {
	dg.AddHandler(func(s *discordgo.Session, msg *discordgo.MessageCreate) {
		m.onMessageCreate(context.Background(), s, msg)
	})
	dg.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		m.onInteractionCreate(context.Background(), s, i)
	})
}

// VerificationLink is the URL emailed for token.
func (m *VerifyModule) VerificationLink(token string) string {
	return m.linkBaseURL + "/verify/" + token
}

// shouldDelete reports whether msg comes from a human who is not verified.
func (m *VerifyModule) shouldDelete(ctx context.Context, msg *discordgo.Message) (bool, error) {
	if msg.Author == nil || msg.Author.Bot || msg.GuildID == "" {
		return false, nil
	}

	verified, err := m.verifier.IsVerified(ctx, msg.Author.ID)
	if err != nil {
		return false, err
	}

	return !verified, nil
}

func (m *VerifyModule) onMessageCreate(ctx context.Context, s session, msg *discordgo.MessageCreate) {
	shouldDelete, err := m.shouldDelete(ctx, msg.Message)
	if err != nil {
		logger.Log.Errorw("error calling the `m.shouldDelete()`", "error", err)
		return
	}
	if !shouldDelete {
		return
	}

	if err := s.ChannelMessageDelete(msg.ChannelID, msg.ID); err != nil {
		logger.Log.Warnw("cannot delete message of unverified user",
			"channel", msg.ChannelID,
			"message", msg.ID,
			"author", msg.Author.ID,
			"error", err,
		)
	}
}

// RequestLink runs the /verify command and returns the reply for the caller.
func (m *VerifyModule) RequestLink(ctx context.Context, chatUser *discordgo.User, externalUserID string) (string, error) {
	verified, err := m.verifier.IsVerified(ctx, chatUser.ID)
	if err != nil {
		return "", err
	}
	if verified {
		return AlreadyVerifiedText, nil
	}

	if err := m.validate.Struct(models.VerifyCommandArgs{UserID: externalUserID}); err != nil {
		return InvalidUserIDText, nil
	}

	email, found, err := m.verifier.GetEmail(ctx, externalUserID)
	if err != nil {
		return "", err
	}
	if !found {
		return InvalidUserIDText, nil
	}

	token, err := m.verifier.CreateSession(ctx, chatUser.ID, externalUserID)
	if err != nil {
		return "", err
	}

	body := fmt.Sprintf("Link your discord account %s? Click here: %s", chatUser.String(), m.VerificationLink(token))
	if err := m.mailer.SendEmail(ctx, email, emailSubject, body); err != nil {
		return "", err
	}

	return LinkSentText, nil
}

func (m *VerifyModule) onInteractionCreate(ctx context.Context, s session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if data.Name != VerifyCommandName {
		return
	}

	chatUser := interactionUser(i.Interaction)
	if chatUser == nil {
		return
	}

	externalUserID := ""
	for _, option := range data.Options {
		if option.Name == UserIDOptionName && option.Type == discordgo.ApplicationCommandOptionString {
			externalUserID = strings.TrimSpace(option.StringValue())
		}
	}

	// Sending the email may take longer than the interaction deadline.
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		logger.Log.Warnw("cannot acknowledge /verify", "user", chatUser.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, emailTimeout)
	defer cancel()

	reply, err := m.RequestLink(ctx, chatUser, externalUserID)
	if err != nil {
		logger.Log.Errorw("error calling the `m.RequestLink()`", "user", chatUser.ID, "error", err)
		reply = LinkNotSentText
	}

	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &reply}); err != nil {
		logger.Log.Warnw("cannot reply to /verify", "user", chatUser.ID, "error", err)
	}
}
