package chatbot

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/patric-chuzhbe/verifybot/internal/logger"
	"github.com/patric-chuzhbe/verifybot/internal/rps"
)

const (
	GameCommandName = "game"
	GamePromptText  = "Hey. let's play a game!"

	choiceIDPrefix = "rps:"
)

var choiceEmoji = map[rps.Selection]string{
	rps.Rock:     "🪨",
	rps.Paper:    "📄",
	rps.Scissors: "✂️",
}

// GameModule plays rock-paper-scissors through message buttons.
type GameModule struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

type GameInitOption func(*GameModule)

// WithRand makes the computer moves come from rnd.
func WithRand(rnd *rand.Rand) GameInitOption {
	return func(m *GameModule) {
		m.rnd = rnd
	}
}

func NewGameModule(opts ...GameInitOption) *GameModule {
	m := &GameModule{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *GameModule) Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        GameCommandName,
			Description: "Play rock-paper-scissors against the bot.",
		},
	}
}

func (m *GameModule) Intents() discordgo.Intent {
	return 0
}

func (m *GameModule) Register(dg *discordgo.Session) {
	dg.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		m.onInteractionCreate(s, i)
	})
}

func (m *GameModule) computerMove() rps.Selection {
	m.mu.Lock()
	defer m.mu.Unlock()

	return rps.Random(m.rnd)
}

func choiceButtons() []discordgo.MessageComponent {
	buttons := make([]discordgo.MessageComponent, 0, len(rps.Selections))
	for _, selection := range rps.Selections {
		buttons = append(buttons, discordgo.Button{
			Label:    selection.String(),
			Style:    discordgo.PrimaryButton,
			CustomID: choiceIDPrefix + selection.String(),
			Emoji:    &discordgo.ComponentEmoji{Name: choiceEmoji[selection]},
		})
	}

	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
}

func (m *GameModule) onInteractionCreate(s session, i *discordgo.InteractionCreate) {
	var response *discordgo.InteractionResponse

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if i.ApplicationCommandData().Name != GameCommandName {
			return
		}
		response = &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content:    GamePromptText,
				Components: choiceButtons(),
			},
		}
	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		if !strings.HasPrefix(customID, choiceIDPrefix) {
			return
		}
		player, err := rps.ParseSelection(strings.TrimPrefix(customID, choiceIDPrefix))
		if err != nil {
			logger.Log.Warnw("unknown game button", "custom_id", customID, "error", err)
			return
		}
		user := interactionUser(i.Interaction)
		if user == nil {
			return
		}
		response = &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: rps.Result(user.String(), player, m.computerMove()),
			},
		}
	default:
		return
	}

	if err := s.InteractionRespond(i.Interaction, response); err != nil {
		logger.Log.Warnw("cannot respond to interaction", "interaction", i.ID, "error", err)
	}
}
