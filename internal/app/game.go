package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/patric-chuzhbe/verifybot/internal/chatbot"
	"github.com/patric-chuzhbe/verifybot/internal/config"
	"github.com/patric-chuzhbe/verifybot/internal/logger"
)

// GameApp runs the rock-paper-scissors bot. It needs only the bot token,
// the guild and the log level from the configuration.
type GameApp struct {
	cfg *config.Config
	bot *chatbot.Bot
}

func NewGame(optionsProto ...config.InitOption) (*GameApp, error) {
	var err error
	app := &GameApp{}

	app.cfg, err = config.New(optionsProto...)
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app.bot, err = chatbot.New(app.cfg.BotToken, app.cfg.GuildID, chatbot.NewGameModule())
	if err != nil {
		return nil, err
	}

	return app, nil
}

// Run connects the bot and blocks until a shutdown signal.
func (a *GameApp) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.bot.Open(); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Log.Infoln("Received shutdown signal. Exiting...")

	return a.bot.Close()
}

func (a *GameApp) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}
