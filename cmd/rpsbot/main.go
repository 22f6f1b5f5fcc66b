// Command rpsbot plays rock-paper-scissors through the /game command.
package main

import (
	"github.com/patric-chuzhbe/verifybot/internal/app"
)

func main() {
	game, err := app.NewGame()
	if err != nil {
		panic(err)
	}
	defer game.Close()

	if err := game.Run(); err != nil {
		panic(err)
	}
}
