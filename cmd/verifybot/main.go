// Command verifybot gates a Discord guild behind an emailed confirmation
// link: messages of unverified members are deleted until the link served on
// SERVER_ADDRESS is opened.
package main

import (
	"github.com/patric-chuzhbe/verifybot/internal/app"
)

func main() {
	theApp, err := app.New()
	if err != nil {
		panic(err)
	}
	defer theApp.Close()

	if err := theApp.Run(); err != nil {
		panic(err)
	}
}
