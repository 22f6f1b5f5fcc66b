package main

import (
	"log"
	"os"

	"go.uber.org/zap"
)

var sugar = &zap.SugaredLogger{}

func main() {
	defer save()

	if len(os.Args) > 3 {
		os.Exit(2) // want `os.Exit in main.main skips deferred calls; return an error instead`
	}
	if len(os.Args) > 2 {
		log.Fatalf("too many arguments: %d", len(os.Args)) // want `log.Fatalf in main.main skips deferred calls`
	}
	if len(os.Args) > 1 {
		sugar.Fatalw("unexpected argument", "arg", os.Args[1]) // want `zap Fatalw in main.main skips deferred calls`
	}

	func() {
		(&zap.Logger{}).Fatal("from a closure") // want `zap Fatal in main.main skips deferred calls`
	}()

	sugar.Infow("started")
	log.Println("started")
}

func save() {}

func helper() {
	os.Exit(1)
}
