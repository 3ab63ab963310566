package main

import (
	"log"

	"github.com/empuxa/totp-login/internal/login/app"
)

func main() {
	cfg := app.LoadConfig()

	// nil notifier falls back to logging issued codes, fine for local use.
	// Production deployments embed the login packages and supply a real
	// mail or SMS notifier here.
	application, err := app.New(cfg, nil)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
