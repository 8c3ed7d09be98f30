package main

import (
	"errors"

	"lifeline-plus/cmd/bootstrap"
	"lifeline-plus/config"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		if errors.Is(err, config.ErrMissingConfig) {
			logrus.Fatalf("Missing env variables: %v", err)
		}
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Initialize application with all dependencies
	app, err := bootstrap.New(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize application: %v", err)
	}

	// Run the application
	app.Run()
}
