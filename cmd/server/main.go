package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/server"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/config"
	"github.com/joho/godotenv"
)

func main() {
	// a missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)
}
