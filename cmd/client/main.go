package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/client/cli"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/client/config"
)

func main() {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	app, err := cli.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)
}
