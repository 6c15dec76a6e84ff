package main

import (
	"context"
	"log"

	"github.com/nichepulse/tokenvault/internal/app"
	"github.com/nichepulse/tokenvault/internal/config"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := a.Run(ctx); err != nil {
		log.Printf("%v", err)
	}
}
