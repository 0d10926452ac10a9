package main

import (
	"context"
	"log"

	"github.com/Frijidia/Arkiva-sub000/internal/server"
	"github.com/Frijidia/Arkiva-sub000/internal/server/config"
	"github.com/Frijidia/Arkiva-sub000/internal/server/entities"
	"github.com/Frijidia/Arkiva-sub000/internal/server/models"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	// entity collaborators are registered by the embedding deployment;
	// the bare server starts with an empty registry
	registry := entities.NewMapRegistry(map[models.TargetType]entities.Service{})

	app, err := server.NewApp(ctx, cfg, registry)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)
}
