package main

import (
	"ecovolt/internal/bootstrap"
	"ecovolt/pkg/config"
)

const ServiceName = "ecovolt"

func main() {
	cfg := config.Load(ServiceName)
	if cfg.UsesMongo() {
		cfg.SetMongo()
	}

	application, err := bootstrap.Build(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to build application", "error", err)
	}
	application.Run()
}
