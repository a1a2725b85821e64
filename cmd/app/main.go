package main

import (
	"flag"
	"log"
	"os"
	_ "time/tzdata"

	"OptArb/internal/di"
	"OptArb/pkg/config"
	"OptArb/pkg/server"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	role := flag.String("role", config.RolePipeline, "process role: pipeline, risk or sink")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if err := cfg.Validate(*role); err != nil {
		log.Fatalf("config invalid: %v", err)
	}

	log.Printf("env=%s role=%s results=%s risk_store=%s", cfg.Environment, *role, cfg.Results.Backend, cfg.Risk.Store)

	var (
		app     *server.App
		cleanup func()
	)
	switch *role {
	case config.RolePipeline:
		app, cleanup, err = di.InitializePipelineApp(cfg)
	case config.RoleRisk:
		app, cleanup, err = di.InitializeRiskApp(cfg)
	case config.RoleSink:
		app, cleanup, err = di.InitializeSinkApp(cfg)
	}
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run application (blocks until signal or session end)
	err = app.Run()
	cleanup()
	if err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
