package main

import (
	"net/http"

	"github.com/danlang422/here-app/internal/config"
	"github.com/danlang422/here-app/internal/db"
	"github.com/danlang422/here-app/internal/handlers"
	"github.com/danlang422/here-app/internal/logger"
	"github.com/danlang422/here-app/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("config: %v", err)
	}
	logger.Init(cfg)

	if err := db.Init(cfg.DBPath); err != nil {
		logger.Log.Fatalf("db init: %v", err)
	}

	handlers.Init(cfg)
	r := web.Router(cfg.Location)

	logger.Log.Infof("Here listening on %s (school timezone %s)", cfg.Addr, cfg.SchoolTZ)
	if err := http.ListenAndServe(cfg.Addr, r); err != nil {
		logger.Log.Fatal(err)
	}
}
