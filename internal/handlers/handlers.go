package handlers

import (
	"time"

	"github.com/danlang422/here-app/internal/clock"
	"github.com/danlang422/here-app/internal/config"
)

// Package-level collaborators, set once at startup. Handlers read the clock
// through this variable so tests can pin time.
var (
	Clock     clock.Clock = clock.NewSchool(time.Local)
	schoolLoc             = time.Local
	adminPass             = "admin123"
)

// Init wires the handlers to the loaded configuration.
func Init(cfg *config.AppConfig) {
	Clock = clock.NewSchool(cfg.Location)
	schoolLoc = cfg.Location
	adminPass = cfg.AdminPassword
}
