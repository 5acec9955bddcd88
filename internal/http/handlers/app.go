package handlers

import (
	"encoding/json"
	"net/http"

	"server/internal/broadcast"
	"server/internal/infra"
	"server/internal/pipeline"
)

// App bundles the handler dependencies. Everything is injected so tests can
// run against in-memory repositories.
type App struct {
	Engine      *pipeline.Engine
	Broadcaster *broadcast.Broadcaster
	Logger      infra.Logger
}

// NewApp creates the handler container.
func NewApp(engine *pipeline.Engine, broadcaster *broadcast.Broadcaster, logger infra.Logger) *App {
	return &App{Engine: engine, Broadcaster: broadcaster, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) jsonError(w http.ResponseWriter, code int, msg string) {
	a.json(w, code, map[string]string{"error": msg})
}
