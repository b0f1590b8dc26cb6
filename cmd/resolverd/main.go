package main

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/flagresolve/engine/core"
	"github.com/flagresolve/engine/internal/adminhttp"
	"github.com/flagresolve/engine/pkg/config"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	entry := logrus.NewEntry(log)

	cfg := config.Defaults()
	if loaded, err := config.LoadFromEnv(); err == nil {
		cfg = *loaded
	} else {
		entry.WithError(err).Warn("using built-in defaults, no config file found")
	}

	statePath := os.Getenv("RESOLVER_STATE_FILE")
	if statePath == "" {
		entry.Fatal("RESOLVER_STATE_FILE must name a snapshot file to load at startup")
	}
	snapshot, err := os.ReadFile(statePath)
	if err != nil {
		entry.WithError(err).Fatal("read snapshot file")
	}

	engine, err := core.NewEngine(core.SystemClock{}, core.EngineConfig{
		MissingCacheSize: cfg.Engine.MissingCacheSize,
		FlushMaxBytes:    cfg.Engine.FlushMaxBytes,
	}, entry)
	if err != nil {
		entry.WithError(err).Fatal("construct engine")
	}

	accountID := os.Getenv("RESOLVER_ACCOUNT_ID")
	if err := engine.SetState(snapshot, accountID); err != nil {
		entry.WithError(err).Fatal("install initial resolver state")
	}

	if !cfg.Admin.Enabled {
		entry.Info("admin surface disabled, idling")
		select {}
	}

	r := mux.NewRouter()
	adminhttp.Register(r, adminhttp.NewController(engine), entry)

	entry.WithField("addr", cfg.Admin.ListenAddr).Info("resolverd admin surface listening")
	if err := http.ListenAndServe(cfg.Admin.ListenAddr, r); err != nil {
		entry.WithError(err).Fatal("admin http server stopped")
	}
}
