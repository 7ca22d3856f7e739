package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"gammawatch/internal/config"
	"gammawatch/internal/notify"
	"gammawatch/internal/signals"
	"gammawatch/internal/upstox"
)

func main() {
	portOverride := flag.Int("port", 0, "override dashboard port")
	watchlistPath := flag.String("watchlist", "watchlist.yaml", "index watchlist file")
	envPath := flag.String("env", ".env", "env file (missing file is fine)")
	flag.Parse()

	_ = godotenv.Load(*envPath)

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	if *portOverride != 0 {
		cfg.ServerPort = *portOverride
	}

	families, err := config.LoadWatchlist(*watchlistPath, cfg.BucketSize)
	if err != nil {
		log.WithError(err).Fatal("watchlist")
	}
	for _, f := range families {
		log.WithFields(logrus.Fields{
			"instrument": f.InstrumentKey,
			"expiry":     f.Expiry,
			"step":       f.StrikeStep,
		}).Infof("tracking %s", f.Name)
	}

	client := upstox.NewClient(cfg.BaseURL, cfg.AccessToken, log)
	engine := signals.NewEngine(signals.Config{
		MinTickInterval: cfg.MinTickInterval,
		VolumeMult:      cfg.HFTVolumeMult,
		SmallMovePct:    cfg.SmallMovePct,
		GammaMovePct:    cfg.GammaMovePct,
		LookbackTicks:   cfg.LookbackTicks,
		RecentHFTWindow: cfg.RecentHFTWindow,
	})

	h := newHub(500)
	sink := notify.NewSink(cfg.BotToken, cfg.ChatID, cfg.AlertCooldown, log, h.Publish)
	if cfg.BotToken == "" || cfg.ChatID == "" {
		log.Warn("BOT_TOKEN/CHAT_ID not set; alerts go to log and dashboard only")
	}

	p := newPoller(cfg, families, client, engine, sink, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.serveWS())
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"poll_interval_sec":  cfg.PollInterval.Seconds(),
			"profile_refresh":    cfg.ProfileRefresh.String(),
			"alert_cooldown_sec": cfg.AlertCooldown.Seconds(),
			"strikes_per_side":   cfg.StrikesPerSide,
			"families":           p.status(),
		})
	})
	mux.HandleFunc("/api/alerts", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(map[string]any{"alerts": h.getHistory()})
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infof("dashboard: http://localhost:%d (ws: /ws)", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server")
		}
	}()

	log.Info("polling started")
	p.run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("stopped")
}
