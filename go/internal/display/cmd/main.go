package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bingoboard/go/internal/display/config"
	"github.com/mcdev12/bingoboard/go/internal/display/session"
	"github.com/mcdev12/bingoboard/go/internal/display/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	displayURL := flag.String("url", "", "display url carrying the session token (overrides DISPLAY_URL)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	rawURL := cfg.DisplayURL
	if *displayURL != "" {
		rawURL = *displayURL
	}
	token, err := session.TokenFromURL(rawURL)
	if err != nil {
		log.Fatal().Err(err).Msg("no usable display session token")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var st store.Store
	if cfg.Redis.Addr != "" {
		rs, err := store.NewRedisStore(ctx, store.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect display state store")
		}
		st = rs
	} else {
		log.Warn().Msg("no redis configured, display state will not survive restarts")
		st = store.NewMemoryStore(clockwork.NewRealClock())
	}
	defer st.Close()

	scfg := session.DefaultConfig()
	scfg.Token = token
	scfg.SocketURL = cfg.SocketURL
	scfg.APIBaseURL = cfg.APIBaseURL
	scfg.Store = st
	scfg.ResyncInterval = cfg.ResyncInterval()
	scfg.ResyncInitialDelay = cfg.ResyncInitialDelay()
	scfg.DrawingClearAfter = cfg.DrawingClear()
	scfg.Transport.ReconnectWait = cfg.ReconnectWait()
	scfg.Transport.MaxReconnects = cfg.MaxReconnects
	scfg.Transport.IdleRetryWait = cfg.IdleRetryWait()

	sess, err := session.Open(ctx, scfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open display session")
	}
	defer sess.Close()

	notices, unsubscribe := sess.Notices(32)
	defer unsubscribe()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("shutting down")
			return

		case n, ok := <-notices:
			if !ok {
				return
			}
			switch n.Kind {
			case session.NoticeConnection:
				log.Info().Bool("connected", n.Connected).Str("message", n.Message).Msg("connection state")
			case session.NoticeOverlay:
				log.Info().Bool("visible", n.Visible).Msg("selection overlay")
			case session.NoticeReload:
				log.Info().Str("reason", n.Reason).Msg("view reload requested")
			case session.NoticeSound:
				log.Info().Str("outcome", n.Outcome).Msg("verification sound")
			case session.NoticeFatal:
				log.Error().Err(n.Err).Str("reason", n.Reason).Msg("session ended")
				return
			}
		}
	}
}
