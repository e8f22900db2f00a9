package main

import (
	"context"
	"fmt"
	"image/color"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Meet/internal/adapters/http"
	"github.com/dkeye/Meet/internal/adapters/media"
	"github.com/dkeye/Meet/internal/adapters/rest"
	signaladapter "github.com/dkeye/Meet/internal/adapters/signal"
	"github.com/dkeye/Meet/internal/app/session"
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/pkg/identity"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	who, err := identity.FromToken(cfg.AccessToken)
	if err != nil {
		log.Warn().Err(err).Msg("no usable access token, joining as guest")
		who, err = identity.Guest(cfg.DisplayName)
		if err != nil {
			log.Fatal().Err(err).Msg("identity")
		}
	}

	roomID := domain.RoomID(cfg.RoomID)
	channel, err := signaladapter.Connect(ctx, cfg.SignalURL, roomID, who, signaladapter.Options{
		ChatRatePerSec: cfg.ChatRatePerSec,
		ChatBurst:      cfg.ChatBurst,
	})
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.SignalURL).Msg("relay connect")
	}

	notices := router.NewNoticeLog(64)
	backend := rest.NewClient(cfg.BackendURL, cfg.AccessToken, cfg.BackendTimeout)

	ctrl := session.NewController(roomID, who, session.Deps{
		Config:  cfg,
		Channel: channel,
		Backend: backend,
		Devices: media.PatternDevices{
			CameraTone: color.RGBA{B: 0xc0},
			ScreenTone: color.RGBA{B: 0x40},
		},
		Notifier: notices,
		OnLeave:  cancel,
	})

	go func() {
		if err := ctrl.Run(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("session ended")
		}
		cancel()
	}()

	r := router.SetupRouter(cfg, ctrl, notices)
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.APIPort)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		log.Info().Str("addr", addr).Str("room", cfg.RoomID).Msg("Meet client started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("control api error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	ctrl.Teardown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("control api forced to shutdown")
	}
	log.Info().Msg("Client exited gracefully")
}
