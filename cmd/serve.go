package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/api"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the learning API and live traversal sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = e.logger.Sync() }()

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			e.cfg.Server.Addr = addr
		}
		tokens, err := api.NewTokens(e.cfg.Auth.JWTSecret, e.cfg.Auth.Issuer)
		if err != nil {
			return fmt.Errorf("auth: %w (set LEARNPATH_JWT_SECRET)", err)
		}

		st, err := openStore(cmd, e.cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		m := metrics.New()
		svc, err := buildServices(ctx, e, st, m)
		if err != nil {
			return err
		}
		defer svc.close()

		server := api.NewServer(api.Deps{
			Courses:       svc.courses,
			Progress:      svc.progress,
			Gamification:  svc.gamification,
			Notifications: st.Notifications(),
			Dispatcher:    svc.dispatcher,
			Hints:         svc.hints,
			Tokens:        tokens,
			Metrics:       m,
			Logger:        e.logger,
			Session: api.SessionConfig{
				Settle:         e.cfg.Navigation.Settle,
				TimerTick:      e.cfg.Navigation.TimerTick,
				AnswerDebounce: e.cfg.Progress.AnswerDebounce,
				SaveDebounce:   e.cfg.Progress.Debounce,
			},
		})

		hs := &http.Server{
			Addr:         e.cfg.Server.Addr,
			Handler:      server.Handler(),
			ReadTimeout:  e.cfg.Server.ReadTimeout,
			WriteTimeout: e.cfg.Server.WriteTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			e.logger.Info("listening", zap.String("addr", hs.Addr))
			errCh <- hs.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		e.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := hs.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides LEARNPATH_ADDR)")
}
