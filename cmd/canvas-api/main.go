package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/canvas/backend/internal/config"
	"github.com/MarcoPoloResearchLab/canvas/backend/internal/database"
	"github.com/MarcoPoloResearchLab/canvas/backend/internal/drawings"
	"github.com/MarcoPoloResearchLab/canvas/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/canvas/backend/internal/rooms"
	"github.com/MarcoPoloResearchLab/canvas/backend/internal/server"
	"github.com/MarcoPoloResearchLab/canvas/backend/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "canvas-api",
		Short: "Collaborative whiteboard server",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	cmd.PersistentFlags().StringSlice("allowed-origins", defaults.GetStringSlice("cors.allowed_origins"), "Allowed CORS and websocket origins")
	cmd.PersistentFlags().Int("ws-send-buffer", defaults.GetInt("ws.send_buffer"), "Outbound frames queued per connection")
	cmd.PersistentFlags().Int64("ws-max-message-bytes", defaults.GetInt64("ws.max_message_bytes"), "Largest inbound websocket frame")
	cmd.PersistentFlags().Int("ws-ping-interval", defaults.GetInt("ws.ping_interval_seconds"), "Websocket ping interval in seconds")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "cors.allowed_origins", "allowed-origins")
	bindFlag(cmd, "ws.send_buffer", "ws-send-buffer")
	bindFlag(cmd, "ws.max_message_bytes", "ws-max-message-bytes")
	bindFlag(cmd, "ws.ping_interval_seconds", "ws-ping-interval")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	// Without --config the file is optional and flags, env and defaults apply.
	if err := viper.ReadInConfig(); err != nil && cfgFile != "" {
		return err
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenInMemory(logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	store, err := drawings.NewStore(drawings.StoreConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: drawings.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	hub := server.NewHub(appConfig.SendBuffer, logger)
	coordinator, err := session.NewCoordinator(session.Config{
		Transport: hub,
		Drawings:  store,
		Directory: rooms.NewDirectory(rooms.DirectoryConfig{
			Clock:      time.Now,
			IDProvider: rooms.NewUUIDProvider(),
		}),
		Logger: logger,
	})
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	handler, err := server.NewHTTPHandler(server.Dependencies{
		Sessions:        coordinator,
		Hub:             hub,
		Logger:          logger,
		AllowedOrigins:  appConfig.AllowedOrigins,
		MaxMessageBytes: appConfig.MaxMessageBytes,
		PingInterval:    appConfig.PingInterval,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}
	// Shutdown does not track hijacked websocket connections.
	httpServer.RegisterOnShutdown(hub.Close)

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
