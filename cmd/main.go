package main

import (
	"CareChain/cache"
	"CareChain/config"
	"CareChain/database"
	"CareChain/events"
	"CareChain/models"
	"CareChain/notifications"
	"CareChain/repositories"
	"CareChain/routes"
	"CareChain/utils"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "carechain",
		Short:        "Appointment workflow API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()

			if cfg.DBURL == "" {
				return errors.New("missing DB_URL environment variable")
			}
			db, err := database.InitDB(cmd.Context(), cfg.DBURL, cfg.IsDevelopment(), log)
			if err != nil {
				return err
			}
			defer database.Close(db)

			if err := database.RunMigrations(db, cfg.IsDevelopment()); err != nil {
				return err
			}
			log.Info("migrations applied")
			return nil
		},
	}
}

// tokenCmd issues access tokens for local testing.
func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if userID == "" {
				return errors.New("--user is required")
			}
			if !models.Role(role).Valid() {
				return fmt.Errorf("unknown role %q", role)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			tokens, err := utils.NewTokenMaker(cfg.SymmetricKey)
			if err != nil {
				return err
			}
			token, err := tokens.Generate(userID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("user", "", "User ID to embed in the token")
	cmd.Flags().String("role", string(models.RolePatient), "Role: patient, doctor, admin or technician")
	cmd.Flags().Duration("ttl", utils.AccessTokenExpiry, "Token lifetime")
	return cmd
}

func bootstrap() (*config.AppConfig, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	var log *zap.Logger
	if cfg.IsDevelopment() {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, log, nil
}

func runServer() error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.InitDB(ctx, cfg.DBURL, cfg.IsDevelopment(), log)
	if err != nil {
		return err
	}
	defer database.Close(db)
	if cfg.IsDevelopment() {
		if err := database.RunMigrations(db, true); err != nil {
			return err
		}
	}

	redisClient, err := database.NewRedisClient(cfg.Redis, log)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	appCache, err := cache.NewCache(redisClient)
	if err != nil {
		return err
	}

	tokens, err := utils.NewTokenMaker(cfg.SymmetricKey)
	if err != nil {
		return err
	}

	publisher, err := events.NewPublisher(cfg.RabbitMQ, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	users := repositories.NewUserRepository(db, appCache, log)
	listener, err := events.NewDirectoryListener(publisher.Connection(), cfg.RabbitMQ, users, log)
	if err != nil {
		return err
	}
	if err := listener.Start(ctx); err != nil {
		return err
	}
	defer listener.Stop()

	handler, err := routes.SetupRoutes(cfg, routes.Dependencies{
		DB:     db,
		Redis:  redisClient,
		Cache:  appCache,
		Users:  users,
		Tokens: tokens,
		Events: publisher,
		Alerts: notifications.NewMailer(cfg.Mail, log),
		Logger: log,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:           ":" + cfg.HTTPPort,
		Handler:        handler,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
		IdleTimeout:    30 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	serveErr := make(chan error, 1)
	go func() {
		defer wg.Done()
		log.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				database.MonitorRedisPool(redisClient, log)
			}
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("listen and serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	log.Info("shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	wg.Wait()
	log.Info("server exited gracefully")
	return nil
}
