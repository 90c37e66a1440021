package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/mauth/internal/config"
	"github.com/xxxsen/mauth/internal/handler"
	"github.com/xxxsen/mauth/internal/job"
	"github.com/xxxsen/mauth/internal/mailer"
	"github.com/xxxsen/mauth/internal/metrics"
	"github.com/xxxsen/mauth/internal/middleware"
	"github.com/xxxsen/mauth/internal/repo"
	"github.com/xxxsen/mauth/internal/schedule"
	"github.com/xxxsen/mauth/internal/service"
	"github.com/xxxsen/mauth/internal/session"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "mauth",
		Short: "mauth email/password auth server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run mauth server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded",
				zap.String("config", configPath),
				zap.String("env", cfg.Env),
			)
			return runServer(cfg)
		},
	}
	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json (environment variables override it)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(newClientCmd())

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logutil.GetLogger(ctx)
	log.Info("starting server",
		zap.Int("port", cfg.Port),
		zap.String("store", cfg.Store.Type),
		zap.String("mail", cfg.Mail.Type),
		zap.String("rate_limit", cfg.RateLimit.Type),
	)

	users, err := repo.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := users.Close(closeCtx); err != nil {
			log.Error("close store failed", zap.Error(err))
		}
	}()

	sender, err := mailer.NewSender(cfg.Mail)
	if err != nil {
		return fmt.Errorf("init mail sender: %w", err)
	}
	renderer, err := mailer.NewRenderer()
	if err != nil {
		return fmt.Errorf("init mail templates: %w", err)
	}
	notifier := mailer.NewNotifier(sender, renderer, mailer.Address{Email: cfg.Mail.FromEmail, Name: cfg.Mail.FromName}, cfg.Mail.FromName)

	sessions := session.NewManager(session.Options{
		Secret:     []byte(cfg.Session.Secret),
		TTL:        time.Duration(cfg.Session.TTLHours) * time.Hour,
		CookieName: cfg.Session.CookieName,
		Domain:     cfg.Session.Domain,
		Secure:     cfg.IsProduction(),
	})
	authService := service.NewAuthService(users, sessions, notifier, service.Options{ClientURL: cfg.ClientURL})

	limiter, err := middleware.NewLimiter(ctx, cfg.RateLimit)
	if err != nil {
		return fmt.Errorf("init rate limiter: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg)

	deps := handler.RouterDeps{
		Auth:     handler.NewAuthHandler(authService, sessions),
		Sessions: sessions,
		Limiter:  limiter,
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.Metrics(),
			middleware.Secure(middleware.SecureOptions(cfg.IsProduction())),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewTokenCleanupJob(users), cfg.Cleanup.Cron); err != nil {
		return fmt.Errorf("schedule token cleanup: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	server := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve http: %w", err)
		}
	}
	log.Info("server stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
