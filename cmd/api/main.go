package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/elegantflow/crm-service/internal/api/http"
	"github.com/elegantflow/crm-service/internal/api/http/handlers"
	"github.com/elegantflow/crm-service/internal/auth"
	"github.com/elegantflow/crm-service/internal/config"
	"github.com/elegantflow/crm-service/internal/events"
	"github.com/elegantflow/crm-service/internal/mail"
	"github.com/elegantflow/crm-service/internal/observability"
	"github.com/elegantflow/crm-service/internal/persistence"
	"github.com/elegantflow/crm-service/internal/push"
	"github.com/elegantflow/crm-service/internal/repository"
	"github.com/elegantflow/crm-service/internal/service"
	"github.com/elegantflow/crm-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	orgRepo := repository.NewOrganizationRepository(pool)
	branchRepo := repository.NewBranchRepository(pool)
	clientRepo := repository.NewClientRepository(pool)
	projectRepo := repository.NewProjectRepository(pool)
	leadRepo := repository.NewLeadRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	resetRepo := repository.NewPasswordResetRepository(pool)

	dispatcher := events.NewInMemoryDispatcher(logger)
	engine := service.NewAssignmentEngine(service.AssignmentDependencies{
		UserRepo:   userRepo,
		ClientRepo: clientRepo,
		LeadRepo:   leadRepo,
		Metrics:    metrics,
		Logger:     logger,
	})

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:          userRepo,
		OrganizationRepo:  orgRepo,
		BranchRepo:        branchRepo,
		PasswordResetRepo: resetRepo,
		Mailer:            mail.NewResendMailer(cfg.Mail, logger),
		Logger:            logger,
	})
	organizationService := service.NewOrganizationService(orgRepo, branchRepo)
	teamService := service.NewTeamService(userRepo)
	clientService := service.NewClientService(service.ClientDependencies{
		ClientRepo:       clientRepo,
		ProjectRepo:      projectRepo,
		BranchRepo:       branchRepo,
		UserRepo:         userRepo,
		OrganizationRepo: orgRepo,
		Engine:           engine,
		Dispatcher:       dispatcher,
		Logger:           logger,
	})
	leadService := service.NewLeadService(service.LeadDependencies{
		LeadRepo:         leadRepo,
		ClientRepo:       clientRepo,
		BranchRepo:       branchRepo,
		UserRepo:         userRepo,
		OrganizationRepo: orgRepo,
		Engine:           engine,
		Dispatcher:       dispatcher,
		Metrics:          metrics,
		Logger:           logger,
	})
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: notificationRepo,
		UserRepo:         userRepo,
		OrganizationRepo: orgRepo,
		Notifier:         push.NewExpoNotifier(cfg.Push),
		Dispatcher:       dispatcher,
		Metrics:          metrics,
		Logger:           logger,
		Sound:            cfg.Push.Sound,
		Concurrency:      cfg.Push.Concurrency,
	})

	var mirror *events.RedisPublisher
	if cfg.Redis.Addr != "" {
		mirror = events.NewRedisPublisher(redis, cfg.Redis.ChannelPrefix, logger)
	}
	worker.StartEventWorkers(dispatcher, notificationService, mirror, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	routes := httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version,
			handlers.DependencyCheck{Name: "postgres", Ping: pg.Ping},
			handlers.DependencyCheck{Name: "redis", Ping: redis.Ping},
		),
		Auth:           handlers.NewAuthHandler(authService),
		Team:           handlers.NewTeamHandler(teamService),
		Organizations:  handlers.NewOrganizationHandler(organizationService),
		Clients:        handlers.NewClientHandler(clientService),
		Leads:          handlers.NewLeadHandler(leadService),
		Notifications:  handlers.NewNotificationHandler(notificationService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), userRepo),
	}
	if metrics != nil {
		routes.Metrics = metrics
		routes.MetricsPath = cfg.Metrics.Path
	}
	httptransport.RegisterRoutes(app, routes)

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("crm service started", zap.String("addr", cfg.App.Addr()), zap.String("env", cfg.App.Env))

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
