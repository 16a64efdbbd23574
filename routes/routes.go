package routes

import (
	"CareChain/cache"
	"CareChain/config"
	"CareChain/controllers"
	"CareChain/database"
	"CareChain/handlers"
	"CareChain/middlewares"
	"CareChain/repositories"
	"CareChain/services"
	"CareChain/utils"
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dependencies are the connections opened by the serve command.
type Dependencies struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Cache  *cache.Cache
	Users  *repositories.UserRepository
	Tokens *utils.TokenMaker
	Events services.EventPublisher
	Alerts services.Alerter
	Logger *zap.Logger
}

// SetupRoutes initializes the services, routes and middleware for the server
func SetupRoutes(cfg *config.AppConfig, deps Dependencies) (http.Handler, error) {
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	log := deps.Logger

	router := gin.New()
	router.Use(middlewares.Recovery(log))
	router.Use(middlewares.LoggingMiddleware(log))
	router.Use(middlewares.CorsMiddleware(cfg.AllowedOrigins))
	router.Use(middlewares.SecurityHeaders())
	router.Use(middlewares.NewRateLimiterMiddleware(middlewares.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	}))

	appointmentRepo := repositories.NewAppointmentRepository(deps.DB, deps.Cache, log)
	workItemRepo := repositories.NewWorkItemRepository(deps.DB)
	users := deps.Users
	if users == nil {
		users = repositories.NewUserRepository(deps.DB, deps.Cache, log)
	}

	policy, err := services.NewAssignmentPolicy(cfg.Workflow.AssignmentPolicy, workItemRepo, database.NewRedisCounter(deps.Redis))
	if err != nil {
		return nil, err
	}
	dispatcher := services.NewDispatchService(users, workItemRepo, policy, deps.Events, log.Named("dispatch"))

	appointmentService, err := services.NewAppointmentService(cfg.Workflow, services.AppointmentServiceDeps{
		Store:      appointmentRepo,
		Directory:  users,
		Locker:     database.NewRedisLocker(deps.Redis, log),
		Dispatcher: dispatcher,
		Alerter:    deps.Alerts,
		Events:     deps.Events,
		Logger:     log.Named("appointments"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build appointment service: %w", err)
	}

	controllers.NewAppointmentController(
		handlers.NewAppointmentHandler(appointmentService, log),
		handlers.NewWorkItemHandler(dispatcher, log),
		middlewares.TokenAuthMiddleware(deps.Tokens, log),
	).RegisterRoutes(router)

	controllers.SetupRootRoute(router, map[string]controllers.HealthCheck{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := deps.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error {
			return deps.Redis.Ping(ctx).Err()
		},
	})

	log.Info("routes registered",
		zap.String("workflow_mode", cfg.Workflow.Mode),
		zap.String("assignment_policy", cfg.Workflow.AssignmentPolicy),
		zap.String("cancel_policy", cfg.Workflow.CancelPolicy))
	return router, nil
}
