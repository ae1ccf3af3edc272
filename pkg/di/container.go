package di

import (
	"context"
	"time"

	"chat-relay-demo/backend/internal/pending"
	"chat-relay-demo/backend/internal/relay"
	"chat-relay-demo/backend/internal/service"
	"chat-relay-demo/backend/pkg/config"
	"chat-relay-demo/backend/pkg/health"
	"chat-relay-demo/backend/pkg/jwt"
	"chat-relay-demo/backend/pkg/logger"
	"chat-relay-demo/backend/pkg/observability"
	"chat-relay-demo/backend/pkg/secrets"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Container holds all the dependencies for the application
type Container struct {
	DB              *gorm.DB
	Config          *config.Config
	Logger          *logger.Logger
	JWTService      *jwt.Service
	Tracker         *pending.Tracker
	RelayClient     *relay.Client
	Redis           *redis.Client
	Metrics         *observability.ExchangeMetrics
	UserService     *service.UserService
	MessageService  *service.MessageService
	ExchangeService *service.ExchangeService
	HealthChecker   *health.Checker
	CallbackToken   string
}

// New creates a new dependency injection container. Secrets are resolved
// through the secrets manager so vault can override the env defaults.
func New(db *gorm.DB, cfg *config.Config, log *logger.Logger) (*Container, error) {
	ctx := context.Background()

	jwtSecret := secrets.GetSecretWithDefault(ctx, "JWT_SECRET", cfg.JWT.Secret)
	refreshSecret := secrets.GetSecretWithDefault(ctx, "JWT_REFRESH_SECRET", cfg.JWT.RefreshSecret)
	callbackToken := secrets.GetSecretWithDefault(ctx, "RELAY_CALLBACK_TOKEN", cfg.Relay.CallbackToken)
	webhookURL := secrets.GetSecretWithDefault(ctx, "RELAY_WEBHOOK_URL", cfg.Relay.WebhookURL)

	jwtService := jwt.NewService(jwtSecret, refreshSecret, cfg.JWT.Expiry, cfg.JWT.RefreshExpiry)

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisURL})
	}

	metrics, err := observability.NewExchangeMetrics()
	if err != nil {
		log.LogError(err, "Failed to register exchange metrics, continuing without them")
		metrics = nil
	}

	tracker := pending.NewTracker(cfg.Pending.StaleAfter)
	relayClient := relay.NewClient(webhookURL, cfg.Relay.Timeout)

	userService := service.NewUserService(db, jwtService)
	messageService := service.NewMessageService(
		db,
		redisClient,
		cfg.Cache.TTL,
		cfg.History.DefaultLimit,
		cfg.History.MaxLimit,
		log,
	)
	exchangeService := service.NewExchangeService(
		tracker,
		messageService,
		relayClient,
		metrics,
		cfg.Relay.BotAuthor,
		cfg.Relay.Timeout,
		log,
	)

	checker := health.NewChecker(log, 30*time.Second)
	checker.RegisterDatabaseCheck(func() error {
		return config.TestConnection(db)
	})
	if redisClient != nil {
		checker.RegisterRedisCheck(redisClient)
	}

	return &Container{
		DB:              db,
		Config:          cfg,
		Logger:          log,
		JWTService:      jwtService,
		Tracker:         tracker,
		RelayClient:     relayClient,
		Redis:           redisClient,
		Metrics:         metrics,
		UserService:     userService,
		MessageService:  messageService,
		ExchangeService: exchangeService,
		HealthChecker:   checker,
		CallbackToken:   callbackToken,
	}, nil
}
