package app

import (
	"fmt"
	"log"

	"payment-service/config"
	"payment-service/internal/api"
	"payment-service/internal/broker"
	"payment-service/internal/gateway"
	"payment-service/internal/mailer"
	"payment-service/internal/models"
	"payment-service/internal/redisclient"
	"payment-service/internal/service"
	"payment-service/internal/store"
	"payment-service/internal/worker"
)

// App holds the wired services shared by the server and paymentctl
type App struct {
	Config     *config.Config
	Store      *store.Store
	Redis      *redisclient.Client
	Gateway    *gateway.Client
	Producer   *broker.Producer
	Processor  *service.PaymentProcessor
	Reconciler *service.Reconciler
	Events     *service.EventWorker
}

// New connects to Postgres and builds the payment services. Redis is
// attached separately since only the HTTP server needs it.
func New(cfg *config.Config) (*App, error) {
	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	log.Println("Database connected")

	return build(cfg, db), nil
}

func build(cfg *config.Config, db *store.Store) *App {
	a := &App{Config: cfg, Store: db}

	a.Gateway = gateway.NewClient(gateway.Config{
		BaseURL:   cfg.Payment.BaseURL,
		KeyID:     cfg.Payment.KeyID,
		KeySecret: cfg.Payment.KeySecret,
		Timeout:   cfg.Payment.Timeout,
	})
	syslog := service.NewSystemLogger(db)
	bus := service.NewEventBus(db)

	a.Processor = service.NewPaymentProcessor(db, a.Gateway, bus, syslog, cfg.Payment.KeySecret)
	a.Reconciler = service.NewReconciler(db, a.Processor, syslog, service.ReconcileConfig{
		GracePeriod: cfg.Business.ReconcileGracePeriod,
		BatchSize:   cfg.Business.ReconcileBatchSize,
	})

	var relay service.OrderPaidRelay
	if len(cfg.Kafka.Brokers) > 0 {
		a.Producer = broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
		relay = broker.NewEventPublisher(a.Producer)
		log.Println("Kafka producer initialized")
	}

	mail := mailer.NewClient(mailer.Config{
		BaseURL:       cfg.Email.BaseURL,
		APIKey:        cfg.Email.APIKey,
		From:          cfg.Email.From,
		Timeout:       cfg.Email.Timeout,
		RatePerSecond: cfg.Email.RatePerSecond,
	})
	notifier := service.NewOrderPaidNotifier(db, mail, relay, service.NotifierConfig{
		AdminEmail: cfg.Email.AdminAddress,
		SiteURL:    cfg.Server.SiteURL,
		Currency:   cfg.Payment.Currency,
	})

	a.Events = service.NewEventWorker(db, cfg.Business.EventBatchSize)
	a.Events.Register(models.EventTypeOrderPaid, notifier.Handle)

	return a
}

// ConnectRedis attaches the rate limiter and webhook dedupe store
func (a *App) ConnectRedis() error {
	rc, err := redisclient.NewClient(a.Config.Redis.Addr, a.Config.Redis.Password, a.Config.Redis.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.Redis = rc
	log.Println("Redis connected")
	return nil
}

// Handler builds the HTTP API. Without ConnectRedis the rate limit and
// webhook dedupe are disabled.
func (a *App) Handler() *api.Handler {
	cfg := a.Config

	var (
		limiter service.RateLimiter
		dedupe  api.DeliveryDeduper
	)
	checks := map[string]api.Pinger{"database": a.Store}
	if a.Redis != nil {
		limiter = a.Redis
		dedupe = a.Redis
		checks["redis"] = a.Redis
	}

	checkout := service.NewCheckoutService(a.Store, a.Gateway, limiter, service.CheckoutConfig{
		Currency:    cfg.Payment.Currency,
		IntentLimit: cfg.Business.PaymentIntentLimit,
		Window:      cfg.Business.PaymentIntentWindow,
	})

	return api.NewHandler(api.Dependencies{
		Checkout:   checkout,
		Payments:   a.Processor,
		Reconciler: a.Reconciler,
		Events:     a.Events,
		Dedupe:     dedupe,
		Checks:     checks,
	}, api.Config{
		SiteURL:          cfg.Server.SiteURL,
		WebhookSecret:    cfg.Payment.WebhookSecret,
		CronSecret:       cfg.Cron.Secret,
		Development:      cfg.IsDevelopment(),
		WebhookDedupeTTL: cfg.Business.WebhookDedupeTTL,
	})
}

// Scheduler builds the background job runner
func (a *App) Scheduler() *worker.Scheduler {
	return worker.NewScheduler(a.Reconciler, a.Events, worker.Config{
		ReconcileInterval: a.Config.Business.ReconcileInterval,
		EventPollInterval: a.Config.Business.EventPollInterval,
		RunTimeout:        a.Config.Business.ScheduledRunTimeout,
	})
}

// Close releases every connection
func (a *App) Close() {
	if a.Producer != nil {
		if err := a.Producer.Close(); err != nil {
			log.Printf("Error closing Kafka producer: %v", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.Printf("Error closing Redis: %v", err)
		}
	}
	if err := a.Store.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
}
