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

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"library/internal/app/borrowings"
	"library/internal/app/catalog"
	"library/internal/app/overdue"
	"library/internal/app/payments"
	"library/internal/app/reaper"
	"library/internal/config"
	"library/internal/domain"
	http_handler "library/internal/handler/http"
	"library/internal/handler/http/middleware"
	kafka_handler "library/internal/handler/kafka"
	"library/internal/infrastructure/database"
	kafka_infra "library/internal/infrastructure/kafka"
	stripe_infra "library/internal/infrastructure/stripe"
	"library/internal/notify"
	"library/internal/outbox"
	"library/internal/repository/books_repo"
	"library/internal/repository/borrowings_repo"
	"library/internal/repository/outbox_repo"
	"library/internal/repository/payments_repo"
	"library/internal/scheduler"
	"library/migrations"
)

func ensureKafkaTopics(ctx context.Context, brokerURLs []string, topics []string, logger *zap.Logger) error {
	conn, err := kafka.DialContext(ctx, "tcp", brokerURLs[0])
	if err != nil {
		return fmt.Errorf("failed to dial kafka broker for admin operations: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to get kafka controller: %w", err)
	}
	controllerConn, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("failed to dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	topicConfigs := make([]kafka.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}

	if err := controllerConn.CreateTopics(topicConfigs...); err != nil {
		if errors.Is(err, kafka.TopicAlreadyExists) {
			logger.Info("Kafka topics already exist, skipping creation")
			return nil
		}
		return fmt.Errorf("failed to create kafka topics: %w", err)
	}
	logger.Info("Kafka topics ensured", zap.Strings("topics", topics))
	return nil
}

func connectDB(cfg database.DBConfig, logger *zap.Logger) (*sqlx.DB, error) {
	const maxRetries = 10
	const retryDelay = 5 * time.Second

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		db, err := database.NewPostgresDB(cfg)
		if err == nil {
			return db, nil
		}
		lastErr = err
		logger.Warn("Failed to connect to database, retrying",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Duration("delay", retryDelay),
			zap.Error(err),
		)
		time.Sleep(retryDelay)
	}
	return nil, lastErr
}

func runMigrations(db *sqlx.DB, dbName string) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{DatabaseName: dbName})
	if err != nil {
		return fmt.Errorf("failed to create migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, dbName, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	appLogger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()
	appLogger.Info("Library Service starting...", zap.String("timezone", cfg.Location.String()))

	db, err := connectDB(cfg.DB, appLogger)
	if err != nil {
		appLogger.Fatal("Could not connect to database after multiple retries", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		} else {
			appLogger.Info("Database connection closed.")
		}
	}()
	appLogger.Info("Connected to PostgreSQL")

	if err := runMigrations(db, cfg.DB.DBName); err != nil {
		appLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}
	appLogger.Info("Database migrations completed (or no new migrations)")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = ensureKafkaTopics(ctx, cfg.KafkaBrokers, []string{
		cfg.KafkaNotificationsTopic,
		cfg.KafkaCheckoutEventsTopic,
	}, appLogger)
	cancel()
	if err != nil {
		appLogger.Fatal("Failed to ensure Kafka topics", zap.Error(err))
	}

	txManager := database.NewTxManager(db, appLogger.With(zap.String("component", "tx_manager")))
	bookRepository := books_repo.NewBookRepository(db)
	borrowingRepository := borrowings_repo.NewBorrowingRepository(db)
	paymentRepository := payments_repo.NewPaymentRepository(db)
	outboxRepository := outbox_repo.NewOutboxRepository()

	notifier := notify.NewOutboxNotifier(db, outboxRepository, cfg.KafkaNotificationsTopic, appLogger)
	clock := domain.Clock(cfg.Now)

	provider := stripe_infra.NewProvider(stripe_infra.Config{
		SecretKey: cfg.StripeSecretKey,
		Timeout:   cfg.StripeTimeout,
	}, appLogger)

	paymentService := payments.NewPaymentService(
		payments.Config{
			SuccessURL: cfg.StripeSuccessURL,
			CancelURL:  cfg.StripeCancelURL,
			Currency:   cfg.StripeCurrency,
		},
		txManager,
		paymentRepository,
		borrowingRepository,
		provider,
		notifier,
		appLogger,
	)
	borrowingService := borrowings.NewBorrowingService(
		txManager,
		bookRepository,
		borrowingRepository,
		paymentRepository,
		paymentService,
		notifier,
		clock,
		appLogger,
	)
	catalogService := catalog.NewCatalogService(txManager, bookRepository, appLogger)
	appLogger.Info("Services initialized.")

	overdueMonitor := overdue.NewMonitor(borrowingRepository, notifier, clock, appLogger)
	sessionReaper := reaper.NewReaper(txManager, paymentRepository, borrowingRepository, provider, notifier, appLogger)

	kafkaProducer := kafka_infra.NewProducer(cfg.KafkaBrokers, appLogger.With(zap.String("component", "kafka_producer")))
	defer func() {
		if err := kafkaProducer.Close(); err != nil {
			appLogger.Error("Error closing Kafka producer", zap.Error(err))
		} else {
			appLogger.Info("Kafka producer closed.")
		}
	}()

	outboxProcessor := outbox.NewProcessor(
		txManager,
		outboxRepository,
		kafkaProducer,
		cfg.OutboxBatchSize,
		cfg.OutboxPollTimeout,
		appLogger,
	)

	jobs := scheduler.New(appLogger)
	jobs.Every("outbox", cfg.OutboxPollInterval, outboxProcessor.ProcessPending)
	jobs.Every("overdue_borrowings", cfg.OverdueCheckInterval, func(ctx context.Context) error {
		_, err := overdueMonitor.Sweep(ctx)
		return err
	})
	jobs.Every("checkout_sessions", cfg.SessionCheckInterval, func(ctx context.Context) error {
		_, err := sessionReaper.Sweep(ctx)
		return err
	})

	checkoutEventsConsumer := kafka_infra.NewConsumer(
		cfg.KafkaBrokers,
		cfg.KafkaCheckoutEventsTopic,
		cfg.KafkaConsumerGroup,
		kafka_handler.CheckoutEventMessageHandler(paymentService, appLogger.With(zap.String("component", "checkout_event_handler"))),
		appLogger.With(zap.String("component", "checkout_events_consumer")),
	)

	router := http_handler.NewRouter(
		http_handler.Services{
			Catalog:    catalogService,
			Borrowings: borrowingService,
			Payments:   paymentService,
		},
		middleware.NewAuthenticator(cfg.JWTSecret, appLogger),
		cfg.CORSOrigins,
		appLogger.With(zap.String("component", "http")),
	)
	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctxMain, cancelMain := context.WithCancel(context.Background())
	defer cancelMain()

	go func() {
		appLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	jobs.Start(ctxMain)

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		appLogger.Info("Starting checkout events consumer...")
		if err := checkoutEventsConsumer.Consume(ctxMain); err != nil {
			appLogger.Error("Checkout events consumer failed", zap.Error(err))
		}
		appLogger.Info("Checkout events consumer stopped.")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	appLogger.Info("Shutting down application...")

	cancelMain()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		appLogger.Info("HTTP server gracefully shut down.")
	}

	if err := checkoutEventsConsumer.Close(); err != nil {
		appLogger.Error("Error closing checkout events consumer", zap.Error(err))
	}
	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		appLogger.Warn("Checkout events consumer did not stop in time")
	}

	jobs.Wait()
	appLogger.Info("Application gracefully shut down.")
}
