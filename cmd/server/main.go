package main

import (
	"context"
	"errors"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/farm2markets/xprestrack/config"
	"github.com/farm2markets/xprestrack/internal/airtable"
	"github.com/farm2markets/xprestrack/internal/attachment"
	"github.com/farm2markets/xprestrack/internal/auth"
	"github.com/farm2markets/xprestrack/internal/broker"
	"github.com/farm2markets/xprestrack/internal/cache"
	"github.com/farm2markets/xprestrack/internal/database"
	"github.com/farm2markets/xprestrack/internal/health"
	"github.com/farm2markets/xprestrack/internal/httpx"
	"github.com/farm2markets/xprestrack/internal/inventory"
	"github.com/farm2markets/xprestrack/internal/lock"
	"github.com/farm2markets/xprestrack/internal/logger"
	"github.com/farm2markets/xprestrack/internal/model"
	"github.com/farm2markets/xprestrack/internal/notification"
	"github.com/farm2markets/xprestrack/internal/product"
	"github.com/farm2markets/xprestrack/internal/quickbooks"
	"github.com/farm2markets/xprestrack/internal/user"
	"github.com/farm2markets/xprestrack/internal/weightlabel"

	invH "github.com/farm2markets/xprestrack/internal/inventory/handler"
	invListenerPkg "github.com/farm2markets/xprestrack/internal/inventory/listener"
	invRepoPkg "github.com/farm2markets/xprestrack/internal/inventory/repository"
	invUCPkg "github.com/farm2markets/xprestrack/internal/inventory/usecase"

	prodH "github.com/farm2markets/xprestrack/internal/product/handler"
	prodRepoPkg "github.com/farm2markets/xprestrack/internal/product/repository"
	prodUCPkg "github.com/farm2markets/xprestrack/internal/product/usecase"

	userH "github.com/farm2markets/xprestrack/internal/user/handler"
	userRepoPkg "github.com/farm2markets/xprestrack/internal/user/repository"
	userUCPkg "github.com/farm2markets/xprestrack/internal/user/usecase"

	qbH "github.com/farm2markets/xprestrack/internal/quickbooks/handler"
	weightH "github.com/farm2markets/xprestrack/internal/weightlabel/handler"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const healthInterval = 15 * time.Second

// stores groups the repositories of one backend.
type stores struct {
	products  product.Repository
	inventory inventory.Repository
	users     user.Repository
	ping      health.PingFunc
	close     func() error
}

func main() {
	// 1. Load Configuration
	_ = godotenv.Load()
	cfg := config.LoadEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewZapLogger(&logger.ZapLoggerConfig{
		IsDevelopment:     cfg.IsDevelopment(),
		Encoding:          cfg.Logger.Encoding,
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	})
	defer appLogger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Connect to the record store
	st, err := openStores(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Could not open record store", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer st.close()

	// 4. Initialize Redis (optional)
	var (
		locker    lock.Locker = lock.NewLocalLocker()
		listCache cache.Cache = cache.Noop{}
	)
	if cfg.Redis.Addr != "" {
		redisClient, err := lock.NewRedisClient(&lock.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			appLogger.Fatal("Could not connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient, cfg.Redis.LockTTL, appLogger)
		listCache = cache.NewRedisCache(redisClient)
		appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		appLogger.Warn("REDIS_ADDR not set, using in-process lot locks")
	}

	// 5. Initialize Kafka (optional)
	var publisher broker.Publisher = broker.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = broker.NewProducer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.EventsTopic,
		})
		appLogger.Info("Kafka producer ready", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.EventsTopic))
	}
	defer publisher.Close()

	// 6. Initialize collaborators
	uploader, err := attachment.New(attachment.Config{
		CloudName: cfg.Cloudinary.CloudName,
		APIKey:    cfg.Cloudinary.APIKey,
		APISecret: cfg.Cloudinary.APISecret,
		Folder:    cfg.Cloudinary.Folder,
	})
	if err != nil {
		appLogger.Fatal("Could not initialize Cloudinary", zap.Error(err))
	}
	dispatcher := notification.New(notification.TwilioConfig{
		AccountSID:   cfg.Twilio.AccountSID,
		AuthToken:    cfg.Twilio.AuthToken,
		WhatsAppFrom: cfg.Twilio.WhatsAppFrom,
	}, appLogger)
	recognizer := weightlabel.NewRecognizer(weightlabel.Config{
		APIKey:         cfg.Vision.APIKey,
		BaseURL:        cfg.Vision.BaseURL,
		Model:          cfg.Vision.Model,
		TimeoutSeconds: cfg.Vision.TimeoutSeconds,
	})
	if !recognizer.Configured() {
		appLogger.Warn("VISION_API_KEY not set, /read-weight will fail")
	}
	qbClient := quickbooks.NewClient(quickbooks.Config{
		ClientID:     cfg.QuickBooks.ClientID,
		ClientSecret: cfg.QuickBooks.ClientSecret,
		RedirectURL:  cfg.QuickBooks.RedirectURL,
		Environment:  cfg.QuickBooks.Environment,
	}, st.users, appLogger)
	sessions := auth.NewSessions(auth.SessionConfig{
		Secret:     cfg.JWT.SecretKey,
		CookieName: cfg.JWT.CookieName,
		TTL:        cfg.JWT.TTL,
		Secure:     cfg.JWT.SecureCookie,
	})

	// 7. Initialize UseCases
	prodUC := prodUCPkg.NewProductUseCase(st.products, listCache, locker, appLogger)
	userUC := userUCPkg.NewUserUseCase(st.users, appLogger)
	invUC := invUCPkg.NewInventoryUseCase(st.inventory, invUCPkg.Options{
		Products:          prodUC,
		Uploader:          uploader,
		Dispatcher:        dispatcher,
		Recipients:        st.users,
		Locker:            locker,
		Publisher:         publisher,
		LowStockThreshold: cfg.Inventory.LowStockThreshold,
	}, appLogger)

	// 8. Initialize Listener
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.OutboundTopic != "" {
		consumer := broker.NewConsumer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.OutboundTopic,
			GroupID: cfg.Kafka.GroupID,
		})
		defer consumer.Close()
		go invListenerPkg.NewInventoryListener(consumer, invUC, appLogger).Start(ctx)
		appLogger.Info("Listening for outbound requests", zap.String("topic", cfg.Kafka.OutboundTopic))
	}

	// 9. Initialize Handlers
	checker := health.NewChecker(st.ping, appLogger)
	userHandler := userH.NewUserHandler(userUC, sessions, appLogger)
	prodHandler := prodH.NewProductHandler(prodUC, appLogger)
	invHandler := invH.NewInventoryHandler(invUC, prodUC, appLogger)
	weightHandler := weightH.NewWeightLabelHandler(recognizer, appLogger)
	qbHandler := qbH.NewQuickBooksHandler(qbClient, sessions, cfg.QuickBooks.AppURL, appLogger)

	// 10. Start HTTP Server
	app := fiber.New(fiber.Config{
		AppName:      "xprestrack",
		ErrorHandler: httpx.ErrorHandler,
		BodyLimit:    cfg.Server.BodyLimitMB << 20,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	})
	app.Use(recover.New())
	app.Use(httpx.RequestID())
	app.Use(httpx.AccessLog(appLogger))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowCredentials: cfg.Server.CORSOrigins != "*",
	}))

	checker.RegisterRoutes(app)
	userHandler.RegisterPublicRoutes(app)
	qbHandler.RegisterPublicRoutes(app)

	protected := app.Group("", auth.Middleware(sessions))
	userHandler.RegisterRoutes(protected)
	prodHandler.RegisterRoutes(protected)
	invHandler.RegisterRoutes(protected)
	weightHandler.RegisterRoutes(protected)
	qbHandler.RegisterRoutes(protected, auth.RequireRole(model.RoleAdmin, model.RoleMarketer))

	go func() {
		appLogger.Info("Starting HTTP server", zap.String("port", cfg.Server.HTTPPort))
		if err := app.Listen(listenAddr(cfg.Server.HTTPPort)); err != nil {
			appLogger.Fatal("failed to serve http", zap.Error(err))
		}
	}()

	// 11. Start gRPC ops server
	lis, err := net.Listen("tcp", listenAddr(cfg.Server.GRPCPort))
	if err != nil {
		appLogger.Fatal("failed to listen", zap.Error(err))
	}
	grpcServer := grpc.NewServer()
	checker.RegisterGRPC(grpcServer)
	go checker.Watch(ctx, healthInterval)

	appLogger.Info("Starting gRPC server", zap.String("port", cfg.Server.GRPCPort))
	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			appLogger.Fatal("failed to serve grpc", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("http shutdown", zap.Error(err))
	}
	drainCtx, drainCancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := invUC.Wait(drainCtx); err != nil {
		appLogger.Warn("background work still running at shutdown", zap.Error(err))
	}
	drainCancel()
	grpcServer.GracefulStop()
	appLogger.Info("Server stopped")
}

func openStores(ctx context.Context, cfg *config.Config, log logger.ZapLogger) (*stores, error) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		db, err := database.NewPostgres(&database.Config{
			Host:            cfg.Postgres.Host,
			Port:            cfg.Postgres.Port,
			User:            cfg.Postgres.User,
			Password:        cfg.Postgres.Password,
			DBName:          cfg.Postgres.DBName,
			SSLMode:         cfg.Postgres.SSLMode,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		log.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))
		return &stores{
			products:  prodRepoPkg.NewPGRepository(db),
			inventory: invRepoPkg.NewPGRepository(db),
			users:     userRepoPkg.NewPGRepository(db),
			ping:      db.PingContext,
			close:     db.Close,
		}, nil

	default:
		store, err := airtable.NewStore(airtable.Config{
			APIKey:  cfg.Airtable.APIKey,
			BaseID:  cfg.Airtable.BaseID,
			BaseURL: cfg.Airtable.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		log.Info("Using Airtable base", zap.String("base_id", cfg.Airtable.BaseID))
		lots := store.Table(cfg.Airtable.LotsTable)
		sales := store.Table(cfg.Airtable.SalesTable)
		return &stores{
			products:  prodRepoPkg.NewAirtableRepository(store.Table(cfg.Airtable.ProductsTable)),
			inventory: invRepoPkg.NewAirtableRepository(lots, sales, log),
			users:     userRepoPkg.NewAirtableRepository(store.Table(cfg.Airtable.UsersTable)),
			ping:      func(ctx context.Context) error { return store.Ping(ctx, cfg.Airtable.LotsTable) },
			close:     func() error { return nil },
		}, nil
	}
}

func listenAddr(port string) string {
	if !strings.HasPrefix(port, ":") && !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}
