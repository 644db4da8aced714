package main

import (
	"context"
	"log"
	"net/http"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"carbon-market/mrv-backend/internal/assessment"
	"carbon-market/mrv-backend/internal/auth"
	"carbon-market/mrv-backend/internal/config"
	"carbon-market/mrv-backend/internal/export"
	"carbon-market/mrv-backend/internal/issuance"
	"carbon-market/mrv-backend/internal/metrics"
	"carbon-market/mrv-backend/internal/monitoring"
	"carbon-market/mrv-backend/internal/monitoring/alerts"
	"carbon-market/mrv-backend/internal/monitoring/analytics"
	"carbon-market/mrv-backend/internal/notifications"
	wsnotify "carbon-market/mrv-backend/internal/notifications/websocket"
	"carbon-market/mrv-backend/internal/settings"
	"carbon-market/mrv-backend/internal/verification"
	"carbon-market/mrv-backend/pkg/security"
	"carbon-market/mrv-backend/pkg/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger, err := newLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	dsn := cfg.Database.GetDatabaseURL()

	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := gormDB.AutoMigrate(&monitoring.MetricRecord{}, &settings.Preferences{}); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	sqlxDB, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer sqlxDB.Close()

	// ---------------- MONITORING ----------------
	recordRepo := monitoring.NewRepository(gormDB)
	recordService := monitoring.NewService(recordRepo, logger)
	recordHandler := monitoring.NewHandler(recordService, logger)
	summaryHandler := analytics.NewHandler(analytics.NewCalculator(recordRepo), logger)
	advisoryHandler := alerts.NewHandler(alerts.NewEngine(recordRepo), logger)

	// ---------------- SETTINGS ----------------
	settingsService := settings.NewService(settings.NewRepository(gormDB), logger)
	settingsHandler := settings.NewHandler(settingsService, logger)

	// ---------------- ISSUANCE ----------------
	var publisher issuance.Publisher
	if cfg.Issuance.TopicARN != "" {
		publisher, err = issuance.NewSNSPublisher(context.Background(),
			cfg.Issuance.Region, cfg.Issuance.TopicARN, logger)
		if err != nil {
			logger.Fatal("Failed to create issuance publisher", zap.Error(err))
		}
	} else {
		logger.Warn("No issuance topic configured, using log publisher")
		publisher = &issuance.LogPublisher{Logger: logger}
	}

	// ---------------- ARCHIVE ----------------
	var store storage.ObjectStore
	if cfg.Archive.Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.Archive.Region))
		if err != nil {
			logger.Fatal("Failed to load AWS config", zap.Error(err))
		}
		store = storage.NewS3Store(s3.NewFromConfig(awsCfg), cfg.Archive.Bucket)
	} else {
		logger.Warn("No archive bucket configured, statements stay in memory")
		store = storage.NewMemoryStore()
	}

	// ---------------- NOTIFICATIONS + VERIFICATION ----------------
	wsManager := wsnotify.NewManager(settingsService, logger)

	reviewRepo := verification.NewRepository(sqlxDB)

	notifier := notifications.MultiNotifier{
		&notifications.LogNotifier{Logger: logger},
		wsManager,
		export.NewArchiver(reviewRepo, store, logger),
	}
	reviewService := verification.NewService(reviewRepo, recordService,
		assessment.NewRegistry(), publisher, notifier, logger)
	reviewHandler := verification.NewHandler(reviewService, settingsService, logger)
	exportHandler := export.NewHandler(reviewService, store, logger)

	r := gin.Default()

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "API alive!"})
	})
	r.GET("/metrics", metrics.Handler())

	r.GET("/ws/notifications", func(c *gin.Context) {
		verifierID, err := security.ParseVerifier(c.Query("token"), cfg.Security.JWTSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if err := wsManager.HandleConnection(c.Writer, c.Request, verifierID); err != nil {
			logger.Warn("WebSocket upgrade failed", zap.Error(err))
		}
	})

	v1 := r.Group("/api/v1")
	v1.Use(auth.Middleware(cfg.Security.JWTSecret))
	recordHandler.RegisterRoutes(v1)
	summaryHandler.RegisterRoutes(v1)
	advisoryHandler.RegisterRoutes(v1)
	settingsHandler.RegisterRoutes(v1)
	reviewHandler.RegisterRoutes(v1)
	exportHandler.RegisterRoutes(v1)

	addr := cfg.Server.GetServerAddr()
	logger.Info("Server starting", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		logger.Fatal("Server exited", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if level != "" {
		parsed, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, err
		}
		zapCfg.Level = parsed
	}
	return zapCfg.Build()
}
