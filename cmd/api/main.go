package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/rajivgeraev/swapeco-api/internal/cache"
	"github.com/rajivgeraev/swapeco-api/internal/config"
	"github.com/rajivgeraev/swapeco-api/internal/db"
	"github.com/rajivgeraev/swapeco-api/internal/limiter"
	"github.com/rajivgeraev/swapeco-api/internal/middleware"
	"github.com/rajivgeraev/swapeco-api/internal/notify"
	"github.com/rajivgeraev/swapeco-api/internal/services/auth"
	"github.com/rajivgeraev/swapeco-api/internal/services/chat"
	"github.com/rajivgeraev/swapeco-api/internal/services/cloudinary"
	"github.com/rajivgeraev/swapeco-api/internal/services/exchange"
	"github.com/rajivgeraev/swapeco-api/internal/services/favorite"
	"github.com/rajivgeraev/swapeco-api/internal/services/item"
	"github.com/rajivgeraev/swapeco-api/internal/telemetry"
	"github.com/rajivgeraev/swapeco-api/internal/utils"
	"github.com/rajivgeraev/swapeco-api/internal/websocket"
)

func main() {
	// Загружаем конфигурацию
	cfg := config.LoadConfig()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "swapeco-api", cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("❌ Ошибка настройки трассировки", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Error("can't shutdown tracing", slog.Any("error", err))
		}
	}()

	// Инициализируем базу данных
	pool, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("❌ Ошибка при инициализации базы данных", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		slog.Error("❌ Ошибка миграции", slog.Any("error", err))
		os.Exit(1)
	}

	rdb, closeRedis := cache.NewRedis(cfg.RedisConfig.Addr, cfg.RedisConfig.User, cfg.RedisConfig.Password)
	defer func() {
		if err := closeRedis(); err != nil {
			slog.Error("can't close redis", slog.Any("error", err))
		}
	}()

	jwtService := utils.NewJWTService(cfg.JWTSecret)

	users := &db.UserDatabase{Pool: pool}
	items := &db.ItemDatabase{Pool: pool}
	exchanges := db.NewExchangeDatabase(pool)
	publisher := &notify.Publisher{Pool: pool}

	// Обмены: базовая реализация, обёрнутая кэшем, лимитом и логированием
	var exchangeSvc exchange.Service = exchange.NewGeneric(exchanges, items, users, publisher)
	if cfg.Limits.CachePendingCounts {
		exchangeSvc = &exchange.ExchangeCaching{
			Service: exchangeSvc,
			Cache:   &cache.PendingCounts{Redis: rdb, TTL: cfg.Limits.PendingCountTTL},
		}
	}
	exchangeSvc = &exchange.ExchangeLimiting{
		Service:  exchangeSvc,
		Limiter:  &limiter.Limiter{Redis: rdb, Limit: cfg.Limits.ProposalsPerHour},
		FailOpen: cfg.Limits.LimiterFailOpen,
	}
	exchangeSvc = &exchange.ExchangeLogging{Service: exchangeSvc}

	cloudinaryService, err := cloudinary.NewCloudinaryService(cfg.CloudinaryConfig, jwtService)
	if err != nil {
		slog.Error("❌ Ошибка инициализации Cloudinary", slog.Any("error", err))
		os.Exit(1)
	}

	authService := auth.NewAuthService(users, cfg.TelegramBotToken, jwtService)
	itemService := item.NewItemService(items, users, cloudinaryService, jwtService)
	favoriteService := favorite.NewFavoriteService(&db.FavoriteDatabase{Pool: pool}, items, jwtService)
	chatService := chat.NewChatService(&db.MessageDatabase{Pool: pool}, exchanges, users, publisher, jwtService)

	// WebSocket и доставка событий от всех экземпляров API
	manager := websocket.NewManager()
	manager.OnClientEvent = chatService.HandleClientEvent
	defer manager.Shutdown()

	listener := &notify.Listener{DSN: cfg.DatabaseURL, Handler: manager.Deliver}
	go func() {
		if err := listener.Run(ctx); err != nil {
			slog.Error("notification listener stopped", slog.Any("error", err))
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/ws", manager.Handler(jwtService))
	wsServer := &http.Server{
		Addr:              cfg.WSAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("✅ WebSocket сервер запущен", slog.String("addr", cfg.WSAddr))
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("websocket server failed", slog.Any("error", err))
			stop()
		}
	}()

	// Создаём экземпляр Fiber
	app := fiber.New(fiber.Config{
		AppName:      "SwapEco API",
		ErrorHandler: middleware.ErrorHandler,
	})

	// Добавляем middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowCredentials: false,
	}))

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Регистрируем маршруты. Чат регистрируется раньше обменов: его группа
	// вложена в /api/exchanges.
	authService.SetupRoutes(app)
	cloudinaryService.SetupRoutes(app)
	itemService.SetupRoutes(app)
	favoriteService.SetupRoutes(app)
	chatService.SetupRoutes(app)
	exchange.NewHandler(exchangeSvc, jwtService).SetupRoutes(app)

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := wsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("can't shutdown websocket server", slog.Any("error", err))
		}
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			slog.Error("can't shutdown http server", slog.Any("error", err))
		}
	}()

	// Запускаем сервер
	slog.Info("✅ SwapEco API запущен", slog.String("port", cfg.Port))
	if err := app.Listen(":"+cfg.Port, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
		slog.Error("server stopped", slog.Any("error", err))
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
