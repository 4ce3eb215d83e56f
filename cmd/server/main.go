package main

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"clubbot/internal/activity"
	"clubbot/internal/crypto"
	"clubbot/internal/db"
	"clubbot/internal/enforcement"
	"clubbot/internal/handlers"
	mw "clubbot/internal/middleware"
	"clubbot/internal/report"
	"clubbot/internal/ritual"
	"clubbot/internal/scheduler"
	"clubbot/internal/store"
	"clubbot/internal/telegram"
)

func mustGetenv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Error("invalid integer env var", slog.String("key", key), slog.String("value", v))
		os.Exit(1)
	}
	return n
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	zapLogger, err := zap.NewProduction()
	if err != nil {
		slog.Error("failed to build logger", slog.Any("err", err))
		os.Exit(1)
	}
	defer zapLogger.Sync()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		slog.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	port := mustGetenv("PORT", "8080")
	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	channelID := os.Getenv("CHANNEL_ID")
	groupID := int64(getenvInt("GROUP_ID", 0))
	refOffset := getenvInt("REFERENCE_TZ_OFFSET", 3)
	graceMinutes := getenvInt("GRACE_MINUTES", 30)

	var crypt *crypto.Service
	if raw := os.Getenv("ENCRYPTION_KEY"); raw != "" {
		key, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			slog.Error("ENCRYPTION_KEY must be base64", slog.Any("err", err))
			os.Exit(1)
		}
		crypt, err = crypto.NewService(key)
		if err != nil {
			slog.Error("bad encryption key", slog.Any("err", err))
			os.Exit(1)
		}
	} else {
		slog.Warn("ENCRYPTION_KEY not set; report text is stored in plaintext")
	}

	dbConn, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	dbConn.SetMaxOpenConns(10)
	dbConn.SetConnMaxLifetime(2 * time.Hour)
	if err = dbConn.Ping(); err != nil {
		slog.Error("failed to ping db", slog.Any("err", err))
		os.Exit(1)
	}
	if err := db.RunMigrations(dbConn); err != nil {
		slog.Error("failed migrations", slog.Any("err", err))
		os.Exit(1)
	}

	st := store.New(dbConn)
	if err := ritual.SeedCatalog(context.Background(), st, zapLogger); err != nil {
		slog.Error("failed to seed rituals", slog.Any("err", err))
		os.Exit(1)
	}

	botCtx, stopBot := context.WithCancel(context.Background())
	defer stopBot()

	var enforcer *enforcement.Engine
	var sched *scheduler.Scheduler
	if botToken != "" {
		tg, err := telegram.NewClient(botToken, channelID, zapLogger)
		if err != nil {
			slog.Error("failed to connect bot", slog.Any("err", err))
			os.Exit(1)
		}

		dispatcher := ritual.NewEngine(st, tg, zapLogger)
		recorder := ritual.NewRecorder(st, crypt, zapLogger)
		reports := report.NewService(st, tg, crypt, zapLogger, refOffset)
		enforcer = enforcement.NewEngine(st, tg, zapLogger, groupID, time.Duration(graceMinutes)*time.Minute)
		aggregator := activity.NewAggregator(st, tg, zapLogger, groupID, refOffset)

		sched, err = scheduler.New(zapLogger, refOffset, dispatcher, reports, enforcer, aggregator)
		if err != nil {
			slog.Error("failed to build scheduler", slog.Any("err", err))
			os.Exit(1)
		}
		sched.Start()

		updater := telegram.NewUpdater(tg, st, recorder, reports, zapLogger, groupID, refOffset)
		go updater.Run(botCtx)
	} else {
		slog.Warn("TELEGRAM_BOT_TOKEN not set; running admin API only")
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(mw.StructuredLogger(zapLogger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authHandler := handlers.NewAuthHandler(dbConn, []byte(jwtSecret))
	ritualHandler := handlers.NewRitualHandler(st)
	statsHandler := handlers.NewStatsHandler(st, enforcer)
	authMW := mw.NewAuthMiddleware([]byte(jwtSecret))

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/signup", authHandler.Signup)
		api.Post("/auth/login", authHandler.Login)
		api.Group(func(pr chi.Router) {
			pr.Use(authMW.RequireAuth)
			pr.Get("/rituals", ritualHandler.List)
			pr.Post("/rituals", ritualHandler.Create)
			pr.Get("/rituals/stats", ritualHandler.Stats)
			pr.Patch("/rituals/{id}/active", ritualHandler.SetActive)
			pr.Get("/activity", statsHandler.Activity)
			pr.Get("/activity/top", statsHandler.TopUsers)
			pr.Get("/members/health", statsHandler.MembersHealth)
			pr.Post("/members/{id}/restore", statsHandler.RestoreMember)
			pr.Get("/reports/weekly", statsHandler.WeeklyReports)
		})
	})

	srv := &http.Server{Addr: ":" + port, Handler: r}
	go func() {
		slog.Info("server starting", slog.String("addr", ":"+port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.Any("err", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutdown initiated")
	if sched != nil {
		sched.Stop()
	}
	stopBot()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	slog.Info("server stopped")
}
