package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"medmatch/internal/account"
	"medmatch/internal/agent"
	"medmatch/internal/config"
	"medmatch/internal/diagnosis"
	"medmatch/internal/doctor"
	"medmatch/internal/platform/logging"
	"medmatch/internal/platform/metrics"
	"medmatch/internal/platform/postgres"
	"medmatch/internal/platform/telegram"
	"medmatch/internal/query"
	"medmatch/internal/report"
	"medmatch/internal/session"
	"medmatch/internal/specialty"
)

func serveCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run migrations and start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// 1. Infrastructure
	db, err := postgres.Open(ctx, cfg.Database.URL, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.Migrate(cfg.Database.Migrations, cfg.Database.URL, false, log); err != nil {
		return err
	}

	specialties := loadSpecialties(cfg.Specialty.Synonyms, log)

	sessions, closeSessions, err := newSessionStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSessions()

	// 2. Clients
	ai, err := newCompleter(cfg.AI)
	if err != nil {
		return err
	}
	stt := agent.NewWhisperClient(cfg.STT.URL)
	tts := agent.NewElevenLabsClient(cfg.TTS.URL, cfg.TTS.APIKey, cfg.TTS.Voice)

	tgClient := telegram.NewClient(cfg.Telegram.Token)
	if !tgClient.Enabled() || cfg.Telegram.DoctorChatID == 0 {
		log.Warn("telegram doctor chat not configured, report sharing disabled")
	}

	// 3. Services
	doctors := doctor.NewRepository(db)
	queries := query.NewRepository(db)
	accounts := account.NewService(account.NewRepository(db), cfg.Quota.MonthlyUploads, cfg.Quota.Period, log)

	engine := diagnosis.NewEngine(ai, specialties, doctor.NewMatcher(doctors, specialties), queries, log)
	diagnosisHandler := diagnosis.NewHandler(diagnosis.Deps{
		Engine:         engine,
		Archive:        diagnosis.NewArchive(queries, doctors),
		Quota:          accounts,
		Sessions:       sessions,
		STT:            stt,
		TTS:            tts,
		Reports:        report.NewService(tgClient, cfg.Telegram.DoctorChatID, cfg.Report.FontPaths, log),
		UploadDir:      cfg.Upload.Dir,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		Log:            log,
	})
	doctorHandler := doctor.NewHandler(doctors, specialties, log)
	accountHandler := account.NewHandler(accounts, log)

	// 4. Router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logging.Middleware(log))
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Handle("/metrics", metrics.Handler())
	r.Route("/api", func(r chi.Router) {
		account.RegisterRoutes(r, accountHandler)
		r.Group(func(r chi.Router) {
			r.Use(account.Middleware(accounts, log))
			doctor.RegisterRoutes(r, doctorHandler)
			diagnosis.RegisterRoutes(r, diagnosisHandler)
		})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("port", cfg.HTTP.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	// In-flight AI calls may take up to the completion timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AI.Timeout+5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// loadSpecialties never fails: a missing table degrades matching to the
// fallback label and is reported.
func loadSpecialties(path string, log *zap.Logger) *specialty.Normalizer {
	n, err := specialty.Load(path)
	if err != nil {
		log.Warn("specialty synonyms unavailable, every specialty will match Others",
			zap.String("path", path), zap.Error(err))
	} else {
		log.Info("specialty synonyms loaded", zap.Int("labels", len(n.Canonical())), zap.Int("entries", n.Len()))
	}
	metrics.SetSynonymEntries(n.Len())
	return n
}

func newCompleter(cfg config.AIConfig) (agent.Completer, error) {
	ac := agent.Config{
		Host:        cfg.Host,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Timeout:     cfg.Timeout,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
	switch cfg.Backend {
	case "langchain":
		return agent.NewLangChainClient(ac)
	case "http", "":
		return agent.NewChatClient(ac), nil
	default:
		return nil, fmt.Errorf("unknown ai backend %q", cfg.Backend)
	}
}

func newSessionStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (session.Store, func(), error) {
	if cfg.Session.Backend == "memory" {
		log.Info("using in-memory sessions")
		return session.NewMemoryStore(cfg.Session.TTL), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
	}
	log.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
	return session.NewRedisStore(client, "medmatch:session", cfg.Session.TTL), func() { client.Close() }, nil
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, "+account.HeaderUserID)
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
