package main

import (
	"context"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/video-platform/internal/engagement"
	"github.com/example/video-platform/internal/engagement/checker"
	"github.com/example/video-platform/internal/engagement/events"
	"github.com/example/video-platform/internal/engagement/handlers"
	"github.com/example/video-platform/internal/engagement/store"
	"github.com/example/video-platform/internal/engagement/worker"
	"github.com/example/video-platform/internal/platform/auth"
	"github.com/example/video-platform/internal/platform/config"
	"github.com/example/video-platform/internal/platform/db"
	"github.com/example/video-platform/internal/platform/httpserver"
	"github.com/example/video-platform/internal/platform/logging"
	"github.com/example/video-platform/internal/platform/natsconn"
	"github.com/example/video-platform/internal/platform/run"
)

// backend is the union of everything the engagement core needs from one
// storage implementation. Both store backends satisfy it.
type backend interface {
	engagement.ReactionStore
	engagement.CommentStore
	engagement.SubjectChecker
	checker.AuditStore
}

func main() {
	cfg := config.Load()
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	st, closeStore := initStore(log)
	if closeStore != nil {
		defer closeStore()
	}

	publisher := initEvents(log)

	engine := &engagement.ReactionEngine{Store: st, Subjects: st, Events: publisher, Log: log}
	comments := &engagement.CommentManager{Store: st, Videos: st, Events: publisher, Log: log}
	auditor := &checker.Checker{Store: st}

	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	verifier := auth.JWTVerifier{Secret: []byte(jwtSecret)}

	r := chi.NewRouter()
	httpserver.SetupRouter(r)

	// Public reads
	r.Get("/v1/videos/{video_id}/reactions", handlers.GetReactions(engine, engagement.KindVideo, "video_id"))
	r.Get("/v1/comments/{comment_id}/reactions", handlers.GetReactions(engine, engagement.KindComment, "comment_id"))
	r.Get("/v1/videos/{video_id}/comments", handlers.ListThread(comments))
	r.Get("/v1/comments/{comment_id}", handlers.GetComment(comments))
	r.Get("/v1/comments/{comment_id}/replies", handlers.ListReplies(comments))

	// Writes require an authenticated user
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Post("/v1/videos/{video_id}/reactions", handlers.ToggleReaction(engine, engagement.KindVideo, "video_id"))
		r.Post("/v1/comments/{comment_id}/reactions", handlers.ToggleReaction(engine, engagement.KindComment, "comment_id"))
		r.Post("/v1/videos/{video_id}/comments", handlers.CreateComment(comments))
		r.Put("/v1/comments/{comment_id}", handlers.UpdateComment(comments))
		r.Delete("/v1/comments/{comment_id}", handlers.DeleteComment(comments))
		r.Post("/v1/comments/{comment_id}/report", handlers.ReportComment(comments))
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go worker.StartAuditor(ctx, auditor, cfg.AuditInterval, log)
		go func() {
			<-ctx.Done()
			_ = srv.Shutdown(context.Background())
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initStore selects the storage backend. In production (APP_ENV=production)
// it requires a working Postgres connection and terminates the process
// otherwise; development falls back to the in-memory store.
func initStore(log *zap.Logger) (backend, func()) {
	isProd := strings.EqualFold(strings.TrimSpace(os.Getenv("APP_ENV")), "production")

	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		if isProd {
			log.Error("DATABASE_URL is required in production")
			_ = log.Sync()
			os.Exit(1)
		}
		log.Warn("DATABASE_URL not set, using in-memory store (development only)")
		return devMemoryStore(log), nil
	}

	pool, err := db.Open(context.Background())
	if err != nil {
		if isProd {
			log.Error("postgres is required in production but unavailable", zap.Error(err))
			_ = log.Sync()
			os.Exit(1)
		}
		log.Warn("postgres unavailable, falling back to in-memory store", zap.Error(err))
		return devMemoryStore(log), nil
	}

	log.Info("engagement store: postgres")
	return store.NewPostgresStore(pool), pool.Close
}

// devMemoryStore seeds the in-memory store with video ids from
// SEED_VIDEO_IDS so reactions and comments have subjects to attach to.
func devMemoryStore(log *zap.Logger) *store.MemoryStore {
	m := store.NewMemoryStore()
	seed := strings.TrimSpace(os.Getenv("SEED_VIDEO_IDS"))
	if seed == "" {
		return m
	}
	n := 0
	for _, id := range strings.Split(seed, ",") {
		if id = strings.TrimSpace(id); id != "" {
			m.AddVideo(id)
			n++
		}
	}
	log.Info("seeded development videos", zap.Int("count", n))
	return m
}

// initEvents connects to NATS for domain event publishing. The publisher
// degrades to a no-op when NATS is unreachable; event delivery is
// best-effort.
func initEvents(log *zap.Logger) *events.Publisher {
	nc, err := natsconn.Connect(natsconn.Options{})
	if err != nil {
		log.Warn("nats unavailable, domain events disabled", zap.Error(err))
		return events.New(nil, log)
	}
	js, err := nc.JetStream()
	if err != nil {
		log.Warn("jetstream unavailable, domain events disabled", zap.Error(err))
		return events.New(nil, log)
	}
	return events.New(js, log)
}
