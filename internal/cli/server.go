package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"proctor-quiz-service/internal/app"
	"proctor-quiz-service/internal/config"
	"proctor-quiz-service/internal/domain"
	"proctor-quiz-service/internal/infra/memory"
	pgstore "proctor-quiz-service/internal/infra/postgres"
	redisstore "proctor-quiz-service/internal/infra/redis"
	"proctor-quiz-service/internal/proctor"
	transport "proctor-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	flagTTL := config.Duration(cfg.Redis.TTL, 24*time.Hour)
	cacheTTL := config.Duration(cfg.Quiz.CacheTTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var (
		bank     app.QuestionBank
		attempts app.AttemptStore
		profiles app.ProfileStore
	)
	if pool != nil {
		bank = pgstore.NewQuestionBank(pool)
		attempts = pgstore.NewAttemptStore(pool)
		profiles = pgstore.NewProfileStore(pool)
	} else {
		bank = memory.NewStaticQuestionBank(sampleQuestions())
		attempts = memory.NewAttemptStore()
		profiles = memory.NewProfileStore(sampleProfiles()...)
	}
	if redisClient != nil {
		bank = redisstore.NewQuestionCache(redisClient, bank, cacheTTL)
		profiles = redisstore.NewAttemptFlagCache(redisClient, profiles, flagTTL)
	}

	sessionCfg := app.SessionConfig{
		Duration: config.Duration(cfg.Quiz.Duration, 40*time.Minute),
		Grace:    config.Duration(cfg.Quiz.Grace, proctor.DefaultGracePeriod),
		Quotas:   cfg.Quiz.Quotas,
		Window: app.Window{
			Start: config.Instant(cfg.Quiz.Window.Start),
			End:   config.Instant(cfg.Quiz.Window.End),
		},
	}
	if len(sessionCfg.Quotas) == 0 {
		sessionCfg.Quotas = map[string]int{"general": 40}
	}

	wsHandler := transport.NewWSHandler(func(userID string, env *proctor.SignalBus) *app.Controller {
		return app.NewController(userID, sessionCfg, env, bank, attempts, profiles)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestions seeds the in-memory bank for local runs without Postgres.
func sampleQuestions() map[string][]domain.Question {
	return map[string][]domain.Question{
		"general": {
			{
				ID:           "q1",
				Prompt:       "What is 2 + 2?",
				OptionA:      "3",
				OptionB:      "4",
				OptionC:      "5",
				OptionD:      "22",
				CorrectLabel: domain.LabelB,
				Category:     "general",
			},
			{
				ID:           "q2",
				Prompt:       "Derivative of x^2?",
				OptionA:      "2x",
				OptionB:      "x",
				OptionC:      "x^2",
				OptionD:      "2",
				CorrectLabel: domain.LabelA,
				Category:     "general",
			},
		},
	}
}

func sampleProfiles() []memory.Profile {
	return []memory.Profile{
		{UserID: "demo", PaymentVerified: true},
	}
}
