package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"proctor-quiz-service/internal/app"
	"proctor-quiz-service/internal/domain"
	pgstore "proctor-quiz-service/internal/infra/postgres"
	pgmigrations "proctor-quiz-service/internal/infra/postgres/migrations"
	redisstore "proctor-quiz-service/internal/infra/redis"
	"proctor-quiz-service/internal/proctor"
)

func TestAttemptEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedData(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	bank := redisstore.NewQuestionCache(redisClient, pgstore.NewQuestionBank(pool), 5*time.Minute)
	attempts := pgstore.NewAttemptStore(pool)
	profiles := redisstore.NewAttemptFlagCache(redisClient, pgstore.NewProfileStore(pool), 5*time.Minute)

	cfg := app.SessionConfig{
		Duration: time.Minute,
		Quotas:   map[string]int{"algebra": 2},
	}

	bus := proctor.NewSignalBus()
	session := app.NewController("u1", cfg, bus, bank, attempts, profiles,
		app.WithTickInterval(0))

	if err := session.LoadQuestions(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	session.StartSession(domain.DeviceInfo{UserAgent: "integration"})

	bus.Publish(proctor.Signal{Kind: proctor.SignalCopy})

	for _, q := range session.Questions() {
		session.SelectAnswer(q.ID, q.CorrectLabel)
	}
	record, err := session.Submit(ctx, false)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if record.Score != 2 || record.TotalQuestions != 2 {
		t.Fatalf("expected 2/2, got %d/%d", record.Score, record.TotalQuestions)
	}

	stored, err := attempts.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("load attempt: %v", err)
	}
	if stored.Score != 2 || len(stored.Violations) != 1 || stored.Violations[0].Tag != proctor.TagCopyAttempted {
		t.Fatalf("stored attempt mismatch: %+v", stored)
	}

	// A fresh session for the same user is blocked by the flag.
	second := app.NewController("u1", cfg, proctor.NewSignalBus(), bank, attempts, profiles,
		app.WithTickInterval(0))
	if err := second.LoadQuestions(ctx); !errors.Is(err, domain.ErrAlreadyAttempted) {
		t.Fatalf("expected already-attempted block, got %v", err)
	}

	// And the store itself rejects a direct second write.
	err = attempts.Save(ctx, domain.AttemptRecord{ID: "a2", UserID: "u1", SubmittedAt: time.Now()})
	if !errors.Is(err, domain.ErrAttemptExists) {
		t.Fatalf("expected attempt-exists from store, got %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedData(t *testing.T, ctx context.Context, dsn string) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if _, err := db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, username, payment_verified)
		VALUES ('u1', 'alice', TRUE)`); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	questions := []struct {
		id, prompt, a, b, c, d, correct string
	}{
		{"q1", "1+1?", "2", "3", "4", "5", "A"},
		{"q2", "2*3?", "5", "6", "7", "8", "B"},
	}
	for _, q := range questions {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO questions (id, prompt, option_a, option_b, option_c, option_d, correct_label, category)
			VALUES (?, ?, ?, ?, ?, ?, ?, 'algebra')`,
			q.id, q.prompt, q.a, q.b, q.c, q.d, q.correct); err != nil {
			t.Fatalf("seed question %s: %v", q.id, err)
		}
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
