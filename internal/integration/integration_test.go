package integration

import (
	"context"
	"database/sql"
	"encoding/json"
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

	"affairs-quiz-web/internal/app"
	"affairs-quiz-web/internal/domain"
	"affairs-quiz-web/internal/guest"
	pgquiz "affairs-quiz-web/internal/infra/postgres"
	infraredis "affairs-quiz-web/internal/infra/redis"
	pgmigrations "affairs-quiz-web/internal/infra/postgres/migrations"
)

type recordingSubmitter struct {
	calls       int
	submissions []domain.Submission
}

func (r *recordingSubmitter) SubmitQuiz(ctx context.Context, quizID int64, sub domain.Submission) (domain.SubmissionResult, error) {
	r.calls++
	r.submissions = append(r.submissions, sub)
	right := 0
	for _, a := range sub.Answers {
		if a.SelectedOption != nil {
			right++
		}
	}
	return domain.SubmissionResult{
		Score:          right * 10,
		TotalQuestions: len(sub.Answers),
		TotalRight:     right,
		TotalWrong:     len(sub.Answers) - right,
	}, nil
}

func TestQuizSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := pgquiz.NewQuizLoader(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	quizzes := infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute)
	sessions := infraredis.NewSessionStore(redisClient, 5*time.Minute)

	submitter := &recordingSubmitter{}
	id := guest.Identity("guest-e2e")
	session, created := sessions.GetOrCreate(1, id, func() *app.Session {
		return app.NewSessionWithInterval(1, id, quizzes, submitter, 0)
	})
	if !created {
		t.Fatalf("expected a fresh session")
	}

	snap := session.Initialize(ctx)
	if snap.State != "ready" {
		t.Fatalf("expected ready state, got %s", snap.State)
	}
	if snap.Total != 2 {
		t.Fatalf("expected 2 questions from postgres, got %d", snap.Total)
	}
	if snap.Countdown != "05:00" {
		t.Fatalf("expected 05:00 countdown, got %s", snap.Countdown)
	}

	if _, err := session.SelectOption(10, 1); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := session.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	snap, err = session.Submit(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if snap.State != "submitted" {
		t.Fatalf("expected submitted, got %s", snap.State)
	}
	if submitter.calls != 1 {
		t.Fatalf("expected one scoring call, got %d", submitter.calls)
	}
	sub := submitter.submissions[0]
	if len(sub.Answers) != 2 {
		t.Fatalf("expected an entry per question, got %d", len(sub.Answers))
	}
	if sub.Answers[0].SelectedOption == nil || *sub.Answers[0].SelectedOption != 1 {
		t.Fatalf("expected option 1 for the first question, got %+v", sub.Answers[0])
	}
	if sub.Answers[1].SelectedOption != nil {
		t.Fatalf("expected nil selection for the unanswered question")
	}

	// A second load for the same quiz must come from the redis cache, not
	// postgres: dropping the table makes a fresh load impossible.
	if _, err := pool.Exec(ctx, `DROP TABLE quizzes`); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	cached, err := quizzes.GetQuiz(ctx, 1)
	if err != nil {
		t.Fatalf("cached fetch: %v", err)
	}
	if cached.Title != "Daily Affairs" {
		t.Fatalf("unexpected cached quiz: %+v", cached)
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

func seedQuiz(t *testing.T, ctx context.Context, dsn string, quiz domain.Quiz) {
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

	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, data) VALUES (? , ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, quiz.ID, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:           1,
		Title:        "Daily Affairs",
		TimerSeconds: 300,
		Questions: []domain.Question{
			{ID: 10, Text: "Capital of France?", Option1: "Paris", Option2: "Lyon", Option3: "Nice", Option4: "Lille"},
			{ID: 11, Text: "Largest ocean?", Option1: "Atlantic", Option2: "Pacific"},
		},
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
