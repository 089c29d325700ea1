package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/stemsi/exstem-exam/internal/config"
	"github.com/stemsi/exstem-exam/internal/database"
	"github.com/stemsi/exstem-exam/internal/logger"
	"github.com/stemsi/exstem-exam/internal/model"
	"github.com/stemsi/exstem-exam/internal/repository"
	"github.com/stemsi/exstem-exam/internal/service"
	"github.com/stemsi/exstem-exam/internal/validator"
)

func main() {
	var file string
	var tokenFor int
	flag.StringVar(&file, "file", "seed/sample_exam.json", "Exam document to load")
	flag.IntVar(&tokenFor, "token-for", 0, "Print a development token for this student id")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat).With().Str("component", "seed_exam").Logger()
	validator.Setup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// ─── Read Exam Document ────────────────────────────────────────────
	raw, err := os.ReadFile(file)
	if err != nil {
		log.Fatal().Err(err).Str("file", file).Msg("Failed to read exam file")
	}
	var req model.SeedExamRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		log.Fatal().Err(err).Str("file", file).Msg("Exam file is not valid JSON")
	}
	if fields := validator.Validate(&req); fields != nil {
		for field, msg := range fields {
			log.Error().Str("field", field).Msg(msg)
		}
		log.Fatal().Str("file", file).Msg("Exam file failed validation")
	}

	// ─── Connect ───────────────────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Seed ──────────────────────────────────────────────────────────
	examService := service.NewExamService(
		repository.NewExamRepository(pool),
		repository.NewQuestionRepository(pool),
		rdb, cfg.DefaultPassingScore, log,
	)
	exam, err := examService.SeedExam(ctx, &req)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed exam")
	}
	log.Info().
		Str("exam_id", exam.ID.String()).
		Int("questions", len(req.Questions)).
		Msg("Exam seeded and cached")
	fmt.Println(exam.ID)

	if tokenFor > 0 {
		token, err := service.NewAuthService(cfg).GenerateStudentToken(tokenFor)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to generate token")
		}
		fmt.Println(token)
	}
}
