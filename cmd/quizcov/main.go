package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/tbraaten/quizcov/internal/content"
	"github.com/tbraaten/quizcov/internal/coverage"
	"github.com/tbraaten/quizcov/internal/embedding"
	"github.com/tbraaten/quizcov/internal/handler"
	appI18n "github.com/tbraaten/quizcov/internal/i18n"
	"github.com/tbraaten/quizcov/internal/model"
	"github.com/tbraaten/quizcov/internal/report"
	"github.com/tbraaten/quizcov/internal/store"
)

const tokenHashKey = "api_token_hash"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "quizcov",
		Short: "Content-coverage analysis for AI-generated quizzes",
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), analyzeCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `quizcov --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the coverage HTTP API",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "quizcov.db", "SQLite database path")
	f.String("embed-url", "", "OpenAI-compatible embeddings API base URL (empty = api.openai.com)")
	f.String("embed-key", "", "API key for the embeddings endpoint")
	f.String("embed-model", "text-embedding-3-large", "Embedding model name")
	f.String("api-token", "", "API bearer token to require (or set QUIZCOV_API_TOKEN; empty disables auth)")
	f.Int("cache-size", 256, "Maximum cached coverage results")
	f.Duration("cache-ttl", time.Hour, "Coverage result cache freshness window")
	f.Duration("coverage-timeout", 60*time.Second, "Per-request coverage computation timeout")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import quiz fixtures (content and questions) into the database",
		RunE:  runImport,
	}
	f := cmd.Flags()
	f.String("db", "quizcov.db", "SQLite database path")
	f.StringSliceP("quizzes", "q", nil, "Paths to quiz JSON files (repeatable)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("quizzes")

	return cmd
}

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run coverage analysis for one module and print a report",
		RunE:  runAnalyze,
	}
	f := cmd.Flags()
	f.String("db", "quizcov.db", "SQLite database path")
	f.String("quiz", "", "Quiz UUID (required)")
	f.String("module", "", "Module identifier (required)")
	f.String("embed-url", "", "OpenAI-compatible embeddings API base URL")
	f.String("embed-key", "", "API key for the embeddings endpoint")
	f.String("embed-model", "text-embedding-3-large", "Embedding model name")
	f.Duration("coverage-timeout", 120*time.Second, "Coverage computation timeout")
	f.StringP("lang", "l", "en", "Report language (en, nb)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("quiz")
	_ = cmd.MarkFlagRequired("module")

	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("QUIZCOV")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("quizcov")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/quizcov")
	v.AddConfigPath("/etc/quizcov")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	tokenHash, err := seedAPIToken(db, v.GetString("api-token"))
	if err != nil {
		return fmt.Errorf("seed API token: %w", err)
	}
	if len(tokenHash) == 0 {
		slog.Warn("no API token configured, authentication disabled")
	}

	embedder := embedding.New(
		v.GetString("embed-url"),
		v.GetString("embed-key"),
		v.GetString("embed-model"),
	)
	if err := embedder.Ping(cmd.Context()); err != nil {
		return fmt.Errorf("embeddings health check: %w", err)
	}
	slog.Info("embeddings endpoint OK", "url", v.GetString("embed-url"), "model", v.GetString("embed-model"))

	cache := coverage.NewResultCache(v.GetInt("cache-size"), v.GetDuration("cache-ttl"))
	svc := coverage.NewService(db, embedder, cache)

	h := handler.New(svc, handler.Config{
		TokenHash: tokenHash,
		Timeout:   v.GetDuration("coverage-timeout"),
	})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"model", v.GetString("embed-model"),
		"embed_url", v.GetString("embed-url"),
		"cache_ttl", v.GetDuration("cache-ttl"),
		"coverage_timeout", v.GetDuration("coverage-timeout"),
	)
	return http.ListenAndServe(addr, r)
}

func runImport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	return importQuizzes(db, v.GetStringSlice("quizzes"))
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	quizID, err := uuid.Parse(v.GetString("quiz"))
	if err != nil {
		return fmt.Errorf("invalid quiz ID: %w", err)
	}
	moduleID := v.GetString("module")

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	embedder := embedding.New(
		v.GetString("embed-url"),
		v.GetString("embed-key"),
		v.GetString("embed-model"),
	)
	svc := coverage.NewService(db, embedder, nil)

	ctx, cancel := context.WithTimeout(cmd.Context(), v.GetDuration("coverage-timeout"))
	defer cancel()

	resp, err := svc.ModuleCoverage(ctx, quizID, moduleID)
	if err != nil {
		return fmt.Errorf("compute coverage: %w", err)
	}

	ctx = appI18n.WithLocalizer(ctx, appI18n.NewLocalizer(lang))
	return report.Write(ctx, os.Stdout, resp)
}

// importQuizzes loads quiz fixture files, skipping files whose content hash
// matches a previous import.
func importQuizzes(db *store.Store, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		hashKey := "import:" + path
		storedHash, err := db.GetMetadata(hashKey)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}
		if storedHash == hash {
			slog.Info("quiz file unchanged, skipping", "path", path)
			continue
		}

		var quiz model.QuizImport
		if err := json.Unmarshal(data, &quiz); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if err := importQuiz(db, quiz); err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}

		if err := db.SetMetadata(hashKey, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported quiz", "path", path, "quiz_id", quiz.ID, "modules", len(quiz.Modules))
	}
	return nil
}

func importQuiz(db *store.Store, quiz model.QuizImport) error {
	lang := quiz.Language
	if lang == "" {
		lang = "en"
	}
	if err := db.UpsertQuiz(model.Quiz{
		ID:         quiz.ID,
		Title:      quiz.Title,
		CourseID:   quiz.CourseID,
		CourseName: quiz.CourseName,
		Language:   lang,
	}); err != nil {
		return fmt.Errorf("upsert quiz: %w", err)
	}

	for pos, mi := range quiz.Modules {
		if err := db.UpsertModule(model.Module{
			ID:       mi.ID,
			QuizID:   quiz.ID,
			Name:     mi.Name,
			Position: pos,
		}); err != nil {
			return fmt.Errorf("upsert module %s: %w", mi.ID, err)
		}

		pages := make([]model.Page, 0, len(mi.Pages))
		for _, pi := range mi.Pages {
			text := pi.Text
			wordCount := len(strings.Fields(text))
			if pi.HTML != "" {
				var err error
				text, wordCount, err = content.ExtractText(pi.HTML)
				if err != nil {
					return fmt.Errorf("extract page %q: %w", pi.Title, err)
				}
			}
			pages = append(pages, model.Page{
				Title:     pi.Title,
				Content:   text,
				WordCount: wordCount,
			})
		}
		if err := db.ReplaceModulePages(quiz.ID, mi.ID, pages); err != nil {
			return fmt.Errorf("store pages for module %s: %w", mi.ID, err)
		}

		for _, qi := range mi.Questions {
			if !model.IsValidQuestionType(qi.Type) {
				return fmt.Errorf("question %s: unknown type %q", qi.ID, qi.Type)
			}
			if err := db.UpsertQuestion(model.Question{
				ID:       qi.ID,
				QuizID:   quiz.ID,
				ModuleID: mi.ID,
				Type:     qi.Type,
				Data:     qi.Data,
				Approved: qi.Approved,
			}); err != nil {
				return fmt.Errorf("upsert question %s: %w", qi.ID, err)
			}
		}
	}
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// seedAPIToken stores the bcrypt hash of a newly configured token, or loads
// the previously stored hash when no token flag is given.
func seedAPIToken(db *store.Store, token string) ([]byte, error) {
	if token == "" {
		stored, err := db.GetMetadata(tokenHashKey)
		if err != nil {
			return nil, err
		}
		if stored == "" {
			return nil, nil
		}
		return []byte(stored), nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash API token: %w", err)
	}
	if err := db.SetMetadata(tokenHashKey, string(hash)); err != nil {
		return nil, err
	}
	slog.Info("API token configured")
	return hash, nil
}
