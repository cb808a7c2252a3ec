package coverage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tbraaten/quizcov/internal/model"
)

// Input errors. Callers can distinguish "nothing to analyze" from "analysis
// failed": these map to not-found / needs-content states, ErrEmbeddingFailed
// is the retryable one.
var (
	ErrQuizNotFound   = errors.New("quiz not found")
	ErrModuleNotFound = errors.New("module not found")
	ErrNoContent      = errors.New("module has no extracted content")
)

// Store is the persistence surface the coverage service needs.
type Store interface {
	GetQuiz(id uuid.UUID) (model.Quiz, error)
	GetModule(quizID uuid.UUID, moduleID string) (model.Module, error)
	ListPages(quizID uuid.UUID, moduleID string) ([]model.Page, error)
	ListModuleQuestions(quizID uuid.UUID, moduleID string) ([]model.Question, error)
	ListCoverageModules(quizID uuid.UUID) ([]model.ModuleListItem, error)
}

// Service loads module content and questions, runs the scorer and caches
// successful results.
type Service struct {
	store  Store
	scorer *Scorer
	cache  *ResultCache
}

// NewService creates a coverage service. cache may be nil to disable caching.
func NewService(store Store, embedder Embedder, cache *ResultCache) *Service {
	return &Service{store: store, scorer: NewScorer(embedder), cache: cache}
}

// Modules lists the modules of a quiz with their coverage eligibility flags.
func (s *Service) Modules(ctx context.Context, quizID uuid.UUID) (*model.ModuleListResponse, error) {
	if _, err := s.store.GetQuiz(quizID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrQuizNotFound, quizID)
		}
		return nil, fmt.Errorf("load quiz: %w", err)
	}
	modules, err := s.store.ListCoverageModules(quizID)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	if modules == nil {
		modules = []model.ModuleListItem{}
	}
	return &model.ModuleListResponse{QuizID: quizID, Modules: modules}, nil
}

// ModuleCoverage computes (or returns cached) coverage for one module.
func (s *Service) ModuleCoverage(ctx context.Context, quizID uuid.UUID, moduleID string) (*model.ModuleCoverageResponse, error) {
	if s.cache != nil {
		if resp, ok := s.cache.Get(quizID, moduleID); ok {
			slog.Debug("coverage cache hit", "quiz_id", quizID, "module_id", moduleID)
			return resp, nil
		}
	}

	if _, err := s.store.GetQuiz(quizID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrQuizNotFound, quizID)
		}
		return nil, fmt.Errorf("load quiz: %w", err)
	}
	module, err := s.store.GetModule(quizID, moduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, moduleID)
		}
		return nil, fmt.Errorf("load module: %w", err)
	}

	pages, err := s.store.ListPages(quizID, moduleID)
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}
	contents := make([]PageContent, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p.Content) == "" {
			continue
		}
		contents = append(contents, PageContent{
			Title:     p.Title,
			Content:   p.Content,
			WordCount: p.WordCount,
		})
	}
	if len(contents) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoContent, moduleID)
	}

	questions, err := s.store.ListModuleQuestions(quizID, moduleID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	scorable := make([]ScorableQuestion, 0, len(questions))
	for _, q := range questions {
		text, err := q.ScorableText()
		if err != nil {
			slog.Warn("skipping undecodable question", "question_id", q.ID, "error", err)
			continue
		}
		if text == "" {
			continue
		}
		scorable = append(scorable, ScorableQuestion{ID: q.ID, Type: q.Type, Text: text})
	}

	start := time.Now()
	slog.Info("coverage computation started",
		"quiz_id", quizID, "module_id", moduleID,
		"pages", len(contents), "questions", len(scorable))

	result, err := s.scorer.Score(ctx, moduleID, module.Name, contents, scorable)
	if err != nil {
		return nil, err
	}

	resp := &model.ModuleCoverageResponse{
		QuizID:           quizID,
		Module:           result.Module,
		QuestionMappings: result.QuestionMappings,
		Statistics:       result.Statistics,
		ComputedAt:       time.Now().UTC().Format(time.RFC3339),
	}

	slog.Info("coverage computation completed",
		"quiz_id", quizID, "module_id", moduleID,
		"total_sentences", resp.Statistics.TotalSentences,
		"coverage_percentage", resp.Statistics.CoveragePercentage,
		"duration", time.Since(start))

	if s.cache != nil {
		s.cache.Add(quizID, moduleID, resp)
	}
	return resp, nil
}
