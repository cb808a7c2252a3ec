package coverage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tbraaten/quizcov/internal/model"
)

// Coverage thresholds. These are a hard external contract: consumers key
// colors and copy to exactly these four buckets, with half-open intervals
// (a score of exactly 0.70 is high).
const (
	ThresholdHigh   = 0.70
	ThresholdMedium = 0.50
	ThresholdLow    = 0.30
)

// matchFloor is the minimum similarity for a question to be listed among a
// sentence's matched questions. It equals the low-bucket threshold, so a
// sentence with any matches always has a level other than none.
const matchFloor = ThresholdLow

// maxQuestionTextLength truncates question text in mappings for display.
const maxQuestionTextLength = 300

// ErrEmbeddingFailed wraps embedding backend failures. Scoring never degrades
// to fabricated zero scores: an unavailable backend surfaces as this error.
var ErrEmbeddingFailed = errors.New("embedding backend failed")

// LevelForScore buckets a coverage score into a discrete level.
func LevelForScore(score float64) model.CoverageLevel {
	switch {
	case score >= ThresholdHigh:
		return model.CoverageHigh
	case score >= ThresholdMedium:
		return model.CoverageMedium
	case score >= ThresholdLow:
		return model.CoverageLow
	default:
		return model.CoverageNone
	}
}

// Embedder produces L2-normalized embedding vectors, one per input text, all
// of equal dimension. Implementations must be deterministic for fixed input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ScorableQuestion is the coverage-relevant subset of a question.
type ScorableQuestion struct {
	ID   uuid.UUID
	Type model.QuestionType
	Text string
}

// PageContent is one module page handed to the scorer.
type PageContent struct {
	Title     string
	Content   string
	WordCount int
}

// ModuleResult is the outcome of scoring one module.
type ModuleResult struct {
	Module           model.ModuleCoverage
	QuestionMappings []model.QuestionMapping
	Statistics       model.CoverageStatistics
}

// Scorer computes sentence-level coverage of module content by questions.
// It is stateless; one Score call per coverage request.
type Scorer struct {
	embedder    Embedder
	parallelism int
}

// NewScorer returns a Scorer using the given embedder. Page scoring fans out
// across up to GOMAXPROCS workers.
func NewScorer(e Embedder) *Scorer {
	return &Scorer{embedder: e, parallelism: runtime.GOMAXPROCS(0)}
}

// pageData is the per-page intermediate produced by the parallel phase:
// sentence spans plus the sentence x question similarity matrix.
type pageData struct {
	page  PageContent
	spans []SentenceSpan
	sims  [][]float64
}

// Score computes coverage of the given pages by the given questions.
//
// Per sentence, the coverage score is the maximum similarity over all
// questions; matched questions are those at or above matchFloor. The inverse
// view records, per question, the maximum similarity over all sentences and
// every module-global sentence ordinal attaining it. Pages without usable
// sentences are omitted from the output. Empty inputs are not errors: no
// pages yields zeroed statistics, no questions yields all-none coverage.
//
// The parallel fan-out is merge-order deterministic: results are collected
// per page index and reduced sequentially, so scheduling cannot change the
// output.
func (s *Scorer) Score(ctx context.Context, moduleID, moduleName string, pages []PageContent, questions []ScorableQuestion) (*ModuleResult, error) {
	var questionEmb [][]float32
	if len(questions) > 0 {
		texts := make([]string, len(questions))
		for i, q := range questions {
			texts[i] = q.Text
		}
		var err error
		questionEmb, err = s.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("%w: embed questions: %v", ErrEmbeddingFailed, err)
		}
		if len(questionEmb) != len(questions) {
			return nil, fmt.Errorf("%w: got %d question embeddings for %d questions", ErrEmbeddingFailed, len(questionEmb), len(questions))
		}
	}

	perPage := make([]*pageData, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, page := range pages {
		g.Go(func() error {
			pd, err := s.scorePage(gctx, page, questionEmb)
			if err != nil {
				return err
			}
			perPage[i] = pd
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return reduce(moduleID, moduleName, perPage, questions), nil
}

// scorePage segments one page and computes its similarity matrix. Returns nil
// for pages with no usable sentences.
func (s *Scorer) scorePage(ctx context.Context, page PageContent, questionEmb [][]float32) (*pageData, error) {
	spans := SplitSentences(page.Content)
	if len(spans) == 0 {
		return nil, nil
	}

	sims := make([][]float64, len(spans))
	if len(questionEmb) == 0 {
		for i := range sims {
			sims[i] = make([]float64, 0)
		}
		return &pageData{page: page, spans: spans, sims: sims}, nil
	}

	texts := make([]string, len(spans))
	for i, sp := range spans {
		texts[i] = sp.Text
	}
	slog.Debug("embedding page sentences", "page", page.Title, "sentences", len(texts))
	sentenceEmb, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: embed sentences of %q: %v", ErrEmbeddingFailed, page.Title, err)
	}
	if len(sentenceEmb) != len(spans) {
		return nil, fmt.Errorf("%w: got %d sentence embeddings for %d sentences", ErrEmbeddingFailed, len(sentenceEmb), len(spans))
	}

	for i := range spans {
		row := make([]float64, len(questionEmb))
		for j := range questionEmb {
			row[j] = similarity(sentenceEmb[i], questionEmb[j])
		}
		sims[i] = row
	}
	return &pageData{page: page, spans: spans, sims: sims}, nil
}

// similarity is the dot product of two L2-normalized vectors, clamped to
// [0,1]. Anti-correlated content counts as no coverage, not negative.
func similarity(a, b []float32) float64 {
	var dot float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	if dot < 0 {
		return 0
	}
	if dot > 1 {
		return 1
	}
	return dot
}

// reduce merges per-page results in page order into the final module view.
// Max reductions are commutative, so the outcome is independent of how the
// parallel phase was scheduled.
func reduce(moduleID, moduleName string, perPage []*pageData, questions []ScorableQuestion) *ModuleResult {
	type questionBest struct {
		score     float64
		sentences []int
	}
	best := make([]questionBest, len(questions))

	var (
		annotated      []model.AnnotatedPage
		totalSentences int
		totalCovered   int
		largestGap     int
		currentGap     int
		gapCount       int
		inGap          bool
		globalOrdinal  int
	)

	for _, pd := range perPage {
		if pd == nil {
			continue
		}
		sentences := make([]model.SentenceCoverage, 0, len(pd.spans))
		summary := map[model.CoverageLevel]int{
			model.CoverageNone: 0, model.CoverageLow: 0,
			model.CoverageMedium: 0, model.CoverageHigh: 0,
		}

		for i, span := range pd.spans {
			sims := pd.sims[i]
			var score float64
			matched := make([]uuid.UUID, 0)
			for j, sim := range sims {
				if sim > score {
					score = sim
				}
				if sim >= matchFloor {
					matched = append(matched, questions[j].ID)
				}
				if sim > best[j].score {
					best[j].score = sim
					best[j].sentences = []int{globalOrdinal}
				} else if sim == best[j].score && sim > 0 {
					best[j].sentences = append(best[j].sentences, globalOrdinal)
				}
			}

			level := LevelForScore(score)
			sc := model.SentenceCoverage{
				SentenceIndex:    span.Index,
				Text:             span.Text,
				StartChar:        span.Start,
				EndChar:          span.End,
				CoverageScore:    score,
				CoverageLevel:    level,
				MatchedQuestions: matched,
			}
			if score > 0 {
				top := score
				sc.TopQuestionSimilarity = &top
			}
			sentences = append(sentences, sc)

			summary[level]++
			totalSentences++
			if level != model.CoverageNone {
				totalCovered++
				if currentGap > largestGap {
					largestGap = currentGap
				}
				currentGap = 0
				inGap = false
			} else {
				currentGap++
				if !inGap {
					gapCount++
					inGap = true
				}
			}
			globalOrdinal++
		}

		annotated = append(annotated, model.AnnotatedPage{
			Title:           pd.page.Title,
			Sentences:       sentences,
			WordCount:       pd.page.WordCount,
			CoverageSummary: summary,
		})
	}
	if currentGap > largestGap {
		largestGap = currentGap
	}

	mappings := make([]model.QuestionMapping, len(questions))
	for j, q := range questions {
		indices := best[j].sentences
		if indices == nil {
			indices = []int{}
		}
		mappings[j] = model.QuestionMapping{
			QuestionID:            q.ID,
			QuestionText:          truncate(q.Text, maxQuestionTextLength),
			QuestionType:          q.Type,
			BestMatchingSentences: indices,
			BestSimilarityScore:   best[j].score,
		}
	}

	pct := 0.0
	if totalSentences > 0 {
		pct = float64(totalCovered) / float64(totalSentences) * 100
	}
	if annotated == nil {
		annotated = []model.AnnotatedPage{}
	}

	return &ModuleResult{
		Module: model.ModuleCoverage{
			ModuleID:                  moduleID,
			ModuleName:                moduleName,
			Pages:                     annotated,
			OverallCoveragePercentage: pct,
			TotalSentences:            totalSentences,
			CoveredSentences:          totalCovered,
			GapCount:                  gapCount,
		},
		QuestionMappings: mappings,
		Statistics: model.CoverageStatistics{
			TotalSentences:      totalSentences,
			CoveredSentences:    totalCovered,
			CoveragePercentage:  pct,
			TotalQuestions:      len(questions),
			LargestGapSentences: largestGap,
		},
	}
}

// truncate limits s to n characters, never cutting inside a rune.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
