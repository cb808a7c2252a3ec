package model

import (
	"time"

	"github.com/google/uuid"
)

// Quiz is a generated quiz tied to a course.
type Quiz struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	CourseID   int64     `json:"course_id"`
	CourseName string    `json:"course_name"`
	Language   string    `json:"language"`
	CreatedAt  time.Time `json:"created_at"`
}

// Module is a content unit within a course, the unit of coverage analysis.
// Module IDs come from the source LMS and are unique within a quiz.
type Module struct {
	ID       string    `json:"id"`
	QuizID   uuid.UUID `json:"quiz_id"`
	Name     string    `json:"name"`
	Position int       `json:"position"`
}

// Page is one extracted content item of a module, stored as plain text.
type Page struct {
	ID        int64     `json:"id"`
	QuizID    uuid.UUID `json:"quiz_id"`
	ModuleID  string    `json:"module_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	WordCount int       `json:"word_count"`
	Position  int       `json:"position"`
}

// CoverageLevel buckets a coverage score into one of four discrete levels.
// The string values are part of the wire contract and must stay lowercase.
type CoverageLevel string

const (
	CoverageHigh   CoverageLevel = "high"
	CoverageMedium CoverageLevel = "medium"
	CoverageLow    CoverageLevel = "low"
	CoverageNone   CoverageLevel = "none"
)

// SentenceCoverage annotates a single content sentence with its coverage data.
// StartChar/EndChar are character offsets into the whitespace-normalized
// page text.
type SentenceCoverage struct {
	SentenceIndex         int           `json:"sentence_index"`
	Text                  string        `json:"text"`
	StartChar             int           `json:"start_char"`
	EndChar               int           `json:"end_char"`
	CoverageScore         float64       `json:"coverage_score"`
	CoverageLevel         CoverageLevel `json:"coverage_level"`
	MatchedQuestions      []uuid.UUID   `json:"matched_questions"`
	TopQuestionSimilarity *float64      `json:"top_question_similarity,omitempty"`
}

// AnnotatedPage is a module page with per-sentence coverage annotations.
type AnnotatedPage struct {
	Title           string                `json:"title"`
	Sentences       []SentenceCoverage    `json:"sentences"`
	WordCount       int                   `json:"word_count"`
	CoverageSummary map[CoverageLevel]int `json:"coverage_summary"`
}

// ModuleCoverage holds the full per-page coverage data for one module.
type ModuleCoverage struct {
	ModuleID                  string          `json:"module_id"`
	ModuleName                string          `json:"module_name"`
	Pages                     []AnnotatedPage `json:"pages"`
	OverallCoveragePercentage float64         `json:"overall_coverage_percentage"`
	TotalSentences            int             `json:"total_sentences"`
	CoveredSentences          int             `json:"covered_sentences"`
	GapCount                  int             `json:"gap_count"`
}

// QuestionMapping is the inverse view: a question mapped to its best content.
// Sentence references are module-global ordinals in analysis order.
type QuestionMapping struct {
	QuestionID            uuid.UUID    `json:"question_id"`
	QuestionText          string       `json:"question_text"`
	QuestionType          QuestionType `json:"question_type"`
	BestMatchingSentences []int        `json:"best_matching_sentences"`
	BestSimilarityScore   float64      `json:"best_similarity_score"`
}

// CoverageStatistics aggregates coverage over all sentences of a module.
// CoveragePercentage is on a 0-100 scale; similarity scores elsewhere are 0-1.
type CoverageStatistics struct {
	TotalSentences      int     `json:"total_sentences"`
	CoveredSentences    int     `json:"covered_sentences"`
	CoveragePercentage  float64 `json:"coverage_percentage"`
	TotalQuestions      int     `json:"total_questions"`
	LargestGapSentences int     `json:"largest_gap_sentences"`
}

// ModuleCoverageResponse is the full coverage analysis payload for a module.
type ModuleCoverageResponse struct {
	QuizID           uuid.UUID          `json:"quiz_id"`
	Module           ModuleCoverage     `json:"module"`
	QuestionMappings []QuestionMapping  `json:"question_mappings"`
	Statistics       CoverageStatistics `json:"statistics"`
	ComputedAt       string             `json:"computed_at"`
}

// ModuleListItem summarizes a module for the coverage module list.
// A module is eligible for analysis when HasContent and QuestionCount > 0;
// gating is the caller's job, both flags are always exposed.
type ModuleListItem struct {
	ModuleID      string `json:"module_id"`
	ModuleName    string `json:"module_name"`
	QuestionCount int    `json:"question_count"`
	HasContent    bool   `json:"has_content"`
}

// ModuleListResponse lists modules available for coverage analysis.
type ModuleListResponse struct {
	QuizID  uuid.UUID        `json:"quiz_id"`
	Modules []ModuleListItem `json:"modules"`
}
