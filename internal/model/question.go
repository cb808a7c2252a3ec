package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// QuestionType identifies one of the supported question variants.
type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeMultipleAnswer QuestionType = "multiple_answer"
	TypeTrueFalse      QuestionType = "true_false"
	TypeFillInBlank    QuestionType = "fill_in_blank"
	TypeMatching       QuestionType = "matching"
	TypeCategorization QuestionType = "categorization"
)

// IsValidQuestionType reports whether t names a supported variant.
func IsValidQuestionType(t QuestionType) bool {
	switch t {
	case TypeMultipleChoice, TypeMultipleAnswer, TypeTrueFalse,
		TypeFillInBlank, TypeMatching, TypeCategorization:
		return true
	}
	return false
}

// Question is a generated quiz question. Data holds the type-specific payload
// and is decoded through DecodePayload according to the declared Type.
type Question struct {
	ID        uuid.UUID       `json:"id"`
	QuizID    uuid.UUID       `json:"quiz_id"`
	ModuleID  string          `json:"module_id"`
	Type      QuestionType    `json:"question_type"`
	Data      json.RawMessage `json:"question_data"`
	Approved  bool            `json:"approved"`
	Deleted   bool            `json:"deleted"`
	CreatedAt time.Time       `json:"created_at"`
}

// QuestionPayload is the closed set of per-type question payloads.
// ScorableText returns the question's core textual content used as the
// similarity-scoring input: the stem plus correct-answer text where the
// answer text carries semantic content of its own.
type QuestionPayload interface {
	ScorableText() string
}

// MultipleChoiceData is the payload for multiple_choice questions.
// CorrectAnswer names the correct option letter (A-D).
type MultipleChoiceData struct {
	QuestionText  string `json:"question_text"`
	OptionA       string `json:"option_a"`
	OptionB       string `json:"option_b"`
	OptionC       string `json:"option_c"`
	OptionD       string `json:"option_d"`
	CorrectAnswer string `json:"correct_answer"`
	Explanation   string `json:"explanation,omitempty"`
}

func (d MultipleChoiceData) ScorableText() string {
	return joinScorable(d.QuestionText, d.correctOption())
}

func (d MultipleChoiceData) correctOption() string {
	switch strings.ToUpper(strings.TrimSpace(d.CorrectAnswer)) {
	case "A":
		return d.OptionA
	case "B":
		return d.OptionB
	case "C":
		return d.OptionC
	case "D":
		return d.OptionD
	}
	return ""
}

// MultipleAnswerData is the payload for multiple_answer questions.
// CorrectAnswers lists the correct option letters (A-E).
type MultipleAnswerData struct {
	QuestionText   string   `json:"question_text"`
	OptionA        string   `json:"option_a"`
	OptionB        string   `json:"option_b"`
	OptionC        string   `json:"option_c"`
	OptionD        string   `json:"option_d"`
	OptionE        string   `json:"option_e"`
	CorrectAnswers []string `json:"correct_answers"`
	Explanation    string   `json:"explanation,omitempty"`
}

func (d MultipleAnswerData) ScorableText() string {
	parts := []string{d.QuestionText}
	for _, letter := range d.CorrectAnswers {
		switch strings.ToUpper(strings.TrimSpace(letter)) {
		case "A":
			parts = append(parts, d.OptionA)
		case "B":
			parts = append(parts, d.OptionB)
		case "C":
			parts = append(parts, d.OptionC)
		case "D":
			parts = append(parts, d.OptionD)
		case "E":
			parts = append(parts, d.OptionE)
		}
	}
	return joinScorable(parts...)
}

// TrueFalseData is the payload for true_false questions. The boolean answer
// carries no semantic content, so only the stem is scored.
type TrueFalseData struct {
	QuestionText  string `json:"question_text"`
	CorrectAnswer bool   `json:"correct_answer"`
	Explanation   string `json:"explanation,omitempty"`
}

func (d TrueFalseData) ScorableText() string {
	return joinScorable(d.QuestionText)
}

// BlankData is one blank of a fill_in_blank question.
type BlankData struct {
	Position         int      `json:"position"`
	CorrectAnswer    string   `json:"correct_answer"`
	AnswerVariations []string `json:"answer_variations,omitempty"`
}

// FillInBlankData is the payload for fill_in_blank questions. The stem
// contains [blank_N] placeholder tags at the blank positions.
type FillInBlankData struct {
	QuestionText string      `json:"question_text"`
	Blanks       []BlankData `json:"blanks"`
	Explanation  string      `json:"explanation,omitempty"`
}

func (d FillInBlankData) ScorableText() string {
	parts := []string{d.QuestionText}
	for _, b := range d.Blanks {
		parts = append(parts, b.CorrectAnswer)
	}
	return joinScorable(parts...)
}

// MatchingPair is one left/right pair of a matching question.
type MatchingPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// MatchingData is the payload for matching questions. Distractors are extra
// right-side items with no match; they are display noise and not scored.
type MatchingData struct {
	QuestionText string         `json:"question_text"`
	Pairs        []MatchingPair `json:"pairs"`
	Distractors  []string       `json:"distractors,omitempty"`
}

func (d MatchingData) ScorableText() string {
	parts := []string{d.QuestionText}
	for _, p := range d.Pairs {
		parts = append(parts, p.Question, p.Answer)
	}
	return joinScorable(parts...)
}

// CategoryItem is an item to be sorted into a category.
type CategoryItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Category is a bucket of a categorization question. CorrectItems references
// CategoryItem IDs.
type Category struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	CorrectItems []string `json:"correct_items"`
}

// CategorizationData is the payload for categorization questions.
type CategorizationData struct {
	QuestionText string         `json:"question_text"`
	Categories   []Category     `json:"categories"`
	Items        []CategoryItem `json:"items"`
	Distractors  []CategoryItem `json:"distractors,omitempty"`
}

func (d CategorizationData) ScorableText() string {
	parts := []string{d.QuestionText}
	for _, c := range d.Categories {
		parts = append(parts, c.Name)
	}
	for _, it := range d.Items {
		parts = append(parts, it.Text)
	}
	return joinScorable(parts...)
}

// DecodePayload decodes raw question data into the payload type declared by t.
func DecodePayload(t QuestionType, data []byte) (QuestionPayload, error) {
	var (
		payload QuestionPayload
		err     error
	)
	switch t {
	case TypeMultipleChoice:
		var d MultipleChoiceData
		err = json.Unmarshal(data, &d)
		payload = d
	case TypeMultipleAnswer:
		var d MultipleAnswerData
		err = json.Unmarshal(data, &d)
		payload = d
	case TypeTrueFalse:
		var d TrueFalseData
		err = json.Unmarshal(data, &d)
		payload = d
	case TypeFillInBlank:
		var d FillInBlankData
		err = json.Unmarshal(data, &d)
		payload = d
	case TypeMatching:
		var d MatchingData
		err = json.Unmarshal(data, &d)
		payload = d
	case TypeCategorization:
		var d CategorizationData
		err = json.Unmarshal(data, &d)
		payload = d
	default:
		return nil, fmt.Errorf("unknown question type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return payload, nil
}

// ScorableText decodes the question payload and returns its scoring input.
func (q Question) ScorableText() (string, error) {
	p, err := DecodePayload(q.Type, q.Data)
	if err != nil {
		return "", err
	}
	return p.ScorableText(), nil
}

func joinScorable(parts ...string) string {
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
