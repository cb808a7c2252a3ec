package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// QuizImport is the on-disk fixture format consumed by the import command:
// one quiz with its modules, extracted pages and generated questions.
type QuizImport struct {
	ID         uuid.UUID      `json:"id"`
	Title      string         `json:"title"`
	CourseID   int64          `json:"course_id"`
	CourseName string         `json:"course_name"`
	Language   string         `json:"language"`
	Modules    []ModuleImport `json:"modules"`
}

// ModuleImport is one module of a quiz import file.
type ModuleImport struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Pages     []PageImport     `json:"pages"`
	Questions []QuestionImport `json:"questions"`
}

// PageImport is one content page. Either HTML (extracted at import time) or
// pre-extracted plain text.
type PageImport struct {
	Title string `json:"title"`
	HTML  string `json:"html,omitempty"`
	Text  string `json:"text,omitempty"`
}

// QuestionImport is one generated question of an import file.
type QuestionImport struct {
	ID       uuid.UUID       `json:"id"`
	Type     QuestionType    `json:"question_type"`
	Data     json.RawMessage `json:"question_data"`
	Approved bool            `json:"approved"`
}
