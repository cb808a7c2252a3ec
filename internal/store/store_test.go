package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/tbraaten/quizcov/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedQuiz(t *testing.T, s *Store) model.Quiz {
	t.Helper()
	q := model.Quiz{
		ID:         uuid.New(),
		Title:      "Cell Biology Quiz",
		CourseID:   42,
		CourseName: "Biology 101",
		Language:   "en",
	}
	if err := s.UpsertQuiz(q); err != nil {
		t.Fatalf("upsert quiz: %v", err)
	}
	return q
}

func TestQuizRoundTrip(t *testing.T) {
	s := newTestStore(t)
	q := seedQuiz(t, s)

	got, err := s.GetQuiz(q.ID)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if got.Title != q.Title || got.CourseID != q.CourseID || got.Language != q.Language {
		t.Errorf("got %+v, want %+v", got, q)
	}

	q.Title = "Renamed Quiz"
	if err := s.UpsertQuiz(q); err != nil {
		t.Fatalf("upsert updated quiz: %v", err)
	}
	got, err = s.GetQuiz(q.ID)
	if err != nil {
		t.Fatalf("get updated quiz: %v", err)
	}
	if got.Title != "Renamed Quiz" {
		t.Errorf("title = %q after upsert", got.Title)
	}

	count, err := s.QuizCount()
	if err != nil {
		t.Fatalf("quiz count: %v", err)
	}
	if count != 1 {
		t.Errorf("quiz count = %d, want 1 (upsert must not duplicate)", count)
	}
}

func TestGetQuizMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetQuiz(uuid.New()); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestModuleRoundTrip(t *testing.T) {
	s := newTestStore(t)
	q := seedQuiz(t, s)

	m := model.Module{ID: "mod-1", QuizID: q.ID, Name: "Cells", Position: 1}
	if err := s.UpsertModule(m); err != nil {
		t.Fatalf("upsert module: %v", err)
	}
	got, err := s.GetModule(q.ID, "mod-1")
	if err != nil {
		t.Fatalf("get module: %v", err)
	}
	if got.Name != "Cells" || got.Position != 1 {
		t.Errorf("module = %+v", got)
	}

	if _, err := s.GetModule(q.ID, "missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("missing module err = %v, want sql.ErrNoRows", err)
	}
}

func TestReplaceModulePages(t *testing.T) {
	s := newTestStore(t)
	q := seedQuiz(t, s)
	if err := s.UpsertModule(model.Module{ID: "mod-1", QuizID: q.ID, Name: "Cells"}); err != nil {
		t.Fatalf("upsert module: %v", err)
	}

	first := []model.Page{
		{Title: "Intro", Content: "Cells are the basic unit of life.", WordCount: 7},
		{Title: "Organelles", Content: "Mitochondria produce ATP.", WordCount: 3},
	}
	if err := s.ReplaceModulePages(q.ID, "mod-1", first); err != nil {
		t.Fatalf("replace pages: %v", err)
	}

	pages, err := s.ListPages(q.ID, "mod-1")
	if err != nil {
		t.Fatalf("list pages: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(pages))
	}
	if pages[0].Title != "Intro" || pages[1].Title != "Organelles" {
		t.Errorf("page order: %q, %q", pages[0].Title, pages[1].Title)
	}
	if pages[0].Position != 0 || pages[1].Position != 1 {
		t.Errorf("positions = %d, %d", pages[0].Position, pages[1].Position)
	}

	// A re-import fully replaces the old set.
	second := []model.Page{{Title: "Rewritten", Content: "New content entirely.", WordCount: 3}}
	if err := s.ReplaceModulePages(q.ID, "mod-1", second); err != nil {
		t.Fatalf("replace pages again: %v", err)
	}
	pages, err = s.ListPages(q.ID, "mod-1")
	if err != nil {
		t.Fatalf("list pages after replace: %v", err)
	}
	if len(pages) != 1 || pages[0].Title != "Rewritten" {
		t.Errorf("pages after replace = %+v", pages)
	}
}

func TestQuestionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	q := seedQuiz(t, s)
	if err := s.UpsertModule(model.Module{ID: "mod-1", QuizID: q.ID, Name: "Cells"}); err != nil {
		t.Fatalf("upsert module: %v", err)
	}

	data, _ := json.Marshal(model.TrueFalseData{QuestionText: "Mitochondria produce ATP.", CorrectAnswer: true})
	kept := model.Question{
		ID: uuid.New(), QuizID: q.ID, ModuleID: "mod-1",
		Type: model.TypeTrueFalse, Data: data, Approved: true,
	}
	deleted := model.Question{
		ID: uuid.New(), QuizID: q.ID, ModuleID: "mod-1",
		Type: model.TypeTrueFalse, Data: data, Deleted: true,
	}
	for _, question := range []model.Question{kept, deleted} {
		if err := s.UpsertQuestion(question); err != nil {
			t.Fatalf("upsert question: %v", err)
		}
	}

	questions, err := s.ListModuleQuestions(q.ID, "mod-1")
	if err != nil {
		t.Fatalf("list questions: %v", err)
	}
	if len(questions) != 1 {
		t.Fatalf("questions = %d, want 1 (deleted excluded)", len(questions))
	}
	got := questions[0]
	if got.ID != kept.ID || got.Type != model.TypeTrueFalse || !got.Approved {
		t.Errorf("question = %+v", got)
	}
	text, err := got.ScorableText()
	if err != nil {
		t.Fatalf("scorable text of stored question: %v", err)
	}
	if text != "Mitochondria produce ATP." {
		t.Errorf("scorable text = %q", text)
	}
}

func TestListCoverageModules(t *testing.T) {
	s := newTestStore(t)
	q := seedQuiz(t, s)

	modules := []model.Module{
		{ID: "with-both", QuizID: q.ID, Name: "Ready", Position: 0},
		{ID: "no-content", QuizID: q.ID, Name: "Questions Only", Position: 1},
		{ID: "no-questions", QuizID: q.ID, Name: "Content Only", Position: 2},
		{ID: "blank-pages", QuizID: q.ID, Name: "Whitespace Pages", Position: 3},
	}
	for _, m := range modules {
		if err := s.UpsertModule(m); err != nil {
			t.Fatalf("upsert module %s: %v", m.ID, err)
		}
	}

	data, _ := json.Marshal(model.TrueFalseData{QuestionText: "A fact.", CorrectAnswer: true})
	for _, moduleID := range []string{"with-both", "no-content"} {
		err := s.UpsertQuestion(model.Question{
			ID: uuid.New(), QuizID: q.ID, ModuleID: moduleID,
			Type: model.TypeTrueFalse, Data: data,
		})
		if err != nil {
			t.Fatalf("upsert question for %s: %v", moduleID, err)
		}
	}
	page := []model.Page{{Title: "P", Content: "Some extracted content here.", WordCount: 4}}
	if err := s.ReplaceModulePages(q.ID, "with-both", page); err != nil {
		t.Fatalf("pages for with-both: %v", err)
	}
	if err := s.ReplaceModulePages(q.ID, "no-questions", page); err != nil {
		t.Fatalf("pages for no-questions: %v", err)
	}
	if err := s.ReplaceModulePages(q.ID, "blank-pages", []model.Page{{Title: "B", Content: "   "}}); err != nil {
		t.Fatalf("pages for blank-pages: %v", err)
	}

	items, err := s.ListCoverageModules(q.ID)
	if err != nil {
		t.Fatalf("list coverage modules: %v", err)
	}
	want := []model.ModuleListItem{
		{ModuleID: "with-both", ModuleName: "Ready", QuestionCount: 1, HasContent: true},
		{ModuleID: "no-content", ModuleName: "Questions Only", QuestionCount: 1, HasContent: false},
		{ModuleID: "no-questions", ModuleName: "Content Only", QuestionCount: 0, HasContent: true},
		{ModuleID: "blank-pages", ModuleName: "Whitespace Pages", QuestionCount: 0, HasContent: false},
	}
	if len(items) != len(want) {
		t.Fatalf("items = %d, want %d", len(items), len(want))
	}
	for i, it := range items {
		if it != want[i] {
			t.Errorf("item %d = %+v, want %+v", i, it, want[i])
		}
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)

	v, err := s.GetMetadata("absent")
	if err != nil {
		t.Fatalf("get absent metadata: %v", err)
	}
	if v != "" {
		t.Errorf("absent metadata = %q, want empty", v)
	}

	if err := s.SetMetadata("import:quizzes.json", "abc123"); err != nil {
		t.Fatalf("set metadata: %v", err)
	}
	if err := s.SetMetadata("import:quizzes.json", "def456"); err != nil {
		t.Fatalf("overwrite metadata: %v", err)
	}
	v, err = s.GetMetadata("import:quizzes.json")
	if err != nil {
		t.Fatalf("get metadata: %v", err)
	}
	if v != "def456" {
		t.Errorf("metadata = %q, want def456", v)
	}
}
