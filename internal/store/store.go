package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tbraaten/quizcov/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS quizzes (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		course_id INTEGER NOT NULL DEFAULT 0,
		course_name TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT 'en',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS modules (
		quiz_id TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (quiz_id, id),
		FOREIGN KEY (quiz_id) REFERENCES quizzes(id)
	);

	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		quiz_id TEXT NOT NULL,
		module_id TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		word_count INTEGER NOT NULL DEFAULT 0,
		position INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (quiz_id, module_id) REFERENCES modules(quiz_id, id)
	);

	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		quiz_id TEXT NOT NULL,
		module_id TEXT NOT NULL,
		question_type TEXT NOT NULL,
		question_data TEXT NOT NULL,
		approved INTEGER NOT NULL DEFAULT 0,
		deleted INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (quiz_id, module_id) REFERENCES modules(quiz_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_questions_module ON questions(quiz_id, module_id);
	CREATE INDEX IF NOT EXISTS idx_pages_module ON pages(quiz_id, module_id);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// UpsertQuiz inserts or updates a quiz.
func (s *Store) UpsertQuiz(q model.Quiz) error {
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO quizzes (id, title, course_id, course_name, language, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = ?, course_id = ?, course_name = ?, language = ?`,
		q.ID.String(), q.Title, q.CourseID, q.CourseName, q.Language, q.CreatedAt,
		q.Title, q.CourseID, q.CourseName, q.Language,
	)
	return err
}

// GetQuiz returns a quiz by ID. Returns sql.ErrNoRows when absent.
func (s *Store) GetQuiz(id uuid.UUID) (model.Quiz, error) {
	var (
		q     model.Quiz
		rawID string
	)
	err := s.db.QueryRow(
		`SELECT id, title, course_id, course_name, language, created_at FROM quizzes WHERE id = ?`, id.String(),
	).Scan(&rawID, &q.Title, &q.CourseID, &q.CourseName, &q.Language, &q.CreatedAt)
	if err != nil {
		return q, err
	}
	q.ID, err = uuid.Parse(rawID)
	return q, err
}

// UpsertModule inserts or updates a module.
func (s *Store) UpsertModule(m model.Module) error {
	_, err := s.db.Exec(
		`INSERT INTO modules (quiz_id, id, name, position) VALUES (?, ?, ?, ?)
		 ON CONFLICT(quiz_id, id) DO UPDATE SET name = ?, position = ?`,
		m.QuizID.String(), m.ID, m.Name, m.Position, m.Name, m.Position,
	)
	return err
}

// GetModule returns one module of a quiz. Returns sql.ErrNoRows when absent.
func (s *Store) GetModule(quizID uuid.UUID, moduleID string) (model.Module, error) {
	m := model.Module{QuizID: quizID}
	err := s.db.QueryRow(
		`SELECT id, name, position FROM modules WHERE quiz_id = ? AND id = ?`,
		quizID.String(), moduleID,
	).Scan(&m.ID, &m.Name, &m.Position)
	return m, err
}

// ReplaceModulePages swaps the stored pages of a module for the given set.
func (s *Store) ReplaceModulePages(quizID uuid.UUID, moduleID string, pages []model.Page) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM pages WHERE quiz_id = ? AND module_id = ?`, quizID.String(), moduleID); err != nil {
		return err
	}
	for i, p := range pages {
		_, err := tx.Exec(
			`INSERT INTO pages (quiz_id, module_id, title, content, word_count, position)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			quizID.String(), moduleID, p.Title, p.Content, p.WordCount, i,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListPages returns the pages of a module in position order.
func (s *Store) ListPages(quizID uuid.UUID, moduleID string) ([]model.Page, error) {
	rows, err := s.db.Query(
		`SELECT id, title, content, word_count, position FROM pages
		 WHERE quiz_id = ? AND module_id = ? ORDER BY position, id`,
		quizID.String(), moduleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pages []model.Page
	for rows.Next() {
		p := model.Page{QuizID: quizID, ModuleID: moduleID}
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.WordCount, &p.Position); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// UpsertQuestion inserts or updates a question.
func (s *Store) UpsertQuestion(q model.Question) error {
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO questions (id, quiz_id, module_id, question_type, question_data, approved, deleted, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET question_type = ?, question_data = ?, approved = ?, deleted = ?`,
		q.ID.String(), q.QuizID.String(), q.ModuleID, string(q.Type), string(q.Data), q.Approved, q.Deleted, q.CreatedAt,
		string(q.Type), string(q.Data), q.Approved, q.Deleted,
	)
	return err
}

// ListModuleQuestions returns the non-deleted questions of a module.
func (s *Store) ListModuleQuestions(quizID uuid.UUID, moduleID string) ([]model.Question, error) {
	rows, err := s.db.Query(
		`SELECT id, question_type, question_data, approved, created_at FROM questions
		 WHERE quiz_id = ? AND module_id = ? AND deleted = 0 ORDER BY created_at, id`,
		quizID.String(), moduleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q := model.Question{QuizID: quizID, ModuleID: moduleID}
		var (
			rawID   string
			rawType string
			rawData string
		)
		if err := rows.Scan(&rawID, &rawType, &rawData, &q.Approved, &q.CreatedAt); err != nil {
			return nil, err
		}
		if q.ID, err = uuid.Parse(rawID); err != nil {
			return nil, fmt.Errorf("question id %q: %w", rawID, err)
		}
		q.Type = model.QuestionType(rawType)
		q.Data = []byte(rawData)
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ListCoverageModules returns all modules of a quiz with the derived flags the
// coverage module list exposes: non-deleted question count and whether any
// page has extracted content.
func (s *Store) ListCoverageModules(quizID uuid.UUID) ([]model.ModuleListItem, error) {
	rows, err := s.db.Query(
		`SELECT m.id, m.name,
		        (SELECT COUNT(*) FROM questions q
		          WHERE q.quiz_id = m.quiz_id AND q.module_id = m.id AND q.deleted = 0),
		        EXISTS (SELECT 1 FROM pages p
		          WHERE p.quiz_id = m.quiz_id AND p.module_id = m.id AND length(trim(p.content)) > 0)
		 FROM modules m WHERE m.quiz_id = ? ORDER BY m.position, m.id`,
		quizID.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.ModuleListItem
	for rows.Next() {
		var it model.ModuleListItem
		if err := rows.Scan(&it.ModuleID, &it.ModuleName, &it.QuestionCount, &it.HasContent); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// QuizCount returns the number of stored quizzes.
func (s *Store) QuizCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM quizzes`).Scan(&count)
	return count, err
}
