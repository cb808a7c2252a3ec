package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tbraaten/quizcov/internal/coverage"
	"github.com/tbraaten/quizcov/internal/model"
	"github.com/tbraaten/quizcov/internal/store"
)

// fakeEmbedder returns preset unit vectors keyed by input text. Unknown texts
// get an orthogonal vector.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, txt := range texts {
		v, ok := f.vectors[txt]
		if !ok {
			v = []float32{0, 0, 1}
		}
		out[i] = v
	}
	return out, nil
}

type fixture struct {
	router chi.Router
	quizID uuid.UUID
	emb    *fakeEmbedder
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	quizID := uuid.New()
	if err := st.UpsertQuiz(model.Quiz{ID: quizID, Title: "Biology Quiz", Language: "en"}); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}
	if err := st.UpsertModule(model.Module{ID: "mod-1", QuizID: quizID, Name: "Cells"}); err != nil {
		t.Fatalf("seed module: %v", err)
	}
	if err := st.UpsertModule(model.Module{ID: "empty", QuizID: quizID, Name: "Empty", Position: 1}); err != nil {
		t.Fatalf("seed empty module: %v", err)
	}
	if err := st.ReplaceModulePages(quizID, "mod-1", []model.Page{{
		Title:     "Cell Structure",
		Content:   "Mitochondria produce ATP for the whole cell.",
		WordCount: 7,
	}}); err != nil {
		t.Fatalf("seed pages: %v", err)
	}
	data, _ := json.Marshal(model.TrueFalseData{QuestionText: "Mitochondria produce ATP.", CorrectAnswer: true})
	if err := st.UpsertQuestion(model.Question{
		ID: uuid.New(), QuizID: quizID, ModuleID: "mod-1",
		Type: model.TypeTrueFalse, Data: data,
	}); err != nil {
		t.Fatalf("seed question: %v", err)
	}

	sim := math.Sqrt(1 - 0.88*0.88)
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"Mitochondria produce ATP.":                    {1, 0, 0},
		"Mitochondria produce ATP for the whole cell.": {0.88, float32(sim), 0},
	}}
	svc := coverage.NewService(st, emb, nil)

	r := chi.NewRouter()
	New(svc, cfg).Routes(r)
	return &fixture{router: r, quizID: quizID, emb: emb}
}

func (f *fixture) get(t *testing.T, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var e errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

func TestHealth(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.get(t, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestModuleList(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.get(t, "/api/coverage/"+f.quizID.String()+"/modules", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp model.ModuleListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.QuizID != f.quizID {
		t.Errorf("quiz_id = %s", resp.QuizID)
	}
	if len(resp.Modules) != 2 {
		t.Fatalf("modules = %d, want 2", len(resp.Modules))
	}
	ready := resp.Modules[0]
	if ready.ModuleID != "mod-1" || ready.QuestionCount != 1 || !ready.HasContent {
		t.Errorf("ready module = %+v", ready)
	}
	empty := resp.Modules[1]
	if empty.ModuleID != "empty" || empty.QuestionCount != 0 || empty.HasContent {
		t.Errorf("empty module = %+v", empty)
	}
}

func TestModuleCoverage(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.get(t, "/api/coverage/"+f.quizID.String()+"/modules/mod-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	// Decode into a raw map to pin the wire field names.
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, field := range []string{"quiz_id", "module", "question_mappings", "statistics", "computed_at"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("response missing field %q", field)
		}
	}

	var mod model.ModuleCoverage
	if err := json.Unmarshal(raw["module"], &mod); err != nil {
		t.Fatalf("decode module: %v", err)
	}
	if mod.ModuleName != "Cells" || mod.TotalSentences != 1 || mod.CoveredSentences != 1 {
		t.Errorf("module = %+v", mod)
	}
	if mod.OverallCoveragePercentage != 100.0 {
		t.Errorf("percentage = %v, want 100", mod.OverallCoveragePercentage)
	}
	if len(mod.Pages) != 1 || len(mod.Pages[0].Sentences) != 1 {
		t.Fatalf("pages = %+v", mod.Pages)
	}
	if level := mod.Pages[0].Sentences[0].CoverageLevel; level != model.CoverageHigh {
		t.Errorf("level = %q, want high", level)
	}

	var stats model.CoverageStatistics
	if err := json.Unmarshal(raw["statistics"], &stats); err != nil {
		t.Fatalf("decode statistics: %v", err)
	}
	if stats.TotalQuestions != 1 || stats.LargestGapSentences != 0 {
		t.Errorf("statistics = %+v", stats)
	}

	var computedAt string
	if err := json.Unmarshal(raw["computed_at"], &computedAt); err != nil {
		t.Fatalf("decode computed_at: %v", err)
	}
	if _, err := time.Parse(time.RFC3339, computedAt); err != nil {
		t.Errorf("computed_at %q not RFC 3339: %v", computedAt, err)
	}
}

func TestInvalidQuizID(t *testing.T) {
	f := newFixture(t, Config{})
	for _, path := range []string{
		"/api/coverage/not-a-uuid/modules",
		"/api/coverage/not-a-uuid/modules/mod-1",
	} {
		rec := f.get(t, path, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
			continue
		}
		if e := decodeError(t, rec); e.Code != "invalid_quiz_id" {
			t.Errorf("%s: code = %q", path, e.Code)
		}
	}
}

func TestErrorMapping(t *testing.T) {
	f := newFixture(t, Config{})

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCode   string
		retryable  bool
	}{
		{"unknown quiz", "/api/coverage/" + uuid.NewString() + "/modules/mod-1", http.StatusNotFound, "quiz_not_found", false},
		{"unknown module", "/api/coverage/" + f.quizID.String() + "/modules/ghost", http.StatusNotFound, "module_not_found", false},
		{"module without content", "/api/coverage/" + f.quizID.String() + "/modules/empty", http.StatusUnprocessableEntity, "no_content", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.get(t, tt.path, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
			e := decodeError(t, rec)
			if e.Code != tt.wantCode || e.Retryable != tt.retryable {
				t.Errorf("error = %+v", e)
			}
		})
	}
}

func TestEmbeddingFailureRetryable(t *testing.T) {
	f := newFixture(t, Config{})
	f.emb.err = errors.New("connection refused")

	rec := f.get(t, "/api/coverage/"+f.quizID.String()+"/modules/mod-1", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 (body %s)", rec.Code, rec.Body)
	}
	e := decodeError(t, rec)
	if e.Code != "embedding_unavailable" || !e.Retryable {
		t.Errorf("error = %+v, want retryable embedding_unavailable", e)
	}
}

func TestRequireToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sesame"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	f := newFixture(t, Config{TokenHash: hash})
	path := "/api/coverage/" + f.quizID.String() + "/modules"

	if rec := f.get(t, path, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}
	wrong := http.Header{"Authorization": []string{"Bearer wrong"}}
	if rec := f.get(t, path, wrong); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", rec.Code)
	}
	right := http.Header{"Authorization": []string{"Bearer sesame"}}
	if rec := f.get(t, path, right); rec.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", rec.Code)
	}
	// Health stays open regardless of auth configuration.
	if rec := f.get(t, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz: status = %d, want 200", rec.Code)
	}
}
