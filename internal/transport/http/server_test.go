package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"medquiz-service/internal/adpolicy"
	"medquiz-service/internal/app"
	"medquiz-service/internal/customquiz"
	"medquiz-service/internal/domain"
	"medquiz-service/internal/identity"
	"medquiz-service/internal/infra/memory"
	"medquiz-service/internal/session"
)

const testSecret = "transport-test-secret"

type stubQuestions struct{}

func (stubQuestions) GenerateQuestion(_ context.Context, scope, _ string) (domain.Question, error) {
	return domain.Question{
		Prompt:       "Drug of choice for anaphylaxis?",
		Options:      []string{"Adrenaline", "Atropine", "Hydrocortisone", "Salbutamol"},
		CorrectLabel: domain.LabelA,
		Explanation:  "IM adrenaline.",
		Subject:      scope,
	}, nil
}

type stubDoubts struct{}

func (stubDoubts) Resolve(_ context.Context, req session.DoubtRequest) (string, error) {
	return "Answer to: " + req.Doubt, nil
}

// neverSource keeps every probabilistic ad trigger off.
type neverSource struct{}

func (neverSource) Float64() float64 { return 0.999 }

type testServer struct {
	*httptest.Server
	service  *app.QuizService
	quizzes  *customquiz.Store
	verifier *identity.Verifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, func(*app.Config) {})
}

func newTestServerWith(t *testing.T, tune func(*app.Config)) *testServer {
	t.Helper()
	quizzes := customquiz.NewStore(memory.NewDocumentStore())
	cfg := app.DefaultConfig()
	cfg.PersistBackoff = time.Millisecond
	cfg.AdTimeout = time.Second
	tune(&cfg)

	service := app.NewQuizService(app.Deps{
		Sessions:     memory.NewSessionStore(),
		Quizzes:      quizzes,
		Configs:      memory.NewConfigurationStore(),
		Questions:    stubQuestions{},
		Doubts:       stubDoubts{},
		RandomSource: func() adpolicy.Source { return neverSource{} },
	}, cfg)

	verifier := identity.NewVerifier(testSecret, "")
	srv := httptest.NewServer(NewRouter(service, RouterOptions{Verifier: verifier}))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, service: service, quizzes: quizzes, verifier: verifier}
}

func (s *testServer) token(t *testing.T, u domain.User) string {
	t.Helper()
	tok, err := s.verifier.Issue(u, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (s *testServer) createQuiz(t *testing.T) domain.CustomQuiz {
	t.Helper()
	return s.createTimedQuiz(t, 0)
}

func (s *testServer) createTimedQuiz(t *testing.T, secondsPerQuestion int) domain.CustomQuiz {
	t.Helper()
	q := func(prompt string, correct domain.Label) domain.Question {
		return domain.Question{
			Prompt:       prompt,
			Options:      []string{"w", "x", "y", "z"},
			CorrectLabel: correct,
			Explanation:  "see notes",
		}
	}
	quiz, _, err := s.service.CreateQuiz(context.Background(), domain.QuizDraft{
		Title:              "Renal physiology",
		SecondsPerQuestion: secondsPerQuestion,
		Questions: []domain.Question{q("GFR marker?", domain.LabelA), q("Site of ADH action?", domain.LabelC)},
	}, domain.User{ID: "author", Name: "Dr. Rao"})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	return quiz
}
