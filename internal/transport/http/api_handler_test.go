package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"medquiz-service/internal/domain"
)

var (
	userAsha = domain.User{ID: "u-asha", Name: "Asha"}
	userBala = domain.User{ID: "u-bala", Name: "Bala"}
)

func doJSON(t *testing.T, method, url, token string, body any, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp
}

func draftBody(secondOption string) map[string]any {
	return map[string]any{
		"title": "Neuroanatomy",
		"questions": []map[string]any{
			{"prompt": "Cranial nerve for lateral gaze?", "options": []string{"III", "IV", "VI", "VII"}, "correctLabel": "C", "explanation": "Abducens."},
			{"prompt": "Broca's area lobe?", "options": []string{"Frontal", secondOption, "Temporal", "Occipital"}, "correctLabel": "a", "explanation": "Inferior frontal gyrus."},
		},
	}
}

func TestCreateAndFetchQuiz(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token(t, userAsha)

	var created createQuizResponse
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/quizzes", token, draftBody("Parietal"), &created)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if created.ID == "" || created.SharePath != "/custom-quiz/"+created.ID {
		t.Fatalf("unexpected create response %+v", created)
	}

	var view map[string]any
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/quizzes/"+created.ID, "", nil, &view)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if view["creatorName"] != "Asha" || view["questionCount"].(float64) != 2 {
		t.Fatalf("unexpected quiz view %+v", view)
	}
	for _, q := range view["questions"].([]any) {
		question := q.(map[string]any)
		if _, leaked := question["correctLabel"]; leaked {
			t.Fatalf("answer key leaked: %+v", question)
		}
		if _, leaked := question["explanation"]; leaked {
			t.Fatalf("explanation leaked: %+v", question)
		}
	}

	var mine []map[string]any
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/users/"+userAsha.ID+"/quizzes", "", nil, &mine)
	if resp.StatusCode != http.StatusOK || len(mine) != 1 || mine[0]["id"] != created.ID {
		t.Fatalf("unexpected creator listing %d %+v", resp.StatusCode, mine)
	}
}

func TestCreateQuizValidationError(t *testing.T) {
	srv := newTestServer(t)

	var msg HTTPMessage
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/quizzes", "", draftBody("  "), &msg)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if msg.Type != "validation" || msg.Status != "400" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if len(msg.Errors) != 1 || msg.Errors[0].Kind != domain.EmptyOption || msg.Errors[0].Index != 1 {
		t.Fatalf("expected EmptyOption at index 1, got %+v", msg.Errors)
	}
}

func TestGetQuizNotFound(t *testing.T) {
	srv := newTestServer(t)
	var msg HTTPMessage
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/quizzes/missing", "", nil, &msg)
	if resp.StatusCode != http.StatusNotFound || msg.Type != "notfound" {
		t.Fatalf("expected 404 notfound, got %d %+v", resp.StatusCode, msg)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	srv := newTestServer(t)
	quiz := srv.createQuiz(t)
	ctx := context.Background()
	t0 := time.Date(2024, 12, 1, 9, 0, 0, 0, time.UTC)

	for _, p := range []domain.Participant{
		{UserID: userAsha.ID, DisplayName: userAsha.Name, Score: 1, CompletedAt: t0.Add(time.Minute)},
		{UserID: userBala.ID, DisplayName: userBala.Name, Score: 2, CompletedAt: t0.Add(2 * time.Minute)},
		{UserID: "u-cyrus", DisplayName: "Cyrus", Score: 2, CompletedAt: t0},
	} {
		if _, err := srv.quizzes.RecordAttempt(ctx, quiz.ID, p); err != nil {
			t.Fatalf("record attempt: %v", err)
		}
	}

	var lb domain.Leaderboard
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/quizzes/"+quiz.ID+"/leaderboard", srv.token(t, userBala), nil, &lb)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	order := []string{"u-cyrus", userBala.ID, userAsha.ID}
	for i, e := range lb.Entries {
		if e.UserID != order[i] || e.Rank != i+1 {
			t.Fatalf("entry %d: got %+v", i, e)
		}
		if e.IsCurrentUser != (e.UserID == userBala.ID) {
			t.Fatalf("wrong current-user flag on %+v", e)
		}
	}
	if lb.Entries[0].Percentage != 100 || lb.Entries[2].Percentage != 50 {
		t.Fatalf("unexpected percentages %+v", lb.Entries)
	}
}

func TestConfigurationsRequireIdentity(t *testing.T) {
	srv := newTestServer(t)
	body := map[string]any{"subject": "Anatomy", "chapter": "Thorax", "questionCount": "No Limit", "timeLimit": 30}

	var msg HTTPMessage
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/configurations", "", body, &msg)
	if resp.StatusCode != http.StatusUnauthorized || msg.Type != "unauthorized" {
		t.Fatalf("expected 401, got %d %+v", resp.StatusCode, msg)
	}

	token := srv.token(t, userAsha)
	var saved domain.SavedConfiguration
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/configurations", token, body, &saved)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if saved.Settings.QuestionCount != 0 || saved.Settings.TimeLimitSeconds != 30 || saved.Settings.Difficulty != "medium" {
		t.Fatalf("unexpected settings %+v", saved.Settings)
	}

	var list []domain.SavedConfiguration
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/configurations", token, nil, &list)
	if resp.StatusCode != http.StatusOK || len(list) != 1 || list[0].ID != saved.ID {
		t.Fatalf("unexpected list %d %+v", resp.StatusCode, list)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/configurations", token, map[string]any{"subject": "Anatomy", "chapter": "Thorax", "timeLimit": "soon"}, &msg)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad limit, got %d", resp.StatusCode)
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	srv := newTestServer(t)
	var msg HTTPMessage
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/configurations", "not-a-token", nil, &msg)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	var health healthResponse
	resp := doJSON(t, http.MethodGet, srv.URL+"/healthz", "", nil, &health)
	if resp.StatusCode != http.StatusOK || health.Status != "ok" {
		t.Fatalf("unexpected health %d %+v", resp.StatusCode, health)
	}
}
