package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"medquiz-service/internal/app"
	"medquiz-service/internal/customquiz"
	"medquiz-service/internal/domain"
	"medquiz-service/internal/identity"
	"medquiz-service/internal/setup"
)

const maxBodyBytes = 1 << 20

// APIHandler serves the REST endpoints for custom quizzes and saved
// configurations.
type APIHandler struct {
	service *app.QuizService
}

func NewAPIHandler(service *app.QuizService) *APIHandler {
	return &APIHandler{service: service}
}

func (h *APIHandler) SetupRoutes(r *mux.Router) {
	r.HandleFunc("/api/quizzes", h.CreateQuizFunc).Methods("POST")
	r.HandleFunc("/api/quizzes/{id}", h.GetQuizFunc).Methods("GET")
	r.HandleFunc("/api/quizzes/{id}/leaderboard", h.LeaderboardFunc).Methods("GET")
	r.HandleFunc("/api/users/{userId}/quizzes", h.ListQuizzesFunc).Methods("GET")
	r.HandleFunc("/api/configurations", h.SaveConfigurationFunc).Methods("POST")
	r.HandleFunc("/api/configurations", h.ListConfigurationsFunc).Methods("GET")
}

type createQuizResponse struct {
	ID        string `json:"id"`
	SharePath string `json:"sharePath"`
	ShareURL  string `json:"shareUrl"`
}

func (h *APIHandler) CreateQuizFunc(w http.ResponseWriter, r *http.Request) {
	var draft domain.QuizDraft
	if err := decodeBody(w, r, &draft); err != nil {
		ReturnHTTPMessage(w, r, http.StatusBadRequest, "badrequest", err.Error())
		return
	}

	quiz, shareURL, err := h.service.CreateQuiz(r.Context(), draft, identity.FromContext(r.Context()))
	if err != nil {
		ReturnError(w, r, err)
		return
	}
	ReturnJSON(w, http.StatusCreated, createQuizResponse{
		ID:        quiz.ID,
		SharePath: customquiz.SharePath(quiz.ID),
		ShareURL:  shareURL,
	})
}

func (h *APIHandler) GetQuizFunc(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	quiz, err := h.service.GetQuiz(r.Context(), id)
	if err != nil {
		ReturnError(w, r, err)
		return
	}
	ReturnJSON(w, http.StatusOK, newQuizView(quiz, true, customquiz.SharePath(quiz.ID)))
}

func (h *APIHandler) LeaderboardFunc(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	lb, err := h.service.Leaderboard(r.Context(), id, identity.FromContext(r.Context()))
	if err != nil {
		ReturnError(w, r, err)
		return
	}
	ReturnJSON(w, http.StatusOK, lb)
}

func (h *APIHandler) ListQuizzesFunc(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	quizzes, err := h.service.ListQuizzes(r.Context(), userID)
	if err != nil {
		ReturnError(w, r, err)
		return
	}
	views := make([]quizView, 0, len(quizzes))
	for _, q := range quizzes {
		views = append(views, newQuizView(q, false, customquiz.SharePath(q.ID)))
	}
	ReturnJSON(w, http.StatusOK, views)
}

// settingsRequest mirrors the setup form; limits may be numbers or "No Limit".
type settingsRequest struct {
	Subject       string     `json:"subject"`
	Chapter       string     `json:"chapter"`
	Topic         string     `json:"topic"`
	Difficulty    string     `json:"difficulty"`
	QuestionCount limitField `json:"questionCount"`
	TimeLimit     limitField `json:"timeLimit"`
}

type limitField string

func (f *limitField) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = limitField(s)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("limit must be a number or %q", setup.NoLimit)
	}
	*f = limitField(strconv.Itoa(n))
	return nil
}

func (h *APIHandler) SaveConfigurationFunc(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeBody(w, r, &req); err != nil {
		ReturnHTTPMessage(w, r, http.StatusBadRequest, "badrequest", err.Error())
		return
	}
	settings, err := setup.Parse(setup.Raw{
		Subject:       req.Subject,
		Chapter:       req.Chapter,
		Topic:         req.Topic,
		Difficulty:    req.Difficulty,
		QuestionCount: string(req.QuestionCount),
		TimeLimit:     string(req.TimeLimit),
	})
	if err != nil {
		ReturnError(w, r, err)
		return
	}

	saved, err := h.service.SaveConfiguration(r.Context(), identity.FromContext(r.Context()), settings)
	if err != nil {
		ReturnError(w, r, err)
		return
	}
	ReturnJSON(w, http.StatusCreated, saved)
}

func (h *APIHandler) ListConfigurationsFunc(w http.ResponseWriter, r *http.Request) {
	configs, err := h.service.ListConfigurations(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		ReturnError(w, r, err)
		return
	}
	ReturnJSON(w, http.StatusOK, configs)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
