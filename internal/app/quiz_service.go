package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"medquiz-service/internal/adpolicy"
	"medquiz-service/internal/customquiz"
	"medquiz-service/internal/domain"
	"medquiz-service/internal/session"
	"medquiz-service/internal/setup"
)

// SessionRegistry abstracts where live sessions are tracked (in-memory, Redis, etc).
type SessionRegistry interface {
	Add(s *Session)
	Get(sessionID string) (*Session, bool)
	Remove(sessionID string)
}

// ConfigurationStore persists saved practice settings.
type ConfigurationStore interface {
	SaveConfiguration(ctx context.Context, cfg domain.SavedConfiguration) (domain.SavedConfiguration, error)
	ListConfigurations(ctx context.Context, userID string) ([]domain.SavedConfiguration, error)
}

// Config tunes session construction and result persistence.
type Config struct {
	DefaultDifficulty string
	// DefaultQuestionCount and DefaultTimeLimit (seconds) apply when
	// PracticeSettings gets no value; 0 keeps the field unlimited.
	DefaultQuestionCount int
	DefaultTimeLimit     int
	TickInterval         time.Duration

	// PersistAttempts bounds how often a result write is tried when the
	// store reports ErrPersistenceUnavailable.
	PersistAttempts int
	PersistBackoff  time.Duration

	AdPolicy           adpolicy.Policy
	NativeContainerRef string
	AdTimeout          time.Duration
	AdsEnabled         bool

	PublicBaseURL string
}

// DefaultConfig mirrors the defaults of the config file.
func DefaultConfig() Config {
	return Config{
		DefaultDifficulty: setup.DefaultDifficulty,
		TickInterval:      time.Second,
		PersistAttempts:   3,
		PersistBackoff:    200 * time.Millisecond,
		AdPolicy:          adpolicy.DefaultPolicy(),
		AdTimeout:         5 * time.Second,
		AdsEnabled:        true,
	}
}

// Deps are the collaborators of QuizService.
type Deps struct {
	Sessions  SessionRegistry
	Quizzes   *customquiz.Store
	Configs   ConfigurationStore
	Questions session.QuestionProvider
	Doubts    session.DoubtResolver
	// RandomSource builds the ad randomness for a new session; nil uses a
	// time-seeded generator.
	RandomSource func() adpolicy.Source
}

// QuizService contains the core quiz use cases.
type QuizService struct {
	sessions  SessionRegistry
	quizzes   *customquiz.Store
	configs   ConfigurationStore
	questions session.QuestionProvider
	doubts    session.DoubtResolver
	random    func() adpolicy.Source
	cfg       Config
	now       func() time.Time
}

func NewQuizService(deps Deps, cfg Config) *QuizService {
	if cfg.PersistAttempts <= 0 {
		cfg.PersistAttempts = 1
	}
	return &QuizService{
		sessions:  deps.Sessions,
		quizzes:   deps.Quizzes,
		configs:   deps.Configs,
		questions: deps.Questions,
		doubts:    deps.Doubts,
		random:    deps.RandomSource,
		cfg:       cfg,
		now:       time.Now,
	}
}

// PracticeSettings parses practice settings from a form or query. Fields the
// caller omitted take the configured defaults.
func (s *QuizService) PracticeSettings(raw setup.Raw) (domain.QuizSettings, error) {
	return setup.ParseWithDefaults(raw, setup.Defaults{
		Difficulty:       s.cfg.DefaultDifficulty,
		QuestionCount:    s.cfg.DefaultQuestionCount,
		TimeLimitSeconds: s.cfg.DefaultTimeLimit,
	})
}

// StartPractice opens a generated-question session and loads its first
// question. When the provider fails the registered session is still
// returned, in Loading, together with the error so the caller can reload.
func (s *QuizService) StartPractice(ctx context.Context, settings domain.QuizSettings, user domain.User, ads adpolicy.Platform) (*Session, error) {
	if settings.Difficulty == "" {
		settings.Difficulty = s.cfg.DefaultDifficulty
	}
	settings, err := setup.Normalize(settings)
	if err != nil {
		return nil, err
	}

	scope := setup.Scope(settings)
	sess := s.newSession(user, "", 0)
	sess.controller = session.New(session.Options{
		ID:                 sess.id,
		Kind:               domain.KindPractice,
		Title:              scope,
		QuestionCount:      settings.QuestionCount,
		SecondsPerQuestion: settings.TimeLimitSeconds,
		Source: session.GeneratedSource{
			Provider:   s.questions,
			Scope:      scope,
			Difficulty: settings.Difficulty,
		},
		Doubts:       s.doubts,
		Ads:          s.adEngine(),
		Dispatcher:   s.dispatcher(ads),
		TickInterval: s.cfg.TickInterval,
		OnComplete:   sess.markComplete,
	})
	s.sessions.Add(sess)
	glog.V(1).Infof("practice session %s started: scope=%q difficulty=%s user=%s", sess.id, scope, settings.Difficulty, user.ID)

	if err := sess.controller.Start(ctx); err != nil {
		return sess, err
	}
	return sess, nil
}

// StartAttempt opens an attempt at a custom quiz. Unauthenticated users get
// a guest id so their result can still be recorded.
func (s *QuizService) StartAttempt(ctx context.Context, quizID string, user domain.User, ads adpolicy.Platform) (*Session, error) {
	quiz, err := s.quizzes.Get(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if user.Anonymous || user.ID == "" {
		user = domain.User{ID: "guest-" + uuid.NewString(), Name: domain.AnonymousName, Anonymous: true}
	}

	sess := s.newSession(user, quiz.ID, len(quiz.Questions))
	sess.controller = session.New(session.Options{
		ID:                  sess.id,
		Kind:                domain.KindCustom,
		QuizID:              quiz.ID,
		Title:               quiz.Title,
		QuestionCount:       len(quiz.Questions),
		SecondsPerQuestion:  quiz.SecondsPerQuestion,
		AutoAdvanceOnExpiry: true,
		Source:              session.NewFixedSource(quiz.Questions),
		Doubts:              s.doubts,
		Ads:                 s.adEngine(),
		Dispatcher:          s.dispatcher(ads),
		TickInterval:        s.cfg.TickInterval,
		OnComplete: func(state domain.SessionState) {
			sess.markComplete(state)
			go s.autoSubmit(sess)
		},
	})
	s.sessions.Add(sess)
	glog.V(1).Infof("attempt %s started: quiz=%s user=%s", sess.id, quiz.ID, user.ID)

	if err := sess.controller.Start(ctx); err != nil {
		return sess, err
	}
	return sess, nil
}

// Session returns a live session.
func (s *QuizService) Session(sessionID string) (*Session, error) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

// CloseSession tears a session down and forgets it.
func (s *QuizService) CloseSession(sessionID string) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	sess.controller.Close()
	s.sessions.Remove(sessionID)
}

// SubmitResult records the participant entry of a completed custom attempt.
// Writes failing with ErrPersistenceUnavailable are retried; if every try
// fails the score stays in memory and SubmitResult may be called again.
func (s *QuizService) SubmitResult(ctx context.Context, sessionID string) (Result, error) {
	sess, err := s.Session(sessionID)
	if err != nil {
		return Result{}, err
	}
	return s.submit(ctx, sess)
}

func (s *QuizService) submit(ctx context.Context, sess *Session) (Result, error) {
	sessionID := sess.id
	if sess.controller.Kind() != domain.KindCustom {
		return Result{}, domain.ErrNothingToSubmit
	}

	sess.submitMu.Lock()
	defer sess.submitMu.Unlock()

	pending, ok := sess.pendingResult()
	if !ok {
		return Result{}, fmt.Errorf("%w: attempt not complete", domain.ErrInvalidPhase)
	}
	if pending.Recorded {
		return pending, nil
	}

	var (
		recorded domain.Participant
		err      error
	)
	for attempt := 1; ; attempt++ {
		recorded, err = s.quizzes.RecordAttempt(ctx, sess.quizID, pending.Participant)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrPersistenceUnavailable) || attempt >= s.cfg.PersistAttempts {
			glog.Errorf("attempt %s: record result for quiz %s: %v", sessionID, sess.quizID, err)
			return pending, err
		}
		glog.Warningf("attempt %s: record result (try %d/%d): %v", sessionID, attempt, s.cfg.PersistAttempts, err)
		select {
		case <-ctx.Done():
			return pending, ctx.Err()
		case <-time.After(s.cfg.PersistBackoff * time.Duration(attempt)):
		}
	}

	result := sess.recordResult(recorded)
	glog.Infof("attempt %s recorded: quiz=%s user=%s score=%d/%d", sessionID, sess.quizID, recorded.UserID, recorded.Score, result.Total)
	return result, nil
}

// autoSubmit holds the session itself so a result is still recorded when
// the client disconnects right after finishing.
func (s *QuizService) autoSubmit(sess *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := s.submit(ctx, sess); err != nil {
		glog.Warningf("attempt %s: automatic submit failed, result kept for retry: %v", sess.id, err)
	}
}

// CreateQuiz validates and stores a draft for user.
func (s *QuizService) CreateQuiz(ctx context.Context, draft domain.QuizDraft, user domain.User) (domain.CustomQuiz, string, error) {
	quiz, err := s.quizzes.Save(ctx, draft, user)
	if err != nil {
		return domain.CustomQuiz{}, "", err
	}
	glog.Infof("custom quiz %s created by %s with %d questions", quiz.ID, quiz.CreatorName, quiz.QuestionCount)
	return quiz, customquiz.ShareURL(s.cfg.PublicBaseURL, quiz.ID), nil
}

// GetQuiz loads a custom quiz.
func (s *QuizService) GetQuiz(ctx context.Context, quizID string) (domain.CustomQuiz, error) {
	return s.quizzes.Get(ctx, quizID)
}

// ListQuizzes returns the quizzes authored by creatorID.
func (s *QuizService) ListQuizzes(ctx context.Context, creatorID string) ([]domain.CustomQuiz, error) {
	return s.quizzes.ListByCreator(ctx, creatorID)
}

// Leaderboard ranks the participants of a quiz, flagging user's entries.
func (s *QuizService) Leaderboard(ctx context.Context, quizID string, user domain.User) (domain.Leaderboard, error) {
	current := user.ID
	if user.Anonymous {
		current = ""
	}
	return s.quizzes.Leaderboard(ctx, quizID, current)
}

// SaveConfiguration stores a settings preset for a signed-in user.
func (s *QuizService) SaveConfiguration(ctx context.Context, user domain.User, settings domain.QuizSettings) (domain.SavedConfiguration, error) {
	if user.Anonymous || user.ID == "" {
		return domain.SavedConfiguration{}, domain.ErrUnauthenticated
	}
	settings, err := setup.Normalize(settings)
	if err != nil {
		return domain.SavedConfiguration{}, err
	}
	saved, err := s.configs.SaveConfiguration(ctx, domain.SavedConfiguration{
		UserID:    user.ID,
		Settings:  settings,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return domain.SavedConfiguration{}, wrapPersistence(err)
	}
	return saved, nil
}

// ListConfigurations returns a user's presets.
func (s *QuizService) ListConfigurations(ctx context.Context, user domain.User) ([]domain.SavedConfiguration, error) {
	if user.Anonymous || user.ID == "" {
		return nil, domain.ErrUnauthenticated
	}
	configs, err := s.configs.ListConfigurations(ctx, user.ID)
	if err != nil {
		return nil, wrapPersistence(err)
	}
	return configs, nil
}

func (s *QuizService) newSession(user domain.User, quizID string, total int) *Session {
	return &Session{
		id:     uuid.NewString(),
		user:   user,
		quizID: quizID,
		total:  total,
		now:    s.now,
	}
}

func (s *QuizService) adEngine() *adpolicy.Engine {
	var src adpolicy.Source
	if s.random != nil {
		src = s.random()
	}
	return adpolicy.NewEngine(s.cfg.AdPolicy, src)
}

func (s *QuizService) dispatcher(platform adpolicy.Platform) *adpolicy.Dispatcher {
	if !s.cfg.AdsEnabled {
		return nil
	}
	if platform == nil {
		platform = adpolicy.LogPlatform{}
	}
	return adpolicy.NewDispatcher(platform, s.cfg.NativeContainerRef, s.cfg.AdTimeout)
}

func wrapPersistence(err error) error {
	if errors.Is(err, domain.ErrPersistenceUnavailable) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrPersistenceUnavailable, err)
}
