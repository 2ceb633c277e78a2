package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"medquiz-service/internal/domain"
)

// DocumentStore keeps each custom quiz as one JSONB document in
// custom_quizzes. Participants are appended in a single UPDATE so concurrent
// attempts never overwrite each other.
type DocumentStore struct {
	pool *pgxpool.Pool
}

func NewDocumentStore(pool *pgxpool.Pool) *DocumentStore {
	return &DocumentStore{pool: pool}
}

func (s *DocumentStore) Insert(ctx context.Context, quiz domain.CustomQuiz) (string, error) {
	quiz.ID = uuid.NewString()
	if quiz.Participants == nil {
		quiz.Participants = []domain.Participant{}
	}
	raw, err := json.Marshal(quiz)
	if err != nil {
		return "", fmt.Errorf("marshal quiz: %w", err)
	}

	var creator *string
	if quiz.CreatorID != "" {
		creator = &quiz.CreatorID
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO custom_quizzes (id, creator_id, data, created_at) VALUES ($1, $2, $3::jsonb, $4)`,
		quiz.ID, creator, string(raw), quiz.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("insert quiz: %w", err)
	}
	return quiz.ID, nil
}

func (s *DocumentStore) Get(ctx context.Context, id string) (domain.CustomQuiz, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM custom_quizzes WHERE id=$1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CustomQuiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.CustomQuiz{}, fmt.Errorf("load quiz: %w", err)
	}
	return decodeQuiz(raw)
}

func (s *DocumentStore) AppendParticipant(ctx context.Context, id string, p domain.Participant) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal participant: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE custom_quizzes
		SET data = jsonb_set(data, '{participants}',
			COALESCE(data->'participants', '[]'::jsonb) || jsonb_build_array($2::jsonb))
		WHERE id=$1`, id, string(raw))
	if err != nil {
		return fmt.Errorf("append participant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (s *DocumentStore) ListByCreator(ctx context.Context, creatorID string) ([]domain.CustomQuiz, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM custom_quizzes WHERE creator_id=$1 ORDER BY created_at DESC`, creatorID)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	quizzes := []domain.CustomQuiz{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		quiz, err := decodeQuiz(raw)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, quiz)
	}
	return quizzes, rows.Err()
}

func decodeQuiz(raw []byte) (domain.CustomQuiz, error) {
	var quiz domain.CustomQuiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.CustomQuiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	if quiz.Participants == nil {
		quiz.Participants = []domain.Participant{}
	}
	return quiz, nil
}
