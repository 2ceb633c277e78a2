package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"medquiz-service/internal/domain"
)

// DocumentStore keeps custom quizzes as JSON documents.
type DocumentStore struct {
	db *sql.DB
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

	var creator sql.NullString
	if quiz.CreatorID != "" {
		creator = sql.NullString{String: quiz.CreatorID, Valid: true}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO custom_quizzes (id, creator_id, data, created_at) VALUES (?, ?, ?, ?)`,
		quiz.ID, creator, string(raw), quiz.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("insert quiz: %w", err)
	}
	return quiz.ID, nil
}

func (s *DocumentStore) Get(ctx context.Context, id string) (domain.CustomQuiz, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM custom_quizzes WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CustomQuiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.CustomQuiz{}, fmt.Errorf("load quiz: %w", err)
	}
	return decodeQuiz(raw)
}

// AppendParticipant adds p to the participants array in one statement.
func (s *DocumentStore) AppendParticipant(ctx context.Context, id string, p domain.Participant) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal participant: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE custom_quizzes SET data = json_insert(data, '$.participants[#]', json(?)) WHERE id = ?`,
		string(raw), id)
	if err != nil {
		return fmt.Errorf("append participant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("append participant: %w", err)
	}
	if n == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (s *DocumentStore) ListByCreator(ctx context.Context, creatorID string) ([]domain.CustomQuiz, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM custom_quizzes WHERE creator_id = ? ORDER BY created_at DESC, rowid DESC`, creatorID)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	quizzes := []domain.CustomQuiz{}
	for rows.Next() {
		var raw string
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

func decodeQuiz(raw string) (domain.CustomQuiz, error) {
	var quiz domain.CustomQuiz
	if err := json.Unmarshal([]byte(raw), &quiz); err != nil {
		return domain.CustomQuiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	if quiz.Participants == nil {
		quiz.Participants = []domain.Participant{}
	}
	return quiz, nil
}
