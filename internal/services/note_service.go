package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Nifargo/todo-app-server/internal/models"
)

type noteServiceImpl struct {
	logger zerolog.Logger
	pgPool *pgxpool.Pool
}

func NewNoteService(
	logger zerolog.Logger,
	pgPool *pgxpool.Pool,
) NoteService {
	return &noteServiceImpl{
		logger: logger,
		pgPool: pgPool,
	}
}

const noteTitleMaxLength = 80

// deriveNoteTitle takes the first non-empty line of the content,
// truncated to a sane length. Empty content yields "Untitled".
func deriveNoteTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		runes := []rune(line)
		if len(runes) > noteTitleMaxLength {
			return string(runes[:noteTitleMaxLength])
		}
		return line
	}
	return "Untitled"
}

func (s *noteServiceImpl) CreateNote(ctx context.Context, params CreateNoteParams) (*models.Note, error) {
	noteUUID, err := uuid.NewV7()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate note uuid")
		return nil, err
	}

	now := time.Now()
	note := &models.Note{
		ID:        noteUUID.String(),
		UserID:    params.UserID,
		Title:     deriveNoteTitle(params.Content),
		Content:   params.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	const insertNoteQuery = `
INSERT INTO notes (id,
                   user_id,
                   title,
                   content,
                   collaborators,
                   created_at,
                   updated_at)
VALUES ($1, $2, $3, $4, '{}', $5, $6)
`
	_, err = s.pgPool.Exec(
		ctx,
		insertNoteQuery,
		note.ID,
		note.UserID,
		note.Title,
		note.Content,
		note.CreatedAt,
		note.UpdatedAt,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to insert note")
		return nil, err
	}

	s.logger.Info().
		Str("note_id", note.ID).
		Str("user_id", note.UserID).
		Msg("created note")
	return note, nil
}

func (s *noteServiceImpl) GetNotesByUserID(ctx context.Context, userID string) ([]models.Note, error) {
	// Shared notes are matched through the owner's collaborator list,
	// which stores emails.
	const selectNotesQuery = `
SELECT n.id,
       n.user_id,
       n.title,
       n.content,
       n.collaborators,
       n.created_at,
       n.updated_at
FROM notes n
WHERE n.user_id = $1
   OR EXISTS (SELECT 1
              FROM users u
              WHERE u.id = $1 AND u.email = ANY (n.collaborators))
ORDER BY n.updated_at DESC
`
	rows, err := s.pgPool.Query(
		ctx,
		selectNotesQuery,
		userID,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to select notes")
		return nil, err
	}
	defer rows.Close()

	notes := make([]models.Note, 0, 16)
	for rows.Next() {
		var note models.Note
		err = rows.Scan(
			&note.ID,
			&note.UserID,
			&note.Title,
			&note.Content,
			&note.Collaborators,
			&note.CreatedAt,
			&note.UpdatedAt,
		)
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to scan note")
			return nil, err
		}
		notes = append(notes, note)
	}

	err = rows.Err()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to iterate over rows")
		return nil, err
	}
	s.logger.Debug().
		Int("count", len(notes)).
		Str("user_id", userID).
		Msg("selected notes")
	return notes, nil
}

func (s *noteServiceImpl) UpdateNote(ctx context.Context, params UpdateNoteParams) (*models.Note, error) {
	note := &models.Note{
		ID:        params.ID,
		Title:     deriveNoteTitle(params.Content),
		Content:   params.Content,
		UpdatedAt: time.Now(),
	}

	const updateNoteQuery = `
UPDATE notes
SET title = $1,
    content = $2,
    updated_at = $3
WHERE id = $4
  AND (user_id = $5
       OR EXISTS (SELECT 1
                  FROM users u
                  WHERE u.id = $5 AND u.email = ANY (notes.collaborators)))
RETURNING user_id, collaborators, created_at
`
	err := s.pgPool.QueryRow(
		ctx,
		updateNoteQuery,
		note.Title,
		note.Content,
		note.UpdatedAt,
		note.ID,
		params.UserID,
	).Scan(
		&note.UserID,
		&note.Collaborators,
		&note.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error().
				Str("note_id", note.ID).
				Str("user_id", params.UserID).
				Msg("note not found")
			return nil, ErrNoteNotFound
		}

		s.logger.Error().
			Err(err).
			Str("note_id", note.ID).
			Msg("failed to update note")
		return nil, err
	}

	s.logger.Info().
		Str("note_id", note.ID).
		Msg("updated note")
	return note, nil
}

func (s *noteServiceImpl) DeleteNote(ctx context.Context, userID, noteID string) error {
	const deleteNoteQuery = `
DELETE FROM notes
WHERE id = $1 AND user_id = $2
`
	tag, err := s.pgPool.Exec(
		ctx,
		deleteNoteQuery,
		noteID,
		userID,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("note_id", noteID).
			Msg("failed to delete note")
		return err
	}
	if tag.RowsAffected() == 0 {
		s.logger.Error().
			Str("note_id", noteID).
			Str("user_id", userID).
			Msg("note not found")
		return ErrNoteNotFound
	}

	s.logger.Info().
		Str("note_id", noteID).
		Str("user_id", userID).
		Msg("deleted note")
	return nil
}

func (s *noteServiceImpl) ShareNote(ctx context.Context, userID, noteID, email string) (*models.Note, error) {
	const selectUserByEmailQuery = `
SELECT id
FROM users
WHERE email = $1
`
	var collaboratorID string
	err := s.pgPool.QueryRow(
		ctx,
		selectUserByEmailQuery,
		email,
	).Scan(&collaboratorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error().
				Str("email", email).
				Msg("collaborator not found")
			return nil, ErrUserNotFound
		}

		s.logger.Error().
			Err(err).
			Str("email", email).
			Msg("failed to select user by email")
		return nil, err
	}

	note := &models.Note{
		ID:        noteID,
		UserID:    userID,
		UpdatedAt: time.Now(),
	}

	// array_append only when absent keeps sharing idempotent.
	const shareNoteQuery = `
UPDATE notes
SET collaborators = CASE
        WHEN $1 = ANY (collaborators) THEN collaborators
        ELSE array_append(collaborators, $1)
    END,
    updated_at = $2
WHERE id = $3 AND user_id = $4
RETURNING title, content, collaborators, created_at
`
	err = s.pgPool.QueryRow(
		ctx,
		shareNoteQuery,
		email,
		note.UpdatedAt,
		note.ID,
		note.UserID,
	).Scan(
		&note.Title,
		&note.Content,
		&note.Collaborators,
		&note.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error().
				Str("note_id", noteID).
				Str("user_id", userID).
				Msg("note not found")
			return nil, ErrNoteNotFound
		}

		s.logger.Error().
			Err(err).
			Str("note_id", noteID).
			Msg("failed to share note")
		return nil, err
	}

	s.logger.Info().
		Str("note_id", noteID).
		Str("email", email).
		Msg("shared note")
	return note, nil
}
