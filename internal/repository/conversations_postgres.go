package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/remindhealth/journal-api/internal/domain"
)

type PostgresConversationsRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresConversationsRepository(ctx context.Context, databaseURL string) (*PostgresConversationsRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	return &PostgresConversationsRepository{pool: pool}, nil
}

func (r *PostgresConversationsRepository) Close() {
	r.pool.Close()
}

func (r *PostgresConversationsRepository) Create(ctx context.Context, conversation *domain.Conversation) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO conversations (
			id,
			user_id,
			title,
			audio_file_ref,
			audio_format,
			audio_duration_seconds,
			transcription_text,
			transcription_language,
			summary,
			processing_status,
			processing_error,
			recorded_at,
			processed_at,
			created_at,
			updated_at,
			is_deleted
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`,
		conversation.ID,
		conversation.UserID,
		conversation.Title,
		conversation.AudioFileRef,
		conversation.AudioFormat,
		conversation.AudioDurationSeconds,
		conversation.TranscriptionText,
		conversation.TranscriptionLanguage,
		conversation.Summary,
		string(conversation.ProcessingStatus),
		conversation.ProcessingError,
		conversation.RecordedAt,
		conversation.ProcessedAt,
		conversation.CreatedAt,
		conversation.UpdatedAt,
		conversation.IsDeleted,
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

const conversationColumns = `
	id, user_id, title, audio_file_ref, audio_format, audio_duration_seconds,
	transcription_text, transcription_language, summary, processing_status,
	processing_error, recorded_at, processed_at, created_at, updated_at, is_deleted`

func (r *PostgresConversationsRepository) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE id = $1 AND NOT is_deleted
	`, id)
	return scanConversation(row)
}

func (r *PostgresConversationsRepository) GetWithDetails(ctx context.Context, id string) (*domain.Conversation, error) {
	conversation, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if conversation.Appointments, err = r.listAppointments(ctx, id); err != nil {
		return nil, err
	}
	if conversation.Tasks, err = r.listTasks(ctx, id); err != nil {
		return nil, err
	}
	if conversation.Notes, err = r.listNotes(ctx, id); err != nil {
		return nil, err
	}
	return conversation, nil
}

func (r *PostgresConversationsRepository) ListRecent(ctx context.Context, userID string, limit int) ([]domain.Conversation, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE user_id = $1 AND NOT is_deleted
		ORDER BY recorded_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Conversation, 0)
	for rows.Next() {
		conversation, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *conversation)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate conversations: %w", rows.Err())
	}
	return items, nil
}

func (r *PostgresConversationsRepository) SetStatus(ctx context.Context, id string, status domain.ProcessingStatus) error {
	return r.patch(ctx, `
		UPDATE conversations
		SET processing_status = $2, updated_at = $3
		WHERE id = $1
	`, id, string(status), time.Now().UTC())
}

func (r *PostgresConversationsRepository) SetFailed(ctx context.Context, id string, message string) error {
	return r.patch(ctx, `
		UPDATE conversations
		SET processing_status = $2, processing_error = $3, updated_at = $4
		WHERE id = $1
	`, id, string(domain.StatusFailed), message, time.Now().UTC())
}

func (r *PostgresConversationsRepository) SetTranscription(ctx context.Context, id string, text, language string) error {
	return r.patch(ctx, `
		UPDATE conversations
		SET transcription_text = $2, transcription_language = $3, processing_status = $4, updated_at = $5
		WHERE id = $1
	`, id, text, language, string(domain.StatusTranscribed), time.Now().UTC())
}

func (r *PostgresConversationsRepository) SetTranscriptionText(ctx context.Context, id string, text string) error {
	return r.patch(ctx, `
		UPDATE conversations
		SET transcription_text = $2, updated_at = $3
		WHERE id = $1
	`, id, text, time.Now().UTC())
}

// SetCompleted flips the conversation to Completed and inserts the
// extracted children inside a single transaction, so a crash or a
// failed insert never leaves a Completed conversation without its
// children (or vice versa).
func (r *PostgresConversationsRepository) SetCompleted(ctx context.Context, id string, update CompletionUpdate) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var command pgconn.CommandTag
	if update.CorrectedTranscript != "" {
		command, err = tx.Exec(ctx, `
			UPDATE conversations
			SET summary = $2, transcription_text = $3, processing_status = $4, processed_at = $5, updated_at = $6
			WHERE id = $1
		`, id, update.Summary, update.CorrectedTranscript, string(domain.StatusCompleted), update.ProcessedAt, time.Now().UTC())
	} else {
		command, err = tx.Exec(ctx, `
			UPDATE conversations
			SET summary = $2, processing_status = $3, processed_at = $4, updated_at = $5
			WHERE id = $1
		`, id, update.Summary, string(domain.StatusCompleted), update.ProcessedAt, time.Now().UTC())
	}
	if err != nil {
		return fmt.Errorf("complete conversation: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := insertExtractedItems(ctx, tx, id, update.Appointments, update.Tasks, update.Notes); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit completion: %w", err)
	}
	return nil
}

func insertExtractedItems(
	ctx context.Context,
	tx pgx.Tx,
	conversationID string,
	appointments []domain.ExtractedAppointment,
	tasks []domain.ExtractedTask,
	notes []domain.ExtractedNote,
) error {
	for _, appointment := range appointments {
		_, err := tx.Exec(ctx, `
			INSERT INTO extracted_appointments (
				id, conversation_id, title, description, location, appointment_at,
				duration_minutes, is_all_day, attendee_names, confidence_score,
				is_confirmed, is_added_to_calendar, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		`,
			appointment.ID, conversationID, appointment.Title, appointment.Description,
			appointment.Location, appointment.AppointmentAt, appointment.DurationMinutes,
			appointment.IsAllDay, appointment.AttendeeNames, appointment.ConfidenceScore,
			appointment.IsConfirmed, appointment.IsAddedToCalendar,
			appointment.CreatedAt, appointment.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert extracted appointment: %w", err)
		}
	}

	for _, task := range tasks {
		_, err := tx.Exec(ctx, `
			INSERT INTO extracted_tasks (
				id, conversation_id, title, description, due_date, priority, category,
				is_completed, completed_at, confidence_score, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		`,
			task.ID, conversationID, task.Title, task.Description, task.DueDate,
			string(task.Priority), task.Category, task.IsCompleted, task.CompletedAt,
			task.ConfidenceScore, task.CreatedAt, task.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert extracted task: %w", err)
		}
	}

	for _, note := range notes {
		_, err := tx.Exec(ctx, `
			INSERT INTO extracted_notes (
				id, conversation_id, note_type, title, content, category, tags,
				confidence_score, is_pinned, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`,
			note.ID, conversationID, string(note.NoteType), note.Title, note.Content,
			note.Category, note.Tags, note.ConfidenceScore, note.IsPinned,
			note.CreatedAt, note.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert extracted note: %w", err)
		}
	}
	return nil
}

func (r *PostgresConversationsRepository) SoftDelete(ctx context.Context, id string) error {
	return r.patch(ctx, `
		UPDATE conversations
		SET is_deleted = TRUE, updated_at = $2
		WHERE id = $1
	`, id, time.Now().UTC())
}

func (r *PostgresConversationsRepository) patch(ctx context.Context, query string, args ...any) error {
	command, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresConversationsRepository) listAppointments(ctx context.Context, conversationID string) ([]domain.ExtractedAppointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id, title, description, location, appointment_at,
			duration_minutes, is_all_day, attendee_names, confidence_score,
			is_confirmed, is_added_to_calendar, created_at, updated_at
		FROM extracted_appointments
		WHERE conversation_id = $1
		ORDER BY appointment_at
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list extracted appointments: %w", err)
	}
	defer rows.Close()

	items := make([]domain.ExtractedAppointment, 0)
	for rows.Next() {
		var item domain.ExtractedAppointment
		if err := rows.Scan(
			&item.ID, &item.ConversationID, &item.Title, &item.Description,
			&item.Location, &item.AppointmentAt, &item.DurationMinutes,
			&item.IsAllDay, &item.AttendeeNames, &item.ConfidenceScore,
			&item.IsConfirmed, &item.IsAddedToCalendar, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan extracted appointment: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *PostgresConversationsRepository) listTasks(ctx context.Context, conversationID string) ([]domain.ExtractedTask, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id, title, description, due_date, priority, category,
			is_completed, completed_at, confidence_score, created_at, updated_at
		FROM extracted_tasks
		WHERE conversation_id = $1
		ORDER BY created_at
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list extracted tasks: %w", err)
	}
	defer rows.Close()

	items := make([]domain.ExtractedTask, 0)
	for rows.Next() {
		var (
			item     domain.ExtractedTask
			priority string
		)
		if err := rows.Scan(
			&item.ID, &item.ConversationID, &item.Title, &item.Description,
			&item.DueDate, &priority, &item.Category, &item.IsCompleted,
			&item.CompletedAt, &item.ConfidenceScore, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan extracted task: %w", err)
		}
		item.Priority = domain.ParseTaskPriority(priority)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *PostgresConversationsRepository) listNotes(ctx context.Context, conversationID string) ([]domain.ExtractedNote, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id, note_type, title, content, category, tags,
			confidence_score, is_pinned, created_at, updated_at
		FROM extracted_notes
		WHERE conversation_id = $1
		ORDER BY created_at
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list extracted notes: %w", err)
	}
	defer rows.Close()

	items := make([]domain.ExtractedNote, 0)
	for rows.Next() {
		var (
			item     domain.ExtractedNote
			noteType string
		)
		if err := rows.Scan(
			&item.ID, &item.ConversationID, &noteType, &item.Title, &item.Content,
			&item.Category, &item.Tags, &item.ConfidenceScore, &item.IsPinned,
			&item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan extracted note: %w", err)
		}
		item.NoteType = domain.ParseNoteType(noteType)
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var (
		conversation domain.Conversation
		status       string
	)
	err := row.Scan(
		&conversation.ID,
		&conversation.UserID,
		&conversation.Title,
		&conversation.AudioFileRef,
		&conversation.AudioFormat,
		&conversation.AudioDurationSeconds,
		&conversation.TranscriptionText,
		&conversation.TranscriptionLanguage,
		&conversation.Summary,
		&status,
		&conversation.ProcessingError,
		&conversation.RecordedAt,
		&conversation.ProcessedAt,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
		&conversation.IsDeleted,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	conversation.ProcessingStatus = domain.ProcessingStatus(status)
	return &conversation, nil
}
