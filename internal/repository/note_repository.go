package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"notes-api/internal/apperr"
	"notes-api/internal/models"
	"notes-api/internal/query"
)

// NoteRepository scopes every lookup and write to the owner; a note that
// belongs to someone else is reported exactly like a missing one.
type NoteRepository interface {
	Create(ctx context.Context, ownerID int64, req *models.CreateNoteRequest) (*models.Note, error)
	GetByID(ctx context.Context, id, ownerID int64) (*models.Note, error)
	List(ctx context.Context, ownerID int64, q query.Query) ([]*models.Note, int, error)
	Update(ctx context.Context, id, ownerID int64, req *models.UpdateNoteRequest) (*models.Note, error)
	Delete(ctx context.Context, id, ownerID int64) error
	TogglePin(ctx context.Context, id, ownerID int64) (*models.Note, error)
	ListTags(ctx context.Context, ownerID int64) ([]string, error)
	ListByOwners(ctx context.Context, ownerIDs []int64) ([]*models.Note, error)
}

type noteRepository struct {
	db *sql.DB
}

func NewNoteRepository(db *sql.DB) NoteRepository {
	return &noteRepository{db: db}
}

const noteColumns = `n.id, n.user_id, n.title, n.description, n.priority, n.is_pinned, n.created_at, n.updated_at`

func errNoteNotFound() error {
	return apperr.NotFound("Note not found")
}

func scanNote(row interface{ Scan(...any) error }) (*models.Note, error) {
	note := &models.Note{Tags: []string{}}
	var priority string
	err := row.Scan(
		&note.ID, &note.Owner, &note.Title, &note.Description,
		&priority, &note.IsPinned, &note.CreatedAt, &note.UpdatedAt,
	)
	note.Priority = models.Priority(priority)
	return note, err
}

func (r *noteRepository) Create(ctx context.Context, ownerID int64, req *models.CreateNoteRequest) (*models.Note, error) {
	var id int64
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		ts := now()
		result, err := tx.ExecContext(ctx,
			`INSERT INTO notes (user_id, title, description, priority, is_pinned, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ownerID, req.Title, req.Description, string(req.Priority), req.IsPinned, ts, ts)
		if err != nil {
			return fmt.Errorf("failed to create note: %w", err)
		}

		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}

		return insertTags(ctx, tx, id, req.Tags)
	})
	if err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id, ownerID)
}

func (r *noteRepository) GetByID(ctx context.Context, id, ownerID int64) (*models.Note, error) {
	return getNote(ctx, r.db, id, ownerID)
}

func getNote(ctx context.Context, q queryer, id, ownerID int64) (*models.Note, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes n WHERE n.id = ? AND n.user_id = ?`, id, ownerID)
	note, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNoteNotFound()
		}
		return nil, fmt.Errorf("failed to get note: %w", err)
	}

	if err := loadTags(ctx, q, []*models.Note{note}); err != nil {
		return nil, err
	}
	return note, nil
}

// List returns one page of the owner's notes matching q and the total match count.
func (r *noteRepository) List(ctx context.Context, ownerID int64, q query.Query) ([]*models.Note, int, error) {
	whereClause, args := q.Filter.Where("n", ownerID)

	var total int
	countQuery := `SELECT COUNT(*) FROM notes n ` + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to get count: %w", err)
	}

	notes := []*models.Note{}
	if total == 0 {
		return notes, 0, nil
	}

	selectQuery := `SELECT ` + noteColumns + ` FROM notes n ` + whereClause + ` ` +
		q.Sort.OrderBy("n") + ` LIMIT ? OFFSET ?`
	args = append(args, q.Page.Limit, q.Page.Offset())

	notes, err := r.queryNotes(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	return notes, total, nil
}

func (r *noteRepository) queryNotes(ctx context.Context, query string, args ...any) ([]*models.Note, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get notes: %w", err)
	}
	defer rows.Close()

	notes := []*models.Note{}
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get notes: %w", err)
	}
	// tags are loaded after the cursor is closed; an in-memory SQLite pool has one connection
	rows.Close()

	if err := loadTags(ctx, r.db, notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// loadTags fills Tags for all notes with a single query.
func loadTags(ctx context.Context, q queryer, notes []*models.Note) error {
	if len(notes) == 0 {
		return nil
	}

	byID := make(map[int64]*models.Note, len(notes))
	args := make([]any, 0, len(notes))
	for _, note := range notes {
		byID[note.ID] = note
		args = append(args, note.ID)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT note_id, tag FROM note_tags WHERE note_id IN (`+placeholders(len(args))+`) ORDER BY note_id, tag`,
		args...)
	if err != nil {
		return fmt.Errorf("failed to get tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var noteID int64
		var tag string
		if err := rows.Scan(&noteID, &tag); err != nil {
			return fmt.Errorf("failed to scan tag: %w", err)
		}
		if note, ok := byID[noteID]; ok {
			note.Tags = append(note.Tags, tag)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to get tags: %w", err)
	}
	return nil
}

func insertTags(ctx context.Context, tx *sql.Tx, noteID int64, tags []string) error {
	if len(tags) == 0 {
		return nil
	}

	values := make([]string, 0, len(tags))
	args := make([]any, 0, 2*len(tags))
	for _, tag := range tags {
		values = append(values, "(?, ?)")
		args = append(args, noteID, tag)
	}

	query := `INSERT INTO note_tags (note_id, tag) VALUES ` + strings.Join(values, ", ")
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save tags: %w", err)
	}
	return nil
}

// Update applies a partial update; tags are replaced as a whole when provided.
func (r *noteRepository) Update(ctx context.Context, id, ownerID int64, req *models.UpdateNoteRequest) (*models.Note, error) {
	var note *models.Note
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM notes WHERE id = ? AND user_id = ?`, id, ownerID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to get note: %w", err)
		}
		if exists == 0 {
			return errNoteNotFound()
		}

		sets := []string{"updated_at = ?"}
		args := []any{now()}
		if req.Title != nil {
			sets = append(sets, "title = ?")
			args = append(args, *req.Title)
		}
		if req.Description != nil {
			sets = append(sets, "description = ?")
			args = append(args, *req.Description)
		}
		if req.Priority != nil {
			sets = append(sets, "priority = ?")
			args = append(args, string(*req.Priority))
		}
		if req.IsPinned != nil {
			sets = append(sets, "is_pinned = ?")
			args = append(args, *req.IsPinned)
		}
		args = append(args, id, ownerID)

		query := `UPDATE notes SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND user_id = ?`
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to update note: %w", err)
		}

		if req.Tags != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM note_tags WHERE note_id = ?`, id); err != nil {
				return fmt.Errorf("failed to clear tags: %w", err)
			}
			if err := insertTags(ctx, tx, id, *req.Tags); err != nil {
				return err
			}
		}

		note, err = getNote(ctx, tx, id, ownerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

func (r *noteRepository) Delete(ctx context.Context, id, ownerID int64) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM note_tags WHERE note_id IN (SELECT id FROM notes WHERE id = ? AND user_id = ?)`,
			id, ownerID); err != nil {
			return fmt.Errorf("failed to delete tags: %w", err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND user_id = ?`, id, ownerID)
		if err != nil {
			return fmt.Errorf("failed to delete note: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return errNoteNotFound()
		}
		return nil
	})
}

// TogglePin flips is_pinned. It reads then writes outside a transaction, so
// two concurrent toggles can both observe the same value; the last write wins.
func (r *noteRepository) TogglePin(ctx context.Context, id, ownerID int64) (*models.Note, error) {
	var pinned bool
	err := r.db.QueryRowContext(ctx,
		`SELECT is_pinned FROM notes WHERE id = ? AND user_id = ?`, id, ownerID).Scan(&pinned)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNoteNotFound()
		}
		return nil, fmt.Errorf("failed to get note: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE notes SET is_pinned = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		!pinned, now(), id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle pin: %w", err)
	}
	if rowsAffected, err := result.RowsAffected(); err == nil && rowsAffected == 0 {
		// deleted between the read and the write
		return nil, errNoteNotFound()
	}

	return r.GetByID(ctx, id, ownerID)
}

// ListTags returns the distinct tags used by the owner's notes, sorted.
func (r *noteRepository) ListTags(ctx context.Context, ownerID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT nt.tag FROM note_tags nt
         JOIN notes n ON n.id = nt.note_id
         WHERE n.user_id = ? ORDER BY nt.tag`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}
	return tags, nil
}

// ListByOwners returns every note of the given users, ordered by owner then id.
func (r *noteRepository) ListByOwners(ctx context.Context, ownerIDs []int64) ([]*models.Note, error) {
	if len(ownerIDs) == 0 {
		return []*models.Note{}, nil
	}

	args := make([]any, 0, len(ownerIDs))
	for _, id := range ownerIDs {
		args = append(args, id)
	}

	return r.queryNotes(ctx,
		`SELECT `+noteColumns+` FROM notes n WHERE n.user_id IN (`+placeholders(len(args))+`) ORDER BY n.user_id, n.id`,
		args...)
}
