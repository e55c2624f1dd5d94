package datastore

import (
	"context"
	"database/sql"
	"fmt"

	"gitlab.com/mediavault/vaultdb/vaultdb/datastore/metrics"
	"gitlab.com/mediavault/vaultdb/vaultdb/datastore/models"
)

// UploadedFileReader is the interface that defines read operations for an
// uploaded file store.
type UploadedFileReader interface {
	FindLatest(ctx context.Context, title string, episode int) (*models.UploadedFile, error)
	FindByTitle(ctx context.Context, title string, limit int) ([]*models.UploadedFile, error)
}

// UploadedFileWriter is the interface that defines write operations for an
// uploaded file store.
type UploadedFileWriter interface {
	Create(ctx context.Context, f *models.UploadedFile) error
}

// UploadedFileStore is the interface that an uploaded file store should
// conform to.
type UploadedFileStore interface {
	UploadedFileReader
	UploadedFileWriter
}

// uploadedFileStore is a concrete implementation of an uploaded file store.
type uploadedFileStore struct {
	// db can be either a *sql.DB or *sql.Tx
	db Queryer
}

// NewUploadedFileStore builds a new uploaded file store.
func NewUploadedFileStore(db Queryer) UploadedFileStore {
	return &uploadedFileStore{db: db}
}

func scanFullUploadedFile(row *sql.Row) (*models.UploadedFile, error) {
	f := new(models.UploadedFile)

	err := row.Scan(&f.ID, &f.AnimeTitle, &f.Episode, &f.UploadedChatID, &f.UploaderUserID,
		&f.UploadedMessageID, &f.VaultChatID, &f.VaultMessageID, &f.Language, &f.Quality,
		&f.Filename, &f.Filesize, &f.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning uploaded file: %w", err)
	}

	return f, nil
}

func scanFullUploadedFiles(rows *sql.Rows) ([]*models.UploadedFile, error) {
	ff := make([]*models.UploadedFile, 0)
	defer rows.Close()

	for rows.Next() {
		f := new(models.UploadedFile)

		err := rows.Scan(&f.ID, &f.AnimeTitle, &f.Episode, &f.UploadedChatID, &f.UploaderUserID,
			&f.UploadedMessageID, &f.VaultChatID, &f.VaultMessageID, &f.Language, &f.Quality,
			&f.Filename, &f.Filesize, &f.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning uploaded file: %w", err)
		}
		ff = append(ff, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scanning uploaded files: %w", err)
	}

	return ff, nil
}

// Create saves a new uploaded file record, filling in its id and creation
// timestamp.
func (s *uploadedFileStore) Create(ctx context.Context, f *models.UploadedFile) error {
	defer metrics.InstrumentQuery("uploaded_file_create")()
	q := `INSERT INTO uploaded_files (anime_title, episode, uploaded_chat_id, uploader_user_id,
			uploaded_message_id, vault_chat_id, vault_message_id, ep_lang, ep_qual, filename, filesize)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	row := s.db.QueryRowContext(ctx, q, f.AnimeTitle, f.Episode, f.UploadedChatID, f.UploaderUserID,
		f.UploadedMessageID, f.VaultChatID, f.VaultMessageID, f.Language, f.Quality, f.Filename, f.Filesize)
	if err := row.Scan(&f.ID, &f.CreatedAt); err != nil {
		return fmt.Errorf("creating uploaded file: %w", err)
	}

	return nil
}

// FindLatest finds the most recently uploaded file for a given title and
// episode. Returns nil when none exists.
func (s *uploadedFileStore) FindLatest(ctx context.Context, title string, episode int) (*models.UploadedFile, error) {
	defer metrics.InstrumentQuery("uploaded_file_find_latest")()
	q := `SELECT
			id,
			anime_title,
			episode,
			uploaded_chat_id,
			uploader_user_id,
			uploaded_message_id,
			vault_chat_id,
			vault_message_id,
			ep_lang,
			ep_qual,
			filename,
			filesize,
			created_at
		FROM
			uploaded_files
		WHERE
			anime_title = $1
			AND episode = $2
		ORDER BY
			created_at DESC
		LIMIT 1`

	row := s.db.QueryRowContext(ctx, q, title, episode)

	return scanFullUploadedFile(row)
}

// FindByTitle finds all uploaded files for a given title, ordered by episode
// number.
func (s *uploadedFileStore) FindByTitle(ctx context.Context, title string, limit int) ([]*models.UploadedFile, error) {
	defer metrics.InstrumentQuery("uploaded_file_find_by_title")()
	q := `SELECT
			id,
			anime_title,
			episode,
			uploaded_chat_id,
			uploader_user_id,
			uploaded_message_id,
			vault_chat_id,
			vault_message_id,
			ep_lang,
			ep_qual,
			filename,
			filesize,
			created_at
		FROM
			uploaded_files
		WHERE
			anime_title = $1
		ORDER BY
			episode ASC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, q, title, limit)
	if err != nil {
		return nil, fmt.Errorf("finding uploaded files: %w", err)
	}

	return scanFullUploadedFiles(rows)
}
