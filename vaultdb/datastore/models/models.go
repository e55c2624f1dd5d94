package models

import (
	"database/sql"
	"time"
)

// UploadedFile represents a media file uploaded to the vault channel,
// identified by its title and episode number.
type UploadedFile struct {
	ID                int64
	AnimeTitle        string
	Episode           int
	UploadedChatID    int64
	UploaderUserID    int64
	UploadedMessageID int64
	VaultChatID       int64
	VaultMessageID    int64
	Language          string
	Quality           int
	Filename          string
	// Filesize may be unknown for records imported from before size tracking
	// was introduced.
	Filesize  sql.NullInt64
	CreatedAt time.Time
}
