package syncer

import "time"

// ProcessedFile is the ledger row marking a source document as ingested. The
// folder and file pair is the identity; reprocessing the same document is
// skipped by ledger lookup before any external call.
type ProcessedFile struct {
	FolderID    string    `gorm:"column:folder_id;primaryKey;size:190;not null"`
	FileID      string    `gorm:"column:file_id;primaryKey;size:190;not null"`
	Title       string    `gorm:"column:title;size:320"`
	PageID      string    `gorm:"column:page_id;size:190"`
	PageURL     string    `gorm:"column:page_url;size:512"`
	ProcessedAt time.Time `gorm:"column:processed_at;not null"`
}

// TableName exposes the table backing the processed-file ledger.
func (ProcessedFile) TableName() string {
	return "processed_files"
}
