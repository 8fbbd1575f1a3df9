package domain

import (
	"fmt"
	"strings"
	"time"
)

// BatchStatus represents the lifecycle state of an upload batch.
type BatchStatus string

const (
	BatchStatusInProgress   BatchStatus = "IN_PROGRESS"
	BatchStatusCompleted    BatchStatus = "COMPLETED"
	BatchStatusNotCompleted BatchStatus = "NOT_COMPLETED"
	BatchStatusFailed       BatchStatus = "FAILED"
)

func (s BatchStatus) String() string { return string(s) }

func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusInProgress, BatchStatusCompleted, BatchStatusNotCompleted, BatchStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no transition may leave this state.
func (s BatchStatus) IsTerminal() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusNotCompleted, BatchStatusFailed:
		return true
	}
	return false
}

func ParseBatchStatusFromString(s string) (BatchStatus, error) {
	st := BatchStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid batch status %q", ErrValidation, s)
	}
	return st, nil
}

// Batch is one upload session for a site. A site has at most one batch in
// IN_PROGRESS at any instant; the batches table enforces that with a partial
// unique index on (site_id) WHERE status = 'IN_PROGRESS'.
type Batch struct {
	ID                 string      `gorm:"type:uuid;primaryKey"`
	AccountID          string      `gorm:"type:uuid;not null"`
	SiteID             string      `gorm:"type:uuid;not null"`
	Status             BatchStatus `gorm:"type:varchar(20);not null"`
	StoragePathPrefix  string      `gorm:"type:varchar(512);not null"`
	UploadedFilesCount int64       `gorm:"not null;default:0"`
	TotalSize          int64       `gorm:"not null;default:0"`
	HasErrors          bool        `gorm:"not null;default:false"`
	FailureReason      *string     `gorm:"type:text"`
	StartedAt          time.Time   `gorm:"not null"`
	CompletedAt        *time.Time
}

// StoragePrefix derives the object storage prefix for a batch started at the
// given instant: {accountId}/{site domain}/{YYYY-MM-DD}/{HH-MM}/.
func StoragePrefix(accountID, siteDomain string, startedAt time.Time) string {
	utc := startedAt.UTC()
	return fmt.Sprintf("%s/%s/%s/%s/",
		accountID,
		siteDomain,
		utc.Format("2006-01-02"),
		utc.Format("15-04"),
	)
}
