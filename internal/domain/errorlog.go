package domain

import (
	"fmt"
	"strings"
	"time"
)

// ErrorType classifies a recorded error.
type ErrorType string

const (
	ErrorTypeCrawl      ErrorType = "CRAWL"
	ErrorTypeParse      ErrorType = "PARSE"
	ErrorTypeUpload     ErrorType = "UPLOAD"
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeOther      ErrorType = "OTHER"
)

func (t ErrorType) String() string { return string(t) }

func (t ErrorType) IsValid() bool {
	switch t {
	case ErrorTypeCrawl, ErrorTypeParse, ErrorTypeUpload, ErrorTypeValidation, ErrorTypeOther:
		return true
	}
	return false
}

func ParseErrorTypeFromString(s string) (ErrorType, error) {
	t := ErrorType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: invalid error type %q", ErrValidation, s)
	}
	return t, nil
}

// ErrorLog is one recorded error against a site, optionally linked to a
// batch. The table is range-partitioned by occurred_at so time-bounded
// reporting queries stay cheap as the log grows.
type ErrorLog struct {
	ID         string    `gorm:"type:uuid;primaryKey"`
	SiteID     string    `gorm:"type:uuid;not null"`
	BatchID    *string   `gorm:"type:uuid"`
	Type       ErrorType `gorm:"type:varchar(20);not null"`
	Message    string    `gorm:"type:text;not null"`
	Metadata   *string   `gorm:"type:jsonb"`
	OccurredAt time.Time `gorm:"not null;primaryKey"`
}

func (e *ErrorLog) Validate() error {
	if strings.TrimSpace(e.SiteID) == "" {
		return fmt.Errorf("%w: site id is required", ErrValidation)
	}
	if !e.Type.IsValid() {
		return fmt.Errorf("%w: invalid error type %q", ErrValidation, e.Type)
	}
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	return nil
}
