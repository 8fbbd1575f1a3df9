package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseErrorTypeFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    ErrorType
		wantErr bool
	}{
		{input: "CRAWL", want: ErrorTypeCrawl},
		{input: "parse", want: ErrorTypeParse},
		{input: " upload ", want: ErrorTypeUpload},
		{input: "VALIDATION", want: ErrorTypeValidation},
		{input: "OTHER", want: ErrorTypeOther},
		{input: "FATAL", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseErrorTypeFromString(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q, got %q", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tt.input, err)
		}
		if got != tt.want {
			t.Fatalf("got %q, want %q", got, tt.want)
		}
	}
}

func TestErrorLogValidate(t *testing.T) {
	t.Parallel()

	valid := ErrorLog{
		ID:         "e1",
		SiteID:     "site-1",
		Type:       ErrorTypeCrawl,
		Message:    "connection refused",
		OccurredAt: time.Now().UTC(),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(e *ErrorLog)
	}{
		{name: "missing site", mutate: func(e *ErrorLog) { e.SiteID = " " }},
		{name: "invalid type", mutate: func(e *ErrorLog) { e.Type = "PANIC" }},
		{name: "empty message", mutate: func(e *ErrorLog) { e.Message = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			entry := valid
			tt.mutate(&entry)
			if err := entry.Validate(); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestUploadedFileValidate(t *testing.T) {
	t.Parallel()

	valid := UploadedFile{
		ID:               "f1",
		BatchID:          "b1",
		OriginalFileName: "products.json",
		FileSize:         1024,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(f *UploadedFile)
	}{
		{name: "empty name", mutate: func(f *UploadedFile) { f.OriginalFileName = "  " }},
		{name: "slash in name", mutate: func(f *UploadedFile) { f.OriginalFileName = "a/b.json" }},
		{name: "backslash in name", mutate: func(f *UploadedFile) { f.OriginalFileName = `a\b.json` }},
		{name: "negative size", mutate: func(f *UploadedFile) { f.FileSize = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			file := valid
			tt.mutate(&file)
			if err := file.Validate(); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
