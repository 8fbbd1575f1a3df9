package handler

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/siteharvest/ingest-engine/internal/domain"
	"github.com/siteharvest/ingest-engine/internal/repository"
	"github.com/siteharvest/ingest-engine/internal/service"
)

const exportLimit = 10000

type ErrorLogService interface {
	Record(ctx context.Context, in service.RecordInput) (*domain.ErrorLog, error)
	List(ctx context.Context, params repository.ErrorListParams) ([]domain.ErrorLog, int64, error)
	Export(ctx context.Context, params repository.ErrorListParams, limit int) ([]domain.ErrorLog, error)
}

type ErrorLogHandler struct {
	errorLogs ErrorLogService
}

func NewErrorLogHandler(errorLogs ErrorLogService) (*ErrorLogHandler, error) {
	if errorLogs == nil {
		return nil, fmt.Errorf("error log service is required")
	}
	return &ErrorLogHandler{errorLogs: errorLogs}, nil
}

func RegisterErrorLogRoutes(router fiber.Router, identity fiber.Handler, errorLogs ErrorLogService) error {
	h, err := NewErrorLogHandler(errorLogs)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1", identity)
	v1.Post("/errors", h.RecordError)
	v1.Get("/errors", h.ListErrors)
	v1.Get("/errors/export", h.ExportErrors)

	return nil
}

type recordErrorRequest struct {
	BatchID  *string `json:"batchId"`
	Type     string  `json:"type"`
	Message  string  `json:"message"`
	Metadata *string `json:"metadata"`
}

type errorLogResponse struct {
	ID         string    `json:"id"`
	SiteID     string    `json:"siteId"`
	BatchID    *string   `json:"batchId,omitempty"`
	Type       string    `json:"type"`
	Message    string    `json:"message"`
	Metadata   *string   `json:"metadata,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type listErrorsResponse struct {
	Data []errorLogResponse `json:"data"`
	Meta listMeta           `json:"meta"`
}

func (h *ErrorLogHandler) RecordError(c *fiber.Ctx) error {
	site, err := resolvedSite(c)
	if err != nil {
		return err
	}

	var req recordErrorRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	errorType, err := domain.ParseErrorTypeFromString(req.Type)
	if err != nil {
		return toHTTPError(err)
	}

	entry, err := h.errorLogs.Record(c.Context(), service.RecordInput{
		SiteID:   site.ID,
		BatchID:  req.BatchID,
		Type:     errorType,
		Message:  req.Message,
		Metadata: req.Metadata,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toErrorLogResponse(entry))
}

func (h *ErrorLogHandler) ListErrors(c *fiber.Ctx) error {
	site, err := resolvedSite(c)
	if err != nil {
		return err
	}

	params, err := parseErrorListParams(c, site.ID)
	if err != nil {
		return toHTTPError(err)
	}

	logs, total, err := h.errorLogs.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]errorLogResponse, 0, len(logs))
	for i := range logs {
		data = append(data, toErrorLogResponse(&logs[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listErrorsResponse{
		Data: data,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func (h *ErrorLogHandler) ExportErrors(c *fiber.Ctx) error {
	site, err := resolvedSite(c)
	if err != nil {
		return err
	}

	params, err := parseErrorListParams(c, site.ID)
	if err != nil {
		return toHTTPError(err)
	}

	logs, err := h.errorLogs.Export(c.Context(), params, exportLimit)
	if err != nil {
		return toHTTPError(err)
	}

	var sb strings.Builder
	writer := csv.NewWriter(&sb)
	if err := writer.Write([]string{"id", "site_id", "batch_id", "type", "message", "occurred_at"}); err != nil {
		return err
	}
	for i := range logs {
		entry := logs[i]
		batchID := ""
		if entry.BatchID != nil {
			batchID = *entry.BatchID
		}
		record := []string{
			entry.ID,
			entry.SiteID,
			batchID,
			entry.Type.String(),
			entry.Message,
			entry.OccurredAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=errors_%s.csv", time.Now().UTC().Format("2006-01-02")))
	return c.Status(fiber.StatusOK).SendString(sb.String())
}

func parseErrorListParams(c *fiber.Ctx, siteID string) (repository.ErrorListParams, error) {
	params := repository.ErrorListParams{
		SiteID:   siteID,
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ErrorListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ErrorListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawType := strings.TrimSpace(c.Query("type")); rawType != "" {
		errorType, err := domain.ParseErrorTypeFromString(rawType)
		if err != nil {
			return repository.ErrorListParams{}, err
		}
		params.Type = &errorType
	}

	if rawBatchID := strings.TrimSpace(c.Query("batchId")); rawBatchID != "" {
		params.BatchID = &rawBatchID
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.ErrorListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.ErrorListParams{}, err
	}
	params.From = from
	params.To = to

	return params, nil
}

func toErrorLogResponse(e *domain.ErrorLog) errorLogResponse {
	if e == nil {
		return errorLogResponse{}
	}

	return errorLogResponse{
		ID:         e.ID,
		SiteID:     e.SiteID,
		BatchID:    e.BatchID,
		Type:       e.Type.String(),
		Message:    e.Message,
		Metadata:   e.Metadata,
		OccurredAt: e.OccurredAt,
	}
}
