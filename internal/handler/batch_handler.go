package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/siteharvest/ingest-engine/internal/domain"
	"github.com/siteharvest/ingest-engine/internal/repository"
	"github.com/siteharvest/ingest-engine/internal/service"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

type BatchService interface {
	Start(ctx context.Context, siteID, accountID string) (*domain.Batch, error)
	Complete(ctx context.Context, batchID string) (*domain.Batch, error)
	Fail(ctx context.Context, batchID, reason string) (*domain.Batch, error)
	GetActive(ctx context.Context, siteID string) (*domain.Batch, error)
	GetByID(ctx context.Context, batchID string) (*domain.Batch, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Batch, int64, error)
	Reconcile(ctx context.Context, batchID string) (*domain.Batch, error)
}

type UploadService interface {
	AcceptFile(ctx context.Context, in service.AcceptFileInput) (*domain.UploadedFile, error)
	ListBatchFiles(ctx context.Context, batchID string) ([]domain.UploadedFile, error)
}

type BatchHandler struct {
	batches       BatchService
	uploads       UploadService
	maxUploadSize int64
}

func NewBatchHandler(batches BatchService, uploads UploadService, maxUploadSize int64) (*BatchHandler, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch service is required")
	}
	if uploads == nil {
		return nil, fmt.Errorf("upload service is required")
	}

	return &BatchHandler{
		batches:       batches,
		uploads:       uploads,
		maxUploadSize: maxUploadSize,
	}, nil
}

func RegisterBatchRoutes(router fiber.Router, identity fiber.Handler, batches BatchService, uploads UploadService, maxUploadSize int64) error {
	h, err := NewBatchHandler(batches, uploads, maxUploadSize)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1", identity)
	v1.Post("/batches", h.StartBatch)
	v1.Get("/batches/active", h.GetActiveBatch)
	v1.Get("/batches", h.ListBatches)
	v1.Get("/batches/:id", h.GetBatch)
	v1.Post("/batches/:id/complete", h.CompleteBatch)
	v1.Post("/batches/:id/fail", h.FailBatch)
	v1.Post("/batches/:id/reconcile", h.ReconcileBatch)
	v1.Get("/batches/:id/files", h.ListBatchFiles)
	v1.Post("/files", h.UploadFile)

	return nil
}

type failBatchRequest struct {
	Reason string `json:"reason"`
}

type batchResponse struct {
	ID                 string     `json:"id"`
	AccountID          string     `json:"accountId"`
	SiteID             string     `json:"siteId"`
	Status             string     `json:"status"`
	StoragePathPrefix  string     `json:"storagePathPrefix"`
	UploadedFilesCount int64      `json:"uploadedFilesCount"`
	TotalSize          int64      `json:"totalSize"`
	HasErrors          bool       `json:"hasErrors"`
	FailureReason      *string    `json:"failureReason,omitempty"`
	StartedAt          time.Time  `json:"startedAt"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
}

type uploadedFileResponse struct {
	ID               string    `json:"id"`
	BatchID          string    `json:"batchId"`
	OriginalFileName string    `json:"originalFileName"`
	StorageKey       string    `json:"storageKey"`
	FileSize         int64     `json:"fileSize"`
	ContentType      string    `json:"contentType,omitempty"`
	Checksum         string    `json:"checksum,omitempty"`
	UploadedAt       time.Time `json:"uploadedAt"`
}

type listBatchesResponse struct {
	Data []batchResponse `json:"data"`
	Meta listMeta        `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *BatchHandler) StartBatch(c *fiber.Ctx) error {
	site, err := resolvedSite(c)
	if err != nil {
		return err
	}

	batch, err := h.batches.Start(c.Context(), site.ID, site.AccountID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toBatchResponse(batch))
}

func (h *BatchHandler) GetActiveBatch(c *fiber.Ctx) error {
	site, err := resolvedSite(c)
	if err != nil {
		return err
	}

	batch, err := h.batches.GetActive(c.Context(), site.ID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toBatchResponse(batch))
}

func (h *BatchHandler) GetBatch(c *fiber.Ctx) error {
	site, err := resolvedSite(c)
	if err != nil {
		return err
	}

	batch, err := h.batches.GetByID(c.Context(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	if batch.SiteID != site.ID {
		return fiber.NewError(fiber.StatusNotFound, domain.ErrNotFound.Error())
	}

	return c.Status(fiber.StatusOK).JSON(toBatchResponse(batch))
}

func (h *BatchHandler) CompleteBatch(c *fiber.Ctx) error {
	site, err := resolvedSite(c)
	if err != nil {
		return err
	}
	if err := h.ensureBatchOwnership(c, site); err != nil {
		return err
	}

	batch, err := h.batches.Complete(c.Context(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toBatchResponse(batch))
}

func (h *BatchHandler) FailBatch(c *fiber.Ctx) error {
	site, err := resolvedSite(c)
	if err != nil {
		return err
	}
	if err := h.ensureBatchOwnership(c, site); err != nil {
		return err
	}

	var req failBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	batch, err := h.batches.Fail(c.Context(), strings.TrimSpace(c.Params("id")), req.Reason)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toBatchResponse(batch))
}

func (h *BatchHandler) ReconcileBatch(c *fiber.Ctx) error {
	site, err := resolvedSite(c)
	if err != nil {
		return err
	}
	if err := h.ensureBatchOwnership(c, site); err != nil {
		return err
	}

	batch, err := h.batches.Reconcile(c.Context(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toBatchResponse(batch))
}

func (h *BatchHandler) ListBatches(c *fiber.Ctx) error {
	site, err := resolvedSite(c)
	if err != nil {
		return err
	}

	params, err := parseBatchListParams(c, site.ID)
	if err != nil {
		return toHTTPError(err)
	}

	batches, total, err := h.batches.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]batchResponse, 0, len(batches))
	for i := range batches {
		data = append(data, toBatchResponse(&batches[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listBatchesResponse{
		Data: data,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func (h *BatchHandler) ListBatchFiles(c *fiber.Ctx) error {
	site, err := resolvedSite(c)
	if err != nil {
		return err
	}
	if err := h.ensureBatchOwnership(c, site); err != nil {
		return err
	}

	files, err := h.uploads.ListBatchFiles(c.Context(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]uploadedFileResponse, 0, len(files))
	for i := range files {
		data = append(data, toUploadedFileResponse(&files[i]))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": data})
}

func (h *BatchHandler) UploadFile(c *fiber.Ctx) error {
	site, err := resolvedSite(c)
	if err != nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart file field is required")
	}
	if h.maxUploadSize > 0 && fileHeader.Size > h.maxUploadSize {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds maximum size of %d bytes", h.maxUploadSize))
	}

	content, err := fileHeader.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "failed to open uploaded file")
	}
	defer content.Close()

	uploaded, err := h.uploads.AcceptFile(c.Context(), service.AcceptFileInput{
		SiteID:      site.ID,
		FileName:    fileHeader.Filename,
		Size:        fileHeader.Size,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Checksum:    strings.TrimSpace(c.FormValue("checksum")),
		Content:     content,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toUploadedFileResponse(uploaded))
}

func (h *BatchHandler) ensureBatchOwnership(c *fiber.Ctx, site *domain.Site) error {
	batch, err := h.batches.GetByID(c.Context(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	if batch.SiteID != site.ID {
		return fiber.NewError(fiber.StatusNotFound, domain.ErrNotFound.Error())
	}
	return nil
}

func parseBatchListParams(c *fiber.Ctx, siteID string) (repository.ListParams, error) {
	params := repository.ListParams{
		SiteID:   siteID,
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseBatchStatusFromString(rawStatus)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Status = &status
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.ListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.ListParams{}, err
	}
	params.From = from
	params.To = to

	return params, nil
}

func parseRFC3339Query(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

func toBatchResponse(b *domain.Batch) batchResponse {
	if b == nil {
		return batchResponse{}
	}

	return batchResponse{
		ID:                 b.ID,
		AccountID:          b.AccountID,
		SiteID:             b.SiteID,
		Status:             b.Status.String(),
		StoragePathPrefix:  b.StoragePathPrefix,
		UploadedFilesCount: b.UploadedFilesCount,
		TotalSize:          b.TotalSize,
		HasErrors:          b.HasErrors,
		FailureReason:      b.FailureReason,
		StartedAt:          b.StartedAt,
		CompletedAt:        b.CompletedAt,
	}
}

func toUploadedFileResponse(f *domain.UploadedFile) uploadedFileResponse {
	if f == nil {
		return uploadedFileResponse{}
	}

	return uploadedFileResponse{
		ID:               f.ID,
		BatchID:          f.BatchID,
		OriginalFileName: f.OriginalFileName,
		StorageKey:       f.StorageKey,
		FileSize:         f.FileSize,
		ContentType:      f.ContentType,
		Checksum:         f.Checksum,
		UploadedAt:       f.UploadedAt,
	}
}
