package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/siteharvest/ingest-engine/internal/domain"
	"github.com/siteharvest/ingest-engine/internal/repository"
	"github.com/siteharvest/ingest-engine/internal/storage"
)

type fakeBatchRepo struct {
	createAdmittedFn           func(ctx context.Context, b *domain.Batch) error
	getByIDFn                  func(ctx context.Context, id string) (*domain.Batch, error)
	getActiveBySiteFn          func(ctx context.Context, siteID string) (*domain.Batch, error)
	transitionFromInProgressFn func(ctx context.Context, id string, to domain.BatchStatus, completedAt *time.Time, reason *string) (bool, error)
	markHasErrorsFn            func(ctx context.Context, id string) (bool, error)
	listExpiredFn              func(ctx context.Context, olderThan time.Time, limit int) ([]domain.Batch, error)
	listFn                     func(ctx context.Context, params repository.ListParams) ([]domain.Batch, int64, error)
	recomputeCountersFn        func(ctx context.Context, id string) (*domain.Batch, error)
}

func (f *fakeBatchRepo) CreateAdmitted(ctx context.Context, b *domain.Batch) error {
	return f.createAdmittedFn(ctx, b)
}

func (f *fakeBatchRepo) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	return f.getByIDFn(ctx, id)
}

func (f *fakeBatchRepo) GetActiveBySite(ctx context.Context, siteID string) (*domain.Batch, error) {
	return f.getActiveBySiteFn(ctx, siteID)
}

func (f *fakeBatchRepo) TransitionFromInProgress(ctx context.Context, id string, to domain.BatchStatus, completedAt *time.Time, reason *string) (bool, error) {
	return f.transitionFromInProgressFn(ctx, id, to, completedAt, reason)
}

func (f *fakeBatchRepo) MarkHasErrors(ctx context.Context, id string) (bool, error) {
	return f.markHasErrorsFn(ctx, id)
}

func (f *fakeBatchRepo) ListExpired(ctx context.Context, olderThan time.Time, limit int) ([]domain.Batch, error) {
	return f.listExpiredFn(ctx, olderThan, limit)
}

func (f *fakeBatchRepo) List(ctx context.Context, params repository.ListParams) ([]domain.Batch, int64, error) {
	return f.listFn(ctx, params)
}

func (f *fakeBatchRepo) RecomputeCounters(ctx context.Context, id string) (*domain.Batch, error) {
	return f.recomputeCountersFn(ctx, id)
}

type fakeSiteRepo struct {
	getByIDFn                  func(ctx context.Context, id string) (*domain.Site, error)
	getActiveByAPIKeyFn        func(ctx context.Context, apiKey string) (*domain.Site, error)
	getAccountFn               func(ctx context.Context, accountID string) (*domain.Account, error)
	deactivateAccountFn        func(ctx context.Context, accountID string) (bool, error)
	deactivateSitesByAccountFn func(ctx context.Context, accountID string) (int64, error)
}

func (f *fakeSiteRepo) GetByID(ctx context.Context, id string) (*domain.Site, error) {
	return f.getByIDFn(ctx, id)
}

func (f *fakeSiteRepo) GetActiveByAPIKey(ctx context.Context, apiKey string) (*domain.Site, error) {
	return f.getActiveByAPIKeyFn(ctx, apiKey)
}

func (f *fakeSiteRepo) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	return f.getAccountFn(ctx, accountID)
}

func (f *fakeSiteRepo) DeactivateAccount(ctx context.Context, accountID string) (bool, error) {
	return f.deactivateAccountFn(ctx, accountID)
}

func (f *fakeSiteRepo) DeactivateSitesByAccount(ctx context.Context, accountID string) (int64, error) {
	return f.deactivateSitesByAccountFn(ctx, accountID)
}

type fakeUploadRepo struct {
	recordFn      func(ctx context.Context, f *domain.UploadedFile) error
	getByNameFn   func(ctx context.Context, batchID, fileName string) (*domain.UploadedFile, error)
	listByBatchFn func(ctx context.Context, batchID string) ([]domain.UploadedFile, error)
}

func (f *fakeUploadRepo) Record(ctx context.Context, file *domain.UploadedFile) error {
	return f.recordFn(ctx, file)
}

func (f *fakeUploadRepo) GetByName(ctx context.Context, batchID, fileName string) (*domain.UploadedFile, error) {
	return f.getByNameFn(ctx, batchID, fileName)
}

func (f *fakeUploadRepo) ListByBatch(ctx context.Context, batchID string) ([]domain.UploadedFile, error) {
	return f.listByBatchFn(ctx, batchID)
}

type fakeErrorLogRepo struct {
	createFn  func(ctx context.Context, e *domain.ErrorLog) error
	listFn    func(ctx context.Context, params repository.ErrorListParams) ([]domain.ErrorLog, int64, error)
	listAllFn func(ctx context.Context, params repository.ErrorListParams, limit int) ([]domain.ErrorLog, error)
}

func (f *fakeErrorLogRepo) Create(ctx context.Context, e *domain.ErrorLog) error {
	return f.createFn(ctx, e)
}

func (f *fakeErrorLogRepo) List(ctx context.Context, params repository.ErrorListParams) ([]domain.ErrorLog, int64, error) {
	return f.listFn(ctx, params)
}

func (f *fakeErrorLogRepo) ListAll(ctx context.Context, params repository.ErrorListParams, limit int) ([]domain.ErrorLog, error) {
	return f.listAllFn(ctx, params, limit)
}

// fakeBus records published events in order.
type fakeBus struct {
	mu     sync.Mutex
	events []domain.Event
}

func (f *fakeBus) Publish(ctx context.Context, evt domain.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
}

func (f *fakeBus) published() []domain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Event, len(f.events))
	copy(out, f.events)
	return out
}

type fakeStorage struct {
	ensureBucketFn func(ctx context.Context) error
	putFn          func(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (storage.ObjectInfo, error)
	headFn         func(ctx context.Context, key string) (storage.ObjectInfo, error)
}

func (f *fakeStorage) EnsureBucket(ctx context.Context) error {
	if f.ensureBucketFn == nil {
		return nil
	}
	return f.ensureBucketFn(ctx)
}

func (f *fakeStorage) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (storage.ObjectInfo, error) {
	return f.putFn(ctx, key, reader, size, contentType)
}

func (f *fakeStorage) Head(ctx context.Context, key string) (storage.ObjectInfo, error) {
	return f.headFn(ctx, key)
}

type fakeLimiter struct {
	allowFn func(ctx context.Context, key string) (bool, error)
	waitFn  func(ctx context.Context, key string) error
}

func (f *fakeLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if f.allowFn == nil {
		return true, nil
	}
	return f.allowFn(ctx, key)
}

func (f *fakeLimiter) Wait(ctx context.Context, key string) error {
	if f.waitFn == nil {
		return nil
	}
	return f.waitFn(ctx, key)
}
