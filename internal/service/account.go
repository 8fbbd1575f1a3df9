package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/siteharvest/ingest-engine/internal/domain"
	"github.com/siteharvest/ingest-engine/internal/event"
	"github.com/siteharvest/ingest-engine/internal/repository"
	"go.uber.org/zap"
)

// AccountService handles the admin-facing account surface. Site deactivation
// cascades through the AccountDeactivated event, not by direct call, so the
// write path stays decoupled from its side effects.
type AccountService struct {
	sites  repository.SiteRepository
	bus    event.Publisher
	logger *zap.Logger
	now    func() time.Time
}

func NewAccountService(
	sites repository.SiteRepository,
	bus event.Publisher,
	logger *zap.Logger,
) (*AccountService, error) {
	if sites == nil {
		return nil, fmt.Errorf("site repository is required")
	}
	if bus == nil {
		return nil, fmt.Errorf("event bus is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AccountService{
		sites:  sites,
		bus:    bus,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Deactivate flips the account inactive and emits AccountDeactivated.
// Deactivating an already-inactive account is a no-op and emits nothing.
func (s *AccountService) Deactivate(ctx context.Context, accountID string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(accountID) == "" {
		return fmt.Errorf("%w: account id is required", domain.ErrValidation)
	}
	accountID = strings.TrimSpace(accountID)

	changed, err := s.sites.DeactivateAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	s.bus.Publish(ctx, domain.Event{
		ID:         uuid.NewString(),
		Type:       domain.EventAccountDeactivated,
		OccurredAt: s.now().UTC(),
		AccountID:  accountID,
	})

	s.logger.Info("account deactivated", zap.String("accountId", accountID))
	return nil
}

// RegisterSiteCascade subscribes the site deactivation cascade to the bus.
func RegisterSiteCascade(bus *event.Bus, sites repository.SiteRepository, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	bus.Subscribe(domain.EventAccountDeactivated, "site-cascade", func(ctx context.Context, evt domain.Event) error {
		count, err := sites.DeactivateSitesByAccount(ctx, evt.AccountID)
		if err != nil {
			return fmt.Errorf("failed to deactivate sites for account %s: %w", evt.AccountID, err)
		}

		logger.Info("sites deactivated after account deactivation",
			zap.String("accountId", evt.AccountID),
			zap.Int64("sites", count),
		)
		return nil
	})
}
