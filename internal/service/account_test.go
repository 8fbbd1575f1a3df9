package service

import (
	"context"
	"errors"
	"testing"

	"github.com/siteharvest/ingest-engine/internal/domain"
	"github.com/siteharvest/ingest-engine/internal/event"
	"go.uber.org/zap"
)

func TestAccountDeactivateEmitsEvent(t *testing.T) {
	t.Parallel()

	sites := &fakeSiteRepo{
		deactivateAccountFn: func(ctx context.Context, accountID string) (bool, error) {
			return true, nil
		},
	}
	bus := &fakeBus{}

	svc, err := NewAccountService(sites, bus, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	if err := svc.Deactivate(context.Background(), "acc-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := bus.published()
	if len(events) != 1 || events[0].Type != domain.EventAccountDeactivated {
		t.Fatalf("expected one account.deactivated event, got %v", events)
	}
	if events[0].AccountID != "acc-1" {
		t.Fatalf("event carries account %q", events[0].AccountID)
	}
}

func TestAccountDeactivateAlreadyInactiveIsQuiet(t *testing.T) {
	t.Parallel()

	sites := &fakeSiteRepo{
		deactivateAccountFn: func(ctx context.Context, accountID string) (bool, error) {
			return false, nil
		},
	}
	bus := &fakeBus{}

	svc, err := NewAccountService(sites, bus, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	if err := svc.Deactivate(context.Background(), "acc-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bus.published()) != 0 {
		t.Fatal("no event must be published for a no-op deactivation")
	}
}

func TestAccountDeactivateRequiresID(t *testing.T) {
	t.Parallel()

	svc, err := NewAccountService(&fakeSiteRepo{}, &fakeBus{}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	if err := svc.Deactivate(context.Background(), "  "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSiteCascadeDeactivatesSites(t *testing.T) {
	t.Parallel()

	var cascaded string
	sites := &fakeSiteRepo{
		deactivateSitesByAccountFn: func(ctx context.Context, accountID string) (int64, error) {
			cascaded = accountID
			return 3, nil
		},
	}

	bus := event.NewBus(zap.NewNop())
	RegisterSiteCascade(bus, sites, zap.NewNop())

	bus.Publish(context.Background(), domain.Event{
		ID:        "e1",
		Type:      domain.EventAccountDeactivated,
		AccountID: "acc-1",
	})

	if cascaded != "acc-1" {
		t.Fatalf("expected cascade for acc-1, got %q", cascaded)
	}
}
