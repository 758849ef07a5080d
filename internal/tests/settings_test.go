package tests

import (
	"context"
	"errors"
	"testing"

	"safedrive/internal/repository"
	"safedrive/internal/service"
)

// ──────────────────────────────────────────────
// PRICING SETTINGS
// ──────────────────────────────────────────────

func TestPricing_DefaultsWhenStoreEmpty(t *testing.T) {
	t.Parallel()

	svc := service.NewSettingsService(NewMockSettingsRepository(), nil)

	pricing := svc.Pricing(context.Background())
	if pricing != service.DefaultPricing() {
		t.Errorf("expected default pricing, got %+v", pricing)
	}
}

func TestPricing_ReflectsStoredOverrides(t *testing.T) {
	t.Parallel()

	repo := NewMockSettingsRepository()
	svc := service.NewSettingsService(repo, nil)

	if err := svc.Set(context.Background(), service.SettingBaseFare, "300", "raised base fare"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Set(context.Background(), service.SettingRatePerKm, "75", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Set(context.Background(), service.SettingAutoCompletePayment, "false", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pricing := svc.Pricing(context.Background())
	if pricing.BaseFare != 300 {
		t.Errorf("expected base fare 300, got %f", pricing.BaseFare)
	}
	if pricing.RatePerKm != 75 {
		t.Errorf("expected rate 75, got %f", pricing.RatePerKm)
	}
	if pricing.AutoCompletePayment {
		t.Error("expected auto-complete payment disabled")
	}
	// Untouched keys keep their defaults.
	if pricing.AverageSpeedKmh != service.DefaultAverageSpeedKmh {
		t.Errorf("expected default speed, got %f", pricing.AverageSpeedKmh)
	}
}

func TestPricing_IgnoresUnparsableValues(t *testing.T) {
	t.Parallel()

	repo := NewMockSettingsRepository()
	svc := service.NewSettingsService(repo, nil)

	if err := svc.Set(context.Background(), service.SettingBaseFare, "banana", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Set(context.Background(), service.SettingRatePerKm, "-10", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pricing := svc.Pricing(context.Background())
	if pricing.BaseFare != service.DefaultBaseFare {
		t.Errorf("unparsable value must fall back to default, got %f", pricing.BaseFare)
	}
	if pricing.RatePerKm != service.DefaultRatePerKm {
		t.Errorf("non-positive rate must fall back to default, got %f", pricing.RatePerKm)
	}
}

func TestGetSetting_AbsentKeyIsNotFound(t *testing.T) {
	t.Parallel()

	svc := service.NewSettingsService(NewMockSettingsRepository(), nil)

	_, err := svc.Get(context.Background(), "NO_SUCH_KEY")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
