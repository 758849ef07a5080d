package service

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"safedrive/internal/domain"
	internalRedis "safedrive/internal/redis"
	"safedrive/internal/repository"
)

// Setting keys for the hot-reloadable pricing configuration.
const (
	SettingBaseFare            = "TRIP_BASE_FARE"
	SettingRatePerKm           = "TRIP_RATE_PER_KM"
	SettingAverageSpeed        = "TRIP_AVERAGE_SPEED"
	SettingEarthRadiusKm       = "EARTH_RADIUS_KM"
	SettingAutoCompletePayment = "AUTO_COMPLETE_PAYMENT"
)

// Defaults used when a setting is absent or the store is unreachable.
const (
	DefaultBaseFare        = 200.0 // KES
	DefaultRatePerKm       = 50.0  // KES per kilometer
	DefaultAverageSpeedKmh = 30.0
	DefaultEarthRadiusKm   = 6371.0
)

// Pricing is a consistent snapshot of the fare configuration.
type Pricing struct {
	BaseFare            float64
	RatePerKm           float64
	AverageSpeedKmh     float64
	EarthRadiusKm       float64
	AutoCompletePayment bool
}

// DefaultPricing returns the hardcoded fallback configuration.
func DefaultPricing() Pricing {
	return Pricing{
		BaseFare:            DefaultBaseFare,
		RatePerKm:           DefaultRatePerKm,
		AverageSpeedKmh:     DefaultAverageSpeedKmh,
		EarthRadiusKm:       DefaultEarthRadiusKm,
		AutoCompletePayment: true,
	}
}

// SettingsService reads pricing configuration through a Redis snapshot
// cache backed by the settings table. Admin writes invalidate the cache,
// so reconfiguration takes effect without a restart.
type SettingsService struct {
	settingsRepo repository.SettingsRepository
	cache        *internalRedis.SettingsCache
}

// NewSettingsService creates a new SettingsService. cache may be nil, in
// which case every read goes to the repository.
func NewSettingsService(settingsRepo repository.SettingsRepository, cache *internalRedis.SettingsCache) *SettingsService {
	return &SettingsService{
		settingsRepo: settingsRepo,
		cache:        cache,
	}
}

// Pricing returns the current pricing snapshot, falling back to defaults
// for absent or unreadable values.
func (s *SettingsService) Pricing(ctx context.Context) Pricing {
	if s.cache != nil {
		cached, err := s.cache.GetPricing(ctx)
		if err != nil {
			log.Printf("settings cache read failed: %v", err)
		} else if cached != nil {
			return Pricing{
				BaseFare:            cached.BaseFare,
				RatePerKm:           cached.RatePerKm,
				AverageSpeedKmh:     cached.AverageSpeedKmh,
				EarthRadiusKm:       cached.EarthRadiusKm,
				AutoCompletePayment: cached.AutoCompletePayment,
			}
		}
	}

	pricing := Pricing{
		BaseFare:            s.floatSetting(ctx, SettingBaseFare, DefaultBaseFare),
		RatePerKm:           s.floatSetting(ctx, SettingRatePerKm, DefaultRatePerKm),
		AverageSpeedKmh:     s.floatSetting(ctx, SettingAverageSpeed, DefaultAverageSpeedKmh),
		EarthRadiusKm:       s.floatSetting(ctx, SettingEarthRadiusKm, DefaultEarthRadiusKm),
		AutoCompletePayment: s.boolSetting(ctx, SettingAutoCompletePayment, true),
	}

	if s.cache != nil {
		_ = s.cache.SetPricing(ctx, &internalRedis.CachedPricing{
			BaseFare:            pricing.BaseFare,
			RatePerKm:           pricing.RatePerKm,
			AverageSpeedKmh:     pricing.AverageSpeedKmh,
			EarthRadiusKm:       pricing.EarthRadiusKm,
			AutoCompletePayment: pricing.AutoCompletePayment,
		})
	}

	return pricing
}

// Get retrieves a raw setting value. Returns repository.ErrNotFound for an
// absent key.
func (s *SettingsService) Get(ctx context.Context, key string) (*domain.Setting, error) {
	setting, err := s.settingsRepo.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if setting == nil {
		return nil, repository.ErrNotFound
	}
	return setting, nil
}

// Set creates or replaces a setting and invalidates the pricing cache.
func (s *SettingsService) Set(ctx context.Context, key, value, description string) error {
	setting := &domain.Setting{
		Key:         key,
		Value:       value,
		Description: description,
		UpdatedAt:   time.Now(),
	}

	if err := s.settingsRepo.Upsert(ctx, setting); err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.InvalidatePricing(ctx); err != nil {
			log.Printf("settings cache invalidation failed: %v", err)
		}
	}

	return nil
}

func (s *SettingsService) floatSetting(ctx context.Context, key string, fallback float64) float64 {
	setting, err := s.settingsRepo.Get(ctx, key)
	if err != nil {
		log.Printf("settings read failed for %s: %v", key, err)
		return fallback
	}
	if setting == nil {
		return fallback
	}

	value, err := strconv.ParseFloat(setting.Value, 64)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func (s *SettingsService) boolSetting(ctx context.Context, key string, fallback bool) bool {
	setting, err := s.settingsRepo.Get(ctx, key)
	if err != nil {
		log.Printf("settings read failed for %s: %v", key, err)
		return fallback
	}
	if setting == nil {
		return fallback
	}

	return strings.EqualFold(setting.Value, "true")
}
