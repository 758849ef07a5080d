package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// SettingsCache holds the pricing snapshot in Redis so every trip creation
// does not hit the settings table. Values change rarely; a short TTL plus
// explicit invalidation on admin writes keeps reconfiguration visible.
type SettingsCache struct {
	client *redis.Client
}

// NewSettingsCache creates a new SettingsCache.
func NewSettingsCache(client *redis.Client) *SettingsCache {
	return &SettingsCache{client: client}
}

// PricingTTL bounds how stale a cached pricing snapshot can get even if an
// invalidation is missed.
const PricingTTL = 30 * time.Second

const pricingCacheKey = "cache:settings:pricing"

// CachedPricing is the cached pricing snapshot.
type CachedPricing struct {
	BaseFare            float64 `json:"base_fare"`
	RatePerKm           float64 `json:"rate_per_km"`
	AverageSpeedKmh     float64 `json:"average_speed_kmh"`
	EarthRadiusKm       float64 `json:"earth_radius_km"`
	AutoCompletePayment bool    `json:"auto_complete_payment"`
}

// GetPricing retrieves the cached pricing snapshot. Returns nil on a miss.
func (s *SettingsCache) GetPricing(ctx context.Context) (*CachedPricing, error) {
	data, err := s.client.Get(ctx, pricingCacheKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var pricing CachedPricing
	if err := json.Unmarshal(data, &pricing); err != nil {
		return nil, err
	}
	return &pricing, nil
}

// SetPricing stores the pricing snapshot.
func (s *SettingsCache) SetPricing(ctx context.Context, pricing *CachedPricing) error {
	data, err := json.Marshal(pricing)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, pricingCacheKey, data, PricingTTL).Err()
}

// InvalidatePricing removes the pricing snapshot after an admin write.
func (s *SettingsCache) InvalidatePricing(ctx context.Context) error {
	return s.client.Del(ctx, pricingCacheKey).Err()
}
