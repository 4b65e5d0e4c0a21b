package org

// Feature names metered against plan limits.
const (
	FeatureUsers    = "users"
	FeatureProducts = "products"
	FeatureAPICalls = "api_calls"
	FeatureStorage  = "storage"
)

// Unlimited is the limit value meaning "no cap".
const Unlimited = 0

// PlanConfig describes a pricing tier. A limit of 0 means unlimited.
type PlanConfig struct {
	MaxUsers         int
	MaxProducts      int
	APICallsPerMonth int
	StorageGB        int
	RateLimitRPM     int
	PriceUSD         int
}

var plans = map[Plan]PlanConfig{
	PlanBasic: {
		MaxUsers:         5,
		MaxProducts:      100,
		APICallsPerMonth: 10000,
		StorageGB:        1,
		RateLimitRPM:     60,
		PriceUSD:         29,
	},
	PlanPro: {
		MaxUsers:         25,
		MaxProducts:      1000,
		APICallsPerMonth: 100000,
		StorageGB:        10,
		RateLimitRPM:     300,
		PriceUSD:         99,
	},
	PlanEnterprise: {
		MaxUsers:         Unlimited,
		MaxProducts:      Unlimited,
		APICallsPerMonth: Unlimited,
		StorageGB:        Unlimited,
		RateLimitRPM:     1200,
		PriceUSD:         499,
	},
}

// ValidPlan reports whether p names a known pricing tier.
func ValidPlan(p Plan) bool {
	_, ok := plans[p]
	return ok
}

// PlanFor returns the configuration for a plan. Unknown plans fall back
// to basic so a mangled row never grants unlimited quota.
func PlanFor(p Plan) PlanConfig {
	if cfg, ok := plans[p]; ok {
		return cfg
	}
	return plans[PlanBasic]
}

// SettingsFor materializes the effective settings for a plan.
func SettingsFor(p Plan) Settings {
	cfg := PlanFor(p)
	return Settings{
		MaxUsers:         cfg.MaxUsers,
		MaxProducts:      cfg.MaxProducts,
		APICallsPerMonth: cfg.APICallsPerMonth,
		StorageGB:        cfg.StorageGB,
		RateLimitRPM:     cfg.RateLimitRPM,
	}
}

// Limit returns the cap for a metered feature under the given settings.
// Storage is reported in bytes.
func (s Settings) Limit(feature string) int64 {
	switch feature {
	case FeatureUsers:
		return int64(s.MaxUsers)
	case FeatureProducts:
		return int64(s.MaxProducts)
	case FeatureAPICalls:
		return int64(s.APICallsPerMonth)
	case FeatureStorage:
		return int64(s.StorageGB) * 1 << 30
	default:
		return Unlimited
	}
}
