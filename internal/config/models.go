package config

import (
	"fmt"
	"time"
)

// ScoringConfig holds the risk score combination weights
type ScoringConfig struct {
	DomainWeight    float64
	URLWeight       float64
	FinancialBonus  int
	HighThreshold   int
	MediumThreshold int
}

// AnalysisConfig holds service level analysis settings
type AnalysisConfig struct {
	MaxInputBytes    int
	BatchConcurrency int
	TrustedDomains   []string
	PhoneRegion      string
	MaxBodyBytes     int
}

// HTTPConfig represents the configuration for the HTTP API filter
type HTTPConfig struct {
	Address        string
	APIKey         string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxBodyBytes   int64
	CORSOrigins    []string
	TrustedProxies []string
}

// CacheConfig represents the configuration for the result cache
type CacheConfig struct {
	Type             string
	Enabled          bool
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisPrefix      string
	PostgresDSN      string
}

// GetScoring returns the scoring configuration
func (c *Config) GetScoring() ScoringConfig {
	return ScoringConfig{
		DomainWeight:    c.GetFloat64("scoring.domain_weight"),
		URLWeight:       c.GetFloat64("scoring.url_weight"),
		FinancialBonus:  c.GetInt("scoring.financial_bonus"),
		HighThreshold:   c.GetInt("scoring.high_threshold"),
		MediumThreshold: c.GetInt("scoring.medium_threshold"),
	}
}

// GetAnalysis returns the analysis configuration
func (c *Config) GetAnalysis() AnalysisConfig {
	return AnalysisConfig{
		MaxInputBytes:    c.GetInt("analysis.max_input_bytes"),
		BatchConcurrency: c.GetInt("analysis.batch_concurrency"),
		TrustedDomains:   c.GetStringSlice("analysis.trusted_domains"),
		PhoneRegion:      c.GetString("analysis.phone_region"),
		MaxBodyBytes:     c.GetInt("analysis.max_body_bytes"),
	}
}

// GetHTTP returns the HTTP API configuration
func (c *Config) GetHTTP() HTTPConfig {
	return HTTPConfig{
		Address:        c.GetString("server.http.address"),
		APIKey:         c.GetString("server.http.api_key"),
		RateLimitRPS:   c.GetFloat64("server.http.rate_limit_rps"),
		RateLimitBurst: c.GetInt("server.http.rate_limit_burst"),
		MaxBodyBytes:   int64(c.GetInt("server.http.max_body_bytes")),
		CORSOrigins:    c.GetStringSlice("server.http.cors_origins"),
		TrustedProxies: c.GetStringSlice("server.http.trusted_proxies"),
	}
}

// GetCache returns the cache configuration
func (c *Config) GetCache() (CacheConfig, error) {
	ttl, err := c.GetDuration("cache.ttl")
	if err != nil {
		return CacheConfig{}, fmt.Errorf("invalid cache TTL: %w", err)
	}
	cleanup, err := c.GetDuration("cache.cleanup_frequency")
	if err != nil {
		return CacheConfig{}, fmt.Errorf("invalid cache cleanup frequency: %w", err)
	}

	return CacheConfig{
		Type:             c.GetString("cache.type"),
		Enabled:          c.GetBool("cache.enabled"),
		TTL:              ttl,
		CleanupFrequency: cleanup,
		SQLitePath:       c.GetString("cache.sqlite_path"),
		MySQLDSN:         c.GetString("cache.mysql_dsn"),
		RedisAddr:        c.GetString("cache.redis_addr"),
		RedisPassword:    c.GetString("cache.redis_password"),
		RedisDB:          c.GetInt("cache.redis_db"),
		RedisPrefix:      c.GetString("cache.redis_prefix"),
		PostgresDSN:      c.GetString("cache.postgres_dsn"),
	}, nil
}
