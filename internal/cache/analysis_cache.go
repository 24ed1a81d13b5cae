package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/config"
	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	analysisKeyPrefix   = "analysis:"
	latestReportKey     = analysisKeyPrefix + "latest"
	dashboardKeyPrefix  = analysisKeyPrefix + "dashboard"
	simulationKeyPrefix = analysisKeyPrefix + "simulation"

	// one SCAN page; every analysis key is unlinked in pages of this size
	scanBatchSize = 100
	pingTimeout   = 5 * time.Second
)

// entryKind selects the TTL of a cache entry.
type entryKind int

const (
	kindLatest entryKind = iota
	kindDashboard
	kindSimulation
)

var defaultTTLs = map[entryKind]time.Duration{
	kindLatest:     5 * time.Minute,
	kindDashboard:  2 * time.Minute,
	kindSimulation: time.Minute,
}

// AnalysisCache holds derived results that are expensive to recompute.
// Every entry is dropped when new history is imported or a run completes.
type AnalysisCache interface {
	GetLatest(ctx context.Context) (*domain.AnalysisReport, bool, error)
	SetLatest(ctx context.Context, report *domain.AnalysisReport) error
	GetDashboard(ctx context.Context, params map[string]string) (*domain.Dashboard, bool, error)
	SetDashboard(ctx context.Context, params map[string]string, dashboard *domain.Dashboard) error
	GetSimulation(ctx context.Context, params map[string]string) (*domain.SimulationTrace, bool, error)
	SetSimulation(ctx context.Context, params map[string]string, trace *domain.SimulationTrace) error
	InvalidateAll(ctx context.Context) error
}

type redisAnalysisCache struct {
	client *redis.Client
	ttls   map[entryKind]time.Duration
}

type noopAnalysisCache struct{}

func NewAnalysisCache(cfg config.CacheConfig) (AnalysisCache, error) {
	if !cfg.Enabled {
		return &noopAnalysisCache{}, nil
	}

	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &redisAnalysisCache{
		client: client,
		ttls:   entryTTLs(cfg),
	}, nil
}

// entryTTLs reads the per-kind expiry, keeping the default for unset values.
func entryTTLs(cfg config.CacheConfig) map[entryKind]time.Duration {
	ttls := make(map[entryKind]time.Duration, len(defaultTTLs))
	for kind, ttl := range defaultTTLs {
		ttls[kind] = ttl
	}
	for kind, seconds := range map[entryKind]int{
		kindLatest:     cfg.AnalysisTTLSeconds,
		kindDashboard:  cfg.DashboardTTLSeconds,
		kindSimulation: cfg.SimulationTTLSeconds,
	} {
		if seconds > 0 {
			ttls[kind] = time.Duration(seconds) * time.Second
		}
	}
	return ttls
}

// redisOptions prefers REDIS_URL and falls back to host, port and db.
func redisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opts, nil
	}

	host, port := cfg.RedisHost, cfg.RedisPort
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "6379"
	}
	return &redis.Options{
		Addr:     net.JoinHostPort(host, port),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}

func NewNoopAnalysisCache() AnalysisCache {
	return &noopAnalysisCache{}
}

func (c *redisAnalysisCache) GetLatest(ctx context.Context) (*domain.AnalysisReport, bool, error) {
	var report domain.AnalysisReport
	found, err := c.get(ctx, latestReportKey, &report)
	if err != nil || !found {
		return nil, found, err
	}
	return &report, true, nil
}

func (c *redisAnalysisCache) SetLatest(ctx context.Context, report *domain.AnalysisReport) error {
	return c.set(ctx, kindLatest, latestReportKey, report)
}

func (c *redisAnalysisCache) GetDashboard(ctx context.Context, params map[string]string) (*domain.Dashboard, bool, error) {
	var dashboard domain.Dashboard
	found, err := c.get(ctx, buildKey(dashboardKeyPrefix, params), &dashboard)
	if err != nil || !found {
		return nil, found, err
	}
	return &dashboard, true, nil
}

func (c *redisAnalysisCache) SetDashboard(ctx context.Context, params map[string]string, dashboard *domain.Dashboard) error {
	return c.set(ctx, kindDashboard, buildKey(dashboardKeyPrefix, params), dashboard)
}

func (c *redisAnalysisCache) GetSimulation(ctx context.Context, params map[string]string) (*domain.SimulationTrace, bool, error) {
	var trace domain.SimulationTrace
	found, err := c.get(ctx, buildKey(simulationKeyPrefix, params), &trace)
	if err != nil || !found {
		return nil, found, err
	}
	return &trace, true, nil
}

func (c *redisAnalysisCache) SetSimulation(ctx context.Context, params map[string]string, trace *domain.SimulationTrace) error {
	return c.set(ctx, kindSimulation, buildKey(simulationKeyPrefix, params), trace)
}

// InvalidateAll unlinks every key under analysisKeyPrefix, one SCAN page at
// a time so a large keyspace never blocks the server.
func (c *redisAnalysisCache) InvalidateAll(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, analysisKeyPrefix+"*", scanBatchSize).Iterator()
	page := make([]string, 0, scanBatchSize)
	for iter.Next(ctx) {
		page = append(page, iter.Val())
		if len(page) == scanBatchSize {
			if err := c.client.Unlink(ctx, page...).Err(); err != nil {
				return fmt.Errorf("redis unlink failed: %w", err)
			}
			page = page[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}
	if len(page) > 0 {
		if err := c.client.Unlink(ctx, page...).Err(); err != nil {
			return fmt.Errorf("redis unlink failed: %w", err)
		}
	}
	return nil
}

func (c *redisAnalysisCache) get(ctx context.Context, key string, dst interface{}) (bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}

	if err := json.Unmarshal(payload, dst); err != nil {
		return false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return true, nil
}

func (c *redisAnalysisCache) set(ctx context.Context, kind entryKind, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}

	if err := c.client.Set(ctx, key, payload, c.ttls[kind]).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *noopAnalysisCache) GetLatest(ctx context.Context) (*domain.AnalysisReport, bool, error) {
	return nil, false, nil
}

func (c *noopAnalysisCache) SetLatest(ctx context.Context, report *domain.AnalysisReport) error {
	return nil
}

func (c *noopAnalysisCache) GetDashboard(ctx context.Context, params map[string]string) (*domain.Dashboard, bool, error) {
	return nil, false, nil
}

func (c *noopAnalysisCache) SetDashboard(ctx context.Context, params map[string]string, dashboard *domain.Dashboard) error {
	return nil
}

func (c *noopAnalysisCache) GetSimulation(ctx context.Context, params map[string]string) (*domain.SimulationTrace, bool, error) {
	return nil, false, nil
}

func (c *noopAnalysisCache) SetSimulation(ctx context.Context, params map[string]string, trace *domain.SimulationTrace) error {
	return nil
}

func (c *noopAnalysisCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func buildKey(prefix string, params map[string]string) string {
	return fmt.Sprintf("%s:%s", prefix, paramsHash(params))
}

// paramsHash is stable under map iteration order; empty values are ignored.
func paramsHash(params map[string]string) string {
	parts := make([]string, 0, len(params))
	for k, v := range params {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", strings.ToLower(k), v))
	}

	if len(parts) == 0 {
		return "default"
	}

	sort.Strings(parts)
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
