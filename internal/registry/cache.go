package registry

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"healthcert/internal/domain"
)

// CertificateCache is a read-through cache for issued certificates.
// Certificates are immutable, so entries never need invalidation; the TTL
// only bounds memory on the cache side.
type CertificateCache interface {
	Get(ctx context.Context, id domain.CertificateID) (IssuedCertificate, bool)
	Set(ctx context.Context, cert IssuedCertificate)
}

// NoopCache disables caching. Used when Redis is not configured.
type NoopCache struct{}

func (NoopCache) Get(context.Context, domain.CertificateID) (IssuedCertificate, bool) {
	return IssuedCertificate{}, false
}
func (NoopCache) Set(context.Context, IssuedCertificate) {}

// RedisCache caches certificates in Redis with a TTL. Cache failures are
// logged and treated as misses; the store remains the source of truth.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func cacheKey(id domain.CertificateID) string {
	return "healthcert:certificate:" + id.String()
}

func (c *RedisCache) Get(ctx context.Context, id domain.CertificateID) (IssuedCertificate, bool) {
	data, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WarnContext(ctx, "certificate cache read failed", "certificate_id", id, "error", err.Error())
		}
		return IssuedCertificate{}, false
	}
	var cert IssuedCertificate
	if err := json.Unmarshal(data, &cert); err != nil {
		c.logger.WarnContext(ctx, "certificate cache entry corrupt", "certificate_id", id, "error", err.Error())
		return IssuedCertificate{}, false
	}
	return cert, true
}

func (c *RedisCache) Set(ctx context.Context, cert IssuedCertificate) {
	data, err := json.Marshal(cert)
	if err != nil {
		c.logger.WarnContext(ctx, "certificate cache marshal failed", "certificate_id", cert.ID, "error", err.Error())
		return
	}
	if err := c.client.Set(ctx, cacheKey(cert.ID), data, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "certificate cache write failed", "certificate_id", cert.ID, "error", err.Error())
	}
}
