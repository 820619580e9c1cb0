package cache

import (
	"context"
	"time"

	"kuyumcu-backend/internal/config"

	"github.com/redis/go-redis/v9"
)

var client *redis.Client

const viewKeyPrefix = "view:"

func Init(cfg *config.Config) {
	if cfg.RedisAddr == "" {
		return
	}

	log := config.GetLogger()

	client = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warnf("Redis'e bağlanılamadı, cache invalidation devre dışı: %v", err)
		client = nil
		return
	}
	log.Info("Redis bağlantısı başarılı")
}

// Client - redislock gibi dış kullanıcılar için (nil olabilir)
func Client() *redis.Client { return client }

// Invalidate - verilen görünümleri stale işaretler (key siler).
// Fire-and-forget: hata sadece loglanır, çağırana dönmez.
func Invalidate(paths ...string) {
	if client == nil || len(paths) == 0 {
		return
	}

	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		keys = append(keys, viewKeyPrefix+p)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Del(ctx, keys...).Err(); err != nil {
			config.GetLogger().Warnf("Cache invalidation başarısız (%v): %v", keys, err)
		}
	}()
}
