package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisConfig holds connection settings for the display state store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore persists per-token display state in Redis, one key per
// concern, guard flags with native TTLs.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects and pings before returning; a display should
// fail fast at startup rather than discover a dead store mid-session.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.Ping(pingCtx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	log.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("display state store connected")
	return &RedisStore{client: client}, nil
}

func overlayKey(token string) string {
	return "display:" + token + ":overlay"
}

func guardKey(token, name string) string {
	return "display:" + token + ":guard:" + name
}

func (r *RedisStore) SaveOverlay(ctx context.Context, token string, snap OverlaySnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal overlay snapshot: %w", err)
	}
	if err := r.client.Set(ctx, overlayKey(token), data, 0).Err(); err != nil {
		return fmt.Errorf("save overlay snapshot: %w", err)
	}
	return nil
}

func (r *RedisStore) LoadOverlay(ctx context.Context, token string) (OverlaySnapshot, bool, error) {
	data, err := r.client.Get(ctx, overlayKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return OverlaySnapshot{}, false, nil
	}
	if err != nil {
		return OverlaySnapshot{}, false, fmt.Errorf("load overlay snapshot: %w", err)
	}
	var snap OverlaySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// A corrupt snapshot is not worth failing a session over.
		log.Warn().Err(err).Str("token", token).Msg("discarding unreadable overlay snapshot")
		return OverlaySnapshot{}, false, nil
	}
	return snap, true, nil
}

func (r *RedisStore) ClearOverlay(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, overlayKey(token)).Err(); err != nil {
		return fmt.Errorf("clear overlay snapshot: %w", err)
	}
	return nil
}

func (r *RedisStore) SetGuard(ctx context.Context, token, name string, ttl time.Duration) error {
	if err := r.client.Set(ctx, guardKey(token, name), "1", ttl).Err(); err != nil {
		return fmt.Errorf("set %s guard: %w", name, err)
	}
	return nil
}

func (r *RedisStore) Guard(ctx context.Context, token, name string) (bool, error) {
	_, err := r.client.Get(ctx, guardKey(token, name)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s guard: %w", name, err)
	}
	return true, nil
}

func (r *RedisStore) ClearGuard(ctx context.Context, token, name string) error {
	if err := r.client.Del(ctx, guardKey(token, name)).Err(); err != nil {
		return fmt.Errorf("clear %s guard: %w", name, err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
