package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"

	"github.com/Lllllllleong/pdfmailmerge/internal/persistence"
)

const redisKeyPrefix = "pdfmailmerge:"

// openStore opens the label store named by --store. The returned function
// releases it.
//
//	memory                   process lifetime only
//	badger:<dir>             embedded database, the default
//	redis:<addr>, redis://…  shared Redis
//	gs://<bucket>/<prefix>   one Cloud Storage object per record
func (a *App) openStore(ctx context.Context) (persistence.KV, func(), error) {
	spec := strings.TrimSpace(a.storeSpec)
	switch {
	case spec == "memory":
		if a.memory == nil {
			a.memory = persistence.NewMemoryStore(0)
		}
		return a.memory, func() {}, nil

	case strings.HasPrefix(spec, "badger:"):
		dir := strings.TrimPrefix(spec, "badger:")
		if dir == "" {
			base, err := os.UserConfigDir()
			if err != nil {
				return nil, nil, fmt.Errorf("failed to find a default store directory: %w", err)
			}
			dir = filepath.Join(base, "pdfmailmerge", "labels")
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		s, err := persistence.OpenBadgerStore(persistence.BadgerConfig{Dir: dir, SyncWrites: true})
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				a.logger.Error("Failed to close label store.", "error", err)
			}
		}, nil

	case strings.HasPrefix(spec, "redis://"), strings.HasPrefix(spec, "rediss://"):
		opts, err := redis.ParseURL(spec)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		return a.openRedis(ctx, opts)

	case strings.HasPrefix(spec, "redis:"):
		return a.openRedis(ctx, &redis.Options{Addr: strings.TrimPrefix(spec, "redis:")})

	case strings.HasPrefix(spec, "gs://"):
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(spec, "gs://"), "/")
		if bucket == "" {
			return nil, nil, fmt.Errorf("store %q names no bucket", spec)
		}
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		return persistence.NewGCSStore(client.Bucket(bucket), prefix), func() { _ = client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store %q", spec)
	}
}

func (a *App) openRedis(ctx context.Context, opts *redis.Options) (persistence.KV, func(), error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return persistence.NewRedisStore(client, redisKeyPrefix), func() { _ = client.Close() }, nil
}
