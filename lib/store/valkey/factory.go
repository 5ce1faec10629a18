package valkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nozmo-king/chorum/lib/store"
	valkey "github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"
)

func init() {
	store.Register("valkey", Factory{})
}

var (
	ErrNoURL  = errors.New("valkey.Config: no URL defined")
	ErrBadURL = errors.New("valkey.Config: URL is invalid")
)

// Config is the "parameters" block of a valkey store.
type Config struct {
	URL     string `json:"url"`
	Cluster bool   `json:"cluster,omitempty"`
}

func (c Config) Valid() error {
	if c.URL == "" {
		return ErrNoURL
	}

	if _, err := valkey.ParseURL(c.URL); err != nil {
		return fmt.Errorf("%w: %v", ErrBadURL, err)
	}

	return nil
}

// redisClient is satisfied by *valkey.Client and *valkey.ClusterClient.
type redisClient interface {
	Get(ctx context.Context, key string) *valkey.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *valkey.StatusCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *valkey.BoolCmd
	Del(ctx context.Context, keys ...string) *valkey.IntCmd
	Ping(ctx context.Context) *valkey.StatusCmd
}

type Factory struct{}

func (Factory) Valid(data json.RawMessage) error {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}
	if err := cfg.Valid(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}
	return nil
}

func (Factory) Build(ctx context.Context, data json.RawMessage) (store.Interface, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}
	if err := cfg.Valid(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	opts, err := valkey.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("valkey.Factory: %w", err)
	}

	// Maintenance notifications stay off; several valkey versions reject
	// CLIENT MAINT_NOTIFICATIONS.
	maint := &maintnotifications.Config{Mode: maintnotifications.ModeDisabled}

	var client redisClient

	if cfg.Cluster {
		client = valkey.NewClusterClient(&valkey.ClusterOptions{
			Addrs:                    []string{opts.Addr},
			MaintNotificationsConfig: maint,
		})
	} else {
		opts.MaintNotificationsConfig = maint
		client = valkey.NewClient(opts)
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("valkey.Factory: ping failed: %w", err)
	}

	return &Store{client: client}, nil
}
