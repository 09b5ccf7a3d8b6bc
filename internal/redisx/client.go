package redisx

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/oremus-labs/docai-console/config"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// Options configures the Redis client.
type Options struct {
	Addr        string
	Username    string
	Password    string
	DB          int
	TLSEnabled  bool
	TLSInsecure bool
}

// OptionsFromConfig extracts the Redis settings of the devserver config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Addr:        cfg.RedisAddr,
		Username:    cfg.RedisUsername,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		TLSEnabled:  cfg.RedisTLSEnabled,
		TLSInsecure: cfg.RedisTLSInsecure,
	}
}

// Enabled reports whether an address was configured.
func (o Options) Enabled() bool {
	return o.Addr != ""
}

// Connect returns a pinged Redis client, or nil when no address is configured.
func Connect(ctx context.Context, opts Options) (redis.UniversalClient, error) {
	if !opts.Enabled() {
		return nil, nil
	}

	ro := &redis.Options{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	}
	if opts.TLSEnabled {
		ro.TLSConfig = &tls.Config{
			InsecureSkipVerify: opts.TLSInsecure, // #nosec G402 – opt-in
		}
	}

	client := redis.NewClient(ro)
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "redis ping %s", opts.Addr)
	}
	return client, nil
}
