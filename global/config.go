package global

import (
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// AppConfig is the whole process configuration. Values come from the
// environment (MS_* variables) decoded through mapstructure; anything
// missing falls back in norm().
type AppConfig struct {
	Addr string `mapstructure:"addr"` // HTTP listen address

	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	JWTSecret string `mapstructure:"jwt_secret"`

	SyncInterval  time.Duration `mapstructure:"sync_interval"`  // play-count flush cadence
	PlayDedupTTL  time.Duration `mapstructure:"play_dedup_ttl"` // per-(user,track) confirm window
	TrendingTTL   time.Duration `mapstructure:"trending_ttl"`   // trending response cache
	TrendingLimit int64         `mapstructure:"trending_limit"`
}

var Config AppConfig

// Load decodes MS_* environment variables into Config.
func Load() error {
	src := map[string]any{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, "MS_") {
			continue
		}
		src[strings.ToLower(strings.TrimPrefix(k, "MS_"))] = v
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &Config,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(src); err != nil {
		return err
	}
	Config.norm()
	return nil
}

func (c *AppConfig) norm() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.MongoURI == "" {
		c.MongoURI = "mongodb://localhost:27017"
	}
	if c.MongoDatabase == "" {
		c.MongoDatabase = "museshare"
	}
	if c.RedisAddr == "" {
		c.RedisAddr = "127.0.0.1:6379"
	}
	if c.JWTSecret == "" {
		c.JWTSecret = "dev-only-secret"
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = time.Minute
	}
	if c.PlayDedupTTL <= 0 {
		c.PlayDedupTTL = 60 * time.Second
	}
	if c.TrendingTTL <= 0 {
		c.TrendingTTL = 5 * time.Minute
	}
	if c.TrendingLimit <= 0 {
		c.TrendingLimit = 20
	}
}
