package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Config struct {
	Port                  string
	PostgresURI           string
	RedisURI              string
	FrontendURL           string
	PublicURL             string
	SecretKey             string
	AuthJWTSecret         string
	TwitterConsumerKey    string
	TwitterConsumerSecret string
	FacebookAppID         string
	FacebookAppSecret     string
	InstagramClientID     string
	InstagramClientSecret string
	MastodonAppName       string
	MastodonAppWebsite    string
	GraphAPIVersion       string
	SweepSchedule         string
	OAuthFlowTTL          time.Duration
	LogLevel              string
	R2                    R2
}

func LoadConfig() *Config {
	publicURL := strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:3000"), "/")

	return &Config{
		Port:                  getEnv("PORT", "3000"),
		PostgresURI:           getEnv("POSTGRES_URI", ""),
		RedisURI:              getEnv("REDIS_URI", "localhost:6379"),
		FrontendURL:           strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:5173"), "/"),
		PublicURL:             publicURL,
		SecretKey:             getEnv("SECRET_KEY", ""),
		AuthJWTSecret:         getEnv("AUTH_JWT_SECRET", ""),
		TwitterConsumerKey:    getEnv("TWITTER_CONSUMER_KEY", ""),
		TwitterConsumerSecret: getEnv("TWITTER_CONSUMER_SECRET", ""),
		FacebookAppID:         getEnv("FACEBOOK_APP_ID", ""),
		FacebookAppSecret:     getEnv("FACEBOOK_APP_SECRET", ""),
		InstagramClientID:     getEnv("INSTAGRAM_CLIENT_ID", ""),
		InstagramClientSecret: getEnv("INSTAGRAM_CLIENT_SECRET", ""),
		MastodonAppName:       getEnv("MASTODON_APP_NAME", "PostPilot"),
		MastodonAppWebsite:    getEnv("MASTODON_APP_WEBSITE", ""),
		GraphAPIVersion:       getEnv("GRAPH_API_VERSION", "v21.0"),
		SweepSchedule:         getEnv("SWEEP_SCHEDULE", "@every 1m"),
		OAuthFlowTTL:          getDuration("OAUTH_FLOW_TTL", 10*time.Minute),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  strings.TrimRight(getEnv("R2_PUBLIC_URL", ""), "/"),
		},
	}
}

// CallbackURL is where a platform redirects back to after authorization.
func (c *Config) CallbackURL(platform string) string {
	return c.PublicURL + "/auth/" + platform + "/callback"
}

// Validate reports settings the server cannot run without. SECRET_KEY is the
// AES key of the credential vault and must be 16, 24 or 32 bytes.
func (c *Config) Validate() error {
	if c.AuthJWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET is required")
	}
	switch len(c.SecretKey) {
	case 16, 24, 32:
	case 0:
		return errors.New("SECRET_KEY is required")
	default:
		return fmt.Errorf("SECRET_KEY must be 16, 24 or 32 bytes, got %d", len(c.SecretKey))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
