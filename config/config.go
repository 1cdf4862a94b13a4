// gatekeeper/config/config.go
package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Configuration stores all the configurations
type Configuration struct {
	Server        ServerConfiguration
	Neo4j         DatabaseConfiguration
	Redis         RedisConfiguration
	Elasticsearch ElasticsearchConfiguration
	Auth          AuthConfiguration
	Alert         AlertConfiguration
	Audit         AuditConfiguration
	Log           LogConfiguration
}

// ServerConfiguration stores the port and other web server settings
// ServerConfiguration stores the port and other web server settings
type ServerConfiguration struct {
	Port            string        `validate:"required"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
	// TrustedProxies lists the peers (IPs or CIDRs) whose forwarding
	// headers are believed. Empty means the peer address is the client.
	TrustedProxies []string `validate:"dive,cidr|ip"`
}

// DatabaseConfiguration stores data for database connection
type DatabaseConfiguration struct {
	URI      string `validate:"required"`
	Username string
	Password string
}

// RedisConfiguration stores data for Redis connection
type RedisConfiguration struct {
	Addr         string `validate:"required"`
	Password     string
	DB           int `validate:"gte=0"`
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int `validate:"gte=0"`
}

// ElasticsearchConfiguration stores data for Elasticsearch connection
type ElasticsearchConfiguration struct {
	URL string `validate:"required,url"`
}

// AuthConfiguration drives the request decision pipeline.
type AuthConfiguration struct {
	ExcludedPaths              []string
	CredentialIssuingPaths     []string
	RateLimitPerWindow         int           `validate:"gt=0"`
	IPRateLimitPerWindow       int           `validate:"gt=0"`
	WindowDuration             time.Duration `validate:"gt=0"`
	ClockSkewTolerance         time.Duration `validate:"gt=0"`
	CacheTTL                   time.Duration `validate:"gt=0"`
	StaleRetention             time.Duration `validate:"gte=0"`
	LookupTimeout              time.Duration `validate:"gt=0"`
	StoreTimeout               time.Duration `validate:"gt=0"`
	FailOpenOnStoreUnavailable bool
	SweepInterval              time.Duration `validate:"gt=0"`
	Token                      TokenConfiguration
	Breaker                    BreakerConfiguration
	Lockout                    LockoutConfiguration
}

// TokenConfiguration selects the bearer token signing scheme.
type TokenConfiguration struct {
	Algorithm      string        `validate:"oneof=HS256 RS256"`
	Secret         string        `validate:"required_if=Algorithm HS256"`
	PrivateKeyFile string        `validate:"required_if=Algorithm RS256"`
	PublicKeyFile  string        `validate:"required_if=Algorithm RS256"`
	Issuer         string        `validate:"required"`
	AccessTTL      time.Duration `validate:"gt=0"`
	RefreshTTL     time.Duration `validate:"gtfield=AccessTTL"`
}

// BreakerConfiguration tunes the identity store circuit breaker.
type BreakerConfiguration struct {
	ConsecutiveFailures uint32        `validate:"gt=0"`
	OpenTimeout         time.Duration `validate:"gt=0"`
	HalfOpenRequests    uint32        `validate:"gt=0"`
}

// LockoutConfiguration locks an API key after repeated signature failures.
type LockoutConfiguration struct {
	MaxAttempts int           `validate:"gt=0"`
	Duration    time.Duration `validate:"gt=0"`
	MaxBlockTTL time.Duration `validate:"gt=0"`
}

// AlertConfiguration controls escalation of dependency errors.
type AlertConfiguration struct {
	Threshold   int           `validate:"gt=0"`
	Window      time.Duration `validate:"gt=0"`
	MinInterval time.Duration `validate:"gte=0"`
}

// AuditConfiguration sizes the asynchronous audit pipeline.
type AuditConfiguration struct {
	Index        string        `validate:"required"`
	BufferSize   int           `validate:"gt=0"`
	Workers      int           `validate:"gt=0"`
	WriteTimeout time.Duration `validate:"gt=0"`
}

type LogConfiguration struct {
	Dir string
}

var config *Configuration

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.shutdownTimeout", "5s")
	viper.SetDefault("server.trustedProxies", []string{})
	viper.SetDefault("neo4j.uri", "bolt://localhost:7687")
	viper.SetDefault("neo4j.username", "neo4j")
	viper.SetDefault("neo4j.password", "")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.dialTimeout", "2s")
	viper.SetDefault("redis.readTimeout", "500ms")
	viper.SetDefault("redis.writeTimeout", "500ms")
	viper.SetDefault("redis.poolSize", 50)
	viper.SetDefault("elasticsearch.url", "http://localhost:9200")
	viper.SetDefault("log.dir", "logging")

	viper.SetDefault("auth.excludedPaths", []string{"/healthz", "/metrics"})
	viper.SetDefault("auth.credentialIssuingPaths", []string{"/api/v1/auth/token", "/api/v1/auth/token/refresh"})
	viper.SetDefault("auth.rateLimitPerWindow", 100)
	viper.SetDefault("auth.ipRateLimitPerWindow", 20)
	viper.SetDefault("auth.windowDuration", "1m")
	viper.SetDefault("auth.clockSkewTolerance", "5m")
	viper.SetDefault("auth.cacheTTL", "5m")
	viper.SetDefault("auth.staleRetention", "1h")
	viper.SetDefault("auth.lookupTimeout", "2s")
	viper.SetDefault("auth.storeTimeout", "250ms")
	viper.SetDefault("auth.failOpenOnStoreUnavailable", false)
	viper.SetDefault("auth.sweepInterval", "1m")
	viper.SetDefault("auth.token.algorithm", "HS256")
	viper.SetDefault("auth.token.secret", "")
	viper.SetDefault("auth.token.privateKeyFile", "")
	viper.SetDefault("auth.token.publicKeyFile", "")
	viper.SetDefault("auth.token.issuer", "echo-gatekeeper")
	viper.SetDefault("auth.token.accessTTL", "15m")
	viper.SetDefault("auth.token.refreshTTL", "168h")
	viper.SetDefault("auth.breaker.consecutiveFailures", 5)
	viper.SetDefault("auth.breaker.openTimeout", "30s")
	viper.SetDefault("auth.breaker.halfOpenRequests", 1)
	viper.SetDefault("auth.lockout.maxAttempts", 5)
	viper.SetDefault("auth.lockout.duration", "30m")
	viper.SetDefault("auth.lockout.maxBlockTTL", "720h")

	viper.SetDefault("alert.threshold", 10)
	viper.SetDefault("alert.window", "1m")
	viper.SetDefault("alert.minInterval", "1m")

	viper.SetDefault("audit.index", "gatekeeper-audit")
	viper.SetDefault("audit.bufferSize", 1024)
	viper.SetDefault("audit.workers", 2)
	viper.SetDefault("audit.writeTimeout", "3s")
}

func InitConfig() error {
	viper.AddConfigPath("config") // path to look for the config file in
	viper.SetConfigName("config") // name of the config file (without extension)
	viper.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name

	// AUTH_RATELIMITPERWINDOW overrides auth.rateLimitPerWindow
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found. Using default settings and environment variables.")
		} else {
			return err
		}
	}

	var loaded Configuration
	if err := viper.Unmarshal(&loaded); err != nil {
		return err
	}

	if err := Validate(&loaded); err != nil {
		return err
	}

	config = &loaded
	return nil
}

// Validate checks the struct-level constraints of a configuration.
func Validate(cfg *Configuration) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// GetConfig returns the loaded configuration
func GetConfig() *Configuration {
	return config
}

// GetString retrieves a string value from the configuration
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt retrieves an integer value from the configuration
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool retrieves a boolean value from the configuration
func GetBool(key string) bool {
	return viper.GetBool(key)
}

func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

func GetStringSlice(key string) []string {
	return viper.GetStringSlice(key)
}
