package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/dhruvin2968/facebook-messaging/internal/cache"
	"github.com/dhruvin2968/facebook-messaging/internal/conversation"
	"github.com/dhruvin2968/facebook-messaging/internal/events"
	"github.com/dhruvin2968/facebook-messaging/internal/hub"
	"github.com/dhruvin2968/facebook-messaging/internal/identity"
	"github.com/dhruvin2968/facebook-messaging/internal/repository"
	pkgconfig "github.com/dhruvin2968/facebook-messaging/pkg/config"
	"github.com/dhruvin2968/facebook-messaging/pkg/database"
	"github.com/dhruvin2968/facebook-messaging/pkg/log"
)

type Config struct {
	Server    ServerConfig
	Auth      identity.Config
	Storage   StorageConfig
	Redis     cache.RedisConfig
	Kafka     events.Config
	WebSocket hub.Config `mapstructure:"websocket"`
	Store     conversation.Config
	Log       log.Config
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig selects the message log backend. Driver is one of
// sqlite, postgres, mysql, cassandra.
type StorageConfig struct {
	Driver    string
	SQL       SQLConfig                  `mapstructure:"sql"`
	Cassandra repository.CassandraConfig `mapstructure:"cassandra"`
}

type SQLConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string `mapstructure:"db_name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	FilePath        string `mapstructure:"file_path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// DatabaseConfig maps the selected SQL settings onto the shared factory.
func (c StorageConfig) DatabaseConfig() database.Config {
	return database.Config{
		Driver:          c.Driver,
		Host:            c.SQL.Host,
		Port:            c.SQL.Port,
		User:            c.SQL.User,
		Password:        c.SQL.Password,
		DBName:          c.SQL.DBName,
		SSLMode:         c.SQL.SSLMode,
		FilePath:        c.SQL.FilePath,
		MaxIdleConns:    c.SQL.MaxIdleConns,
		MaxOpenConns:    c.SQL.MaxOpenConns,
		ConnMaxLifetime: c.SQL.ConnMaxLifetime,
	}
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8094)
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("auth.required", false)
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "messaging-service")
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sql.host", "localhost")
	v.SetDefault("storage.sql.port", 5432)
	v.SetDefault("storage.sql.user", "messaging")
	v.SetDefault("storage.sql.password", "")
	v.SetDefault("storage.sql.db_name", "messaging")
	v.SetDefault("storage.sql.ssl_mode", "disable")
	v.SetDefault("storage.sql.file_path", "./data/messaging.db")
	v.SetDefault("storage.sql.max_idle_conns", 10)
	v.SetDefault("storage.sql.max_open_conns", 100)
	v.SetDefault("storage.sql.conn_max_lifetime", 60)
	v.SetDefault("storage.cassandra.hosts", []string{"localhost:9042"})
	v.SetDefault("storage.cassandra.keyspace", "messaging")
	v.SetDefault("storage.cassandra.consistency", "quorum")
	v.SetDefault("storage.cassandra.connect_timeout", "10s")
	v.SetDefault("storage.cassandra.timeout", "5s")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "message-events")
	v.SetDefault("kafka.partitions", 6)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("store.append_timeout", "5s")
	v.SetDefault("store.cache_ttl", "30s")
	v.SetDefault("store.page_limit", 50)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "messaging-service")

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("auth.required", "AUTH_REQUIRED")
	v.BindEnv("auth.secret", "JWT_SECRET")
	v.BindEnv("auth.issuer", "JWT_ISSUER")
	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("storage.sql.host", "DB_HOST")
	v.BindEnv("storage.sql.port", "DB_PORT")
	v.BindEnv("storage.sql.user", "DB_USER")
	v.BindEnv("storage.sql.password", "DB_PASSWORD")
	v.BindEnv("storage.sql.db_name", "DB_NAME")
	v.BindEnv("storage.cassandra.hosts", "CASSANDRA_HOSTS")
	v.BindEnv("storage.cassandra.keyspace", "CASSANDRA_KEYSPACE")
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("kafka.enabled", "KAFKA_ENABLED")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_MESSAGE_TOPIC")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.Server.ShutdownTimeout = parseDuration(v, "server.shutdown_timeout", 30*time.Second)
	cfg.Storage.Cassandra.ConnectTimeout = parseDuration(v, "storage.cassandra.connect_timeout", 10*time.Second)
	cfg.Storage.Cassandra.Timeout = parseDuration(v, "storage.cassandra.timeout", 5*time.Second)
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Store.AppendTimeout = parseDuration(v, "store.append_timeout", 5*time.Second)
	cfg.Store.CacheTTL = parseDuration(v, "store.cache_ttl", 30*time.Second)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
