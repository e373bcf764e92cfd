package config

import (
	"os"
	"strings"
	"time"

	"PPChat/data/database/mgo/mongoutil"
	"PPChat/service/chat"
	"PPChat/service/events"
	redisstore "PPChat/service/storage/redis"
	"PPChat/tools"
	"PPChat/tools/errs"
	"PPChat/tools/retry"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

type AppConfig struct {
	NodeID  string          `yaml:"nodeId"` // 节点ID，写入 presence
	IDNode  int64           `yaml:"idNode"` // 雪花算法节点号 0..1023
	HTTP    HTTPConfig      `yaml:"http"`
	Log     LogConfig       `yaml:"log"`
	Auth    AuthConfig      `yaml:"auth"`
	Storage StorageConfig   `yaml:"storage"`
	Redis   RedisConfig     `yaml:"redis"`
	Events  events.Config   `yaml:"events"`
	WS      chat.ConnConfig `yaml:"ws"`
	Retry   RetryConfig     `yaml:"retry"`
}

type HTTPConfig struct {
	Addr           string        `yaml:"addr"`
	HealthAddr     string        `yaml:"healthAddr"` // gRPC health 端口
	AllowedOrigins []string      `yaml:"allowedOrigins"`
	ClientBaseURL  string        `yaml:"clientBaseUrl"`
	ShutdownWait   time.Duration `yaml:"shutdownWait"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type AuthConfig struct {
	Secret string        `yaml:"secret"`
	Alg    string        `yaml:"alg"`
	Issuer string        `yaml:"issuer"`
	TTL    time.Duration `yaml:"ttl"`
}

type StorageConfig struct {
	Driver       string           `yaml:"driver"` // mongo | memory
	Mongo        mongoutil.Config `yaml:"mongo"`
	ReadyTimeout time.Duration    `yaml:"readyTimeout"`
}

// RedisConfig 未启用时 presence 与消息流都走内存实现
type RedisConfig struct {
	redisstore.Config `yaml:",inline"`

	Enabled      bool          `yaml:"enabled"`
	PresenceTTL  time.Duration `yaml:"presenceTtl"`
	StreamMaxLen int64         `yaml:"streamMaxLen"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseDelay   time.Duration `yaml:"baseDelay"`
	MaxDelay    time.Duration `yaml:"maxDelay"`
}

func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{MaxAttempts: r.MaxAttempts, BaseDelay: r.BaseDelay, MaxDelay: r.MaxDelay}
}

// Default 本地开发可直接跑的默认值
func Default() *AppConfig {
	return &AppConfig{
		NodeID: "ppchat-1",
		IDNode: 1,
		HTTP: HTTPConfig{
			Addr:          ":8080",
			HealthAddr:    ":50051",
			ClientBaseURL: "http://localhost:3000",
			ShutdownWait:  10 * time.Second,
		},
		Log:  LogConfig{Level: "info"},
		Auth: AuthConfig{Alg: "HS256", TTL: 2 * time.Hour},
		Storage: StorageConfig{
			Driver: DriverMongo,
			Mongo: mongoutil.Config{
				Uri:         "mongodb://localhost:27017/?replicaSet=rs0",
				Database:    "ppchat",
				MaxPoolSize: 20,
			},
			ReadyTimeout: 30 * time.Second,
		},
		Redis: RedisConfig{
			Config:       redisstore.Config{Addr: "127.0.0.1:6379"},
			PresenceTTL:  2 * time.Minute,
			StreamMaxLen: 100_000,
		},
		Events: events.Config{Driver: events.DriverNone, Subject: "im.friend.events"},
		Retry:  RetryConfig{MaxAttempts: 5, BaseDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second},
	}
}

// LoadDotEnv loads .env files if present; existing variables win.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Load reads path (optional) over the defaults, then applies environment
// overrides and validates.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.WrapMsg(err, "read config file", "path", path)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, errs.ErrArgs.WrapMsg("parse config file", "path", path, "err", err.Error())
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyEnv() {
	c.NodeID = tools.GetEnv("PPCHAT_NODE_ID", c.NodeID)
	c.IDNode = int64(tools.GetEnvInt("PPCHAT_ID_NODE", int(c.IDNode)))
	c.HTTP.Addr = tools.GetEnv("PPCHAT_HTTP_ADDR", c.HTTP.Addr)
	c.HTTP.HealthAddr = tools.GetEnv("PPCHAT_HEALTH_ADDR", c.HTTP.HealthAddr)
	c.HTTP.ClientBaseURL = tools.GetEnv("PPCHAT_CLIENT_BASE_URL", c.HTTP.ClientBaseURL)
	c.HTTP.AllowedOrigins = tools.GetEnvList("PPCHAT_ALLOWED_ORIGINS", c.HTTP.AllowedOrigins)
	c.Log.Level = tools.GetEnv("PPCHAT_LOG_LEVEL", c.Log.Level)
	c.Log.JSON = tools.GetEnvBool("PPCHAT_LOG_JSON", c.Log.JSON)
	c.Auth.Secret = tools.GetEnv("PPCHAT_JWT_SECRET", c.Auth.Secret)
	c.Auth.Issuer = tools.GetEnv("PPCHAT_JWT_ISSUER", c.Auth.Issuer)
	c.Storage.Driver = tools.GetEnv("PPCHAT_STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.Mongo.Uri = tools.GetEnv("PPCHAT_MONGO_URI", c.Storage.Mongo.Uri)
	c.Storage.Mongo.Database = tools.GetEnv("PPCHAT_MONGO_DATABASE", c.Storage.Mongo.Database)
	c.Redis.Enabled = tools.GetEnvBool("PPCHAT_REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.Addr = tools.GetEnv("PPCHAT_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = tools.GetEnv("PPCHAT_REDIS_PASSWORD", c.Redis.Password)
	c.Events.Driver = tools.GetEnv("PPCHAT_EVENTS_DRIVER", c.Events.Driver)
	c.Events.NATS.Servers = tools.GetEnvList("PPCHAT_NATS_SERVERS", c.Events.NATS.Servers)
	c.Events.Kafka.Brokers = tools.GetEnvList("PPCHAT_KAFKA_BROKERS", c.Events.Kafka.Brokers)
}

func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return errs.ErrArgs.WrapMsg("auth.secret is required (PPCHAT_JWT_SECRET)")
	}
	if len(c.Auth.Secret) < 16 {
		return errs.ErrArgs.WrapMsg("auth.secret must be at least 16 bytes")
	}
	if c.IDNode < 0 || c.IDNode > 1023 {
		return errs.ErrArgs.WrapMsg("idNode out of range", "idNode", c.IDNode)
	}
	if c.HTTP.Addr == "" {
		return errs.ErrArgs.WrapMsg("http.addr is required")
	}
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverMongo:
		if err := c.Storage.Mongo.ValidateAndSetDefaults(); err != nil {
			return err
		}
	default:
		return errs.ErrArgs.WrapMsg("unknown storage.driver", "driver", c.Storage.Driver)
	}
	if c.Storage.ReadyTimeout <= 0 {
		c.Storage.ReadyTimeout = 30 * time.Second
	}
	if c.HTTP.ShutdownWait <= 0 {
		c.HTTP.ShutdownWait = 10 * time.Second
	}
	if c.Events.Kafka.Topic == "" {
		c.Events.Kafka.Topic = c.Events.Subject
	}
	return nil
}
