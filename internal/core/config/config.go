package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
}
type AdminHTTP struct {
	Host string
	Port int
}

type App struct {
	Name  string
	Env   string
	HTTP  HTTP
	Admin AdminHTTP
}

type Log struct {
	Level string
	JSON  bool
	// 文件切割（可选）
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type JWT struct {
	Secret            string
	Issuer            string
	AccessTokenTTLMin int
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

// Bus 事件总线：redis | servicebus | memory
type Bus struct {
	Driver     string
	Partitions int
	MaxLen     int64
	Block      time.Duration
	ServiceBus ServiceBus `mapstructure:"servicebus"`
}

type ServiceBus struct {
	ConnectionString string `mapstructure:"connectionString"`
}

type Publisher struct {
	MaxAttempts int
	RetryDelay  time.Duration
	DedupTTL    time.Duration
}

type Notify struct {
	PageSize        int
	Concurrency     int
	PushConcurrency int
	BookGroup       string
	MembershipGroup string
}

type Mail struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	MaxAttempts int
	RetryDelay  time.Duration
	ChunkSize   int
	Workers     int
}

type Lending struct {
	LoanDays     int
	StatusEvents bool
}

type Report struct {
	CacheTTL time.Duration
}

type Sweeper struct {
	Enabled  bool
	At       string // "HH:MM"
	Timezone string
	LockTTL  time.Duration
}

type Config struct {
	App       App
	Log       Log
	JWT       JWT
	DB        DB
	Redis     Redis `mapstructure:"redis"`
	Bus       Bus
	Publisher Publisher
	Notify    Notify
	Mail      Mail
	Lending   Lending
	Report    Report
	Sweeper   Sweeper
}

func Load(path string) *Config {
	c, err := Read(path)
	if err != nil {
		log.Fatalf("%v", err)
	}
	return c
}

// Read 与 Load 相同，但把错误交给调用方
func Read(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, errorf("read config", err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errorf("unmarshal config", err)
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.admin.port", 8081)
	v.SetDefault("log.level", "info")

	v.SetDefault("bus.driver", "redis")
	v.SetDefault("bus.partitions", 6)
	v.SetDefault("bus.maxLen", 100000)
	v.SetDefault("bus.block", "2s")

	v.SetDefault("publisher.maxAttempts", 3)
	v.SetDefault("publisher.retryDelay", "1s")
	v.SetDefault("publisher.dedupTTL", "48h")

	v.SetDefault("notify.pageSize", 1000)
	v.SetDefault("notify.concurrency", 3)
	v.SetDefault("notify.pushConcurrency", 16)
	v.SetDefault("notify.bookGroup", "book-notification-group")
	v.SetDefault("notify.membershipGroup", "membership-notification-group")

	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.maxAttempts", 3)
	v.SetDefault("mail.retryDelay", "2s")
	v.SetDefault("mail.chunkSize", 100)
	v.SetDefault("mail.workers", 8)

	v.SetDefault("lending.loanDays", 14)
	v.SetDefault("lending.statusEvents", false)

	v.SetDefault("report.cacheTTL", "10m")

	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.at", "00:00")
	v.SetDefault("sweeper.timezone", "UTC")
	v.SetDefault("sweeper.lockTTL", "23h")
}
