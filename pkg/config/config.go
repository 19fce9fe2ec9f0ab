package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store and identity drivers. The local identity driver keeps accounts in
// the configured store; the memory driver keeps them in one process.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverFirebase = "firebase"
	DriverLocal    = "local"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	GRPC         GRPCConfig         `mapstructure:"grpc"`
	Dashboard    DashboardConfig    `mapstructure:"dashboard"`
	Store        StoreConfig        `mapstructure:"store"`
	Identity     IdentityConfig     `mapstructure:"identity"`
	Firebase     FirebaseConfig     `mapstructure:"firebase"`
	Provisioning ProvisioningConfig `mapstructure:"provisioning"`
	Bootstrap    BootstrapConfig    `mapstructure:"bootstrap"`
	Etcd         EtcdConfig         `mapstructure:"etcd"`
	Redis        RedisConfig        `mapstructure:"redis"`
	MySQL        MySQLConfig        `mapstructure:"mysql"`
	MongoDB      MongoDBConfig      `mapstructure:"mongodb"`
	RabbitMQ     RabbitMQConfig     `mapstructure:"rabbitmq"`
	Log          LogConfig          `mapstructure:"log"`
}

type ServerConfig struct {
	Name string `mapstructure:"name"`
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type GRPCConfig struct {
	Port int `mapstructure:"port"`
}

type DashboardConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
	// APIURL is used when the API cannot be discovered through etcd.
	APIURL         string        `mapstructure:"api_url"`
	APIGRPCAddr    string        `mapstructure:"api_grpc_addr"`
	APIServiceName string        `mapstructure:"api_service_name"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type StoreConfig struct {
	Driver       string        `mapstructure:"driver"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type IdentityConfig struct {
	Driver      string        `mapstructure:"driver"`
	TokenSecret string        `mapstructure:"token_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
}

type FirebaseConfig struct {
	ProjectID       string         `mapstructure:"project_id"`
	DatabaseURL     string         `mapstructure:"database_url"`
	CredentialsFile string         `mapstructure:"credentials_file"`
	APIKey          string         `mapstructure:"api_key"`
	Emulator        EmulatorConfig `mapstructure:"emulator"`
}

type EmulatorConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	AuthHost     string `mapstructure:"auth_host"`
	DatabaseHost string `mapstructure:"database_host"`
}

type ProvisioningConfig struct {
	RollbackOrphans bool `mapstructure:"rollback_orphans"`
}

// BootstrapConfig seeds a superadmin account when the API starts.
type BootstrapConfig struct {
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
}

// Enabled reports whether an admin seed is configured.
func (c *BootstrapConfig) Enabled() bool {
	return c.AdminEmail != ""
}

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Prefix      string        `mapstructure:"prefix"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
	Channel  string `mapstructure:"channel"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type MongoDBConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
}

// Load reads the YAML file at configPath (skipped when empty) and applies
// CEATS_* environment overrides, e.g. CEATS_STORE_DRIVER=firebase.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CEATS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")

		// Read config file
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "ceats-api")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("grpc.port", 50051)
	v.SetDefault("dashboard.host", "0.0.0.0")
	v.SetDefault("dashboard.port", 8080)
	v.SetDefault("dashboard.api_url", "http://localhost:3000")
	v.SetDefault("dashboard.api_grpc_addr", "localhost:50051")
	v.SetDefault("dashboard.api_service_name", "ceats-api")
	v.SetDefault("dashboard.request_timeout", 30*time.Second)
	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.poll_interval", 2*time.Second)
	v.SetDefault("identity.driver", DriverMemory)
	v.SetDefault("identity.token_secret", "")
	v.SetDefault("identity.token_ttl", time.Hour)
	v.SetDefault("firebase.project_id", "")
	v.SetDefault("firebase.database_url", "")
	v.SetDefault("firebase.credentials_file", "")
	v.SetDefault("firebase.api_key", "")
	v.SetDefault("firebase.emulator.enabled", false)
	v.SetDefault("firebase.emulator.auth_host", "127.0.0.1:9099")
	v.SetDefault("firebase.emulator.database_host", "127.0.0.1:8087")
	v.SetDefault("provisioning.rollback_orphans", false)
	v.SetDefault("bootstrap.admin_email", "")
	v.SetDefault("bootstrap.admin_password", "")
	v.SetDefault("etcd.endpoints", []string{})
	v.SetDefault("etcd.dial_timeout", 5)
	v.SetDefault("etcd.prefix", "/services/")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.channel", "ceats:store:changes")
	v.SetDefault("mysql.host", "")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mongodb.uri", "")
	v.SetDefault("mongodb.database", "ceats")
	v.SetDefault("mongodb.collection", "audit_logs")
	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "orders_topic")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})
}

// Validate checks driver names and the settings each driver needs.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverRedis, DriverFirebase:
	default:
		return fmt.Errorf("invalid store.driver %q: must be memory, redis, or firebase", c.Store.Driver)
	}

	switch c.Identity.Driver {
	case DriverMemory, DriverLocal:
		if c.Identity.TokenSecret == "" {
			return fmt.Errorf("identity.token_secret is required for the %s identity driver", c.Identity.Driver)
		}
	case DriverFirebase:
	default:
		return fmt.Errorf("invalid identity.driver %q: must be memory, local, or firebase", c.Identity.Driver)
	}

	// Accounts held by one process cannot back data shared with another.
	if c.Identity.Driver == DriverMemory && c.Store.Driver != DriverMemory {
		return fmt.Errorf("identity.driver memory keeps accounts in process and cannot be used with store.driver %s: use local or firebase", c.Store.Driver)
	}

	if c.Bootstrap.AdminEmail != "" && c.Bootstrap.AdminPassword == "" {
		return fmt.Errorf("bootstrap.admin_password is required when bootstrap.admin_email is set")
	}

	if c.UsesFirebase() {
		var missing []string
		if c.Firebase.ProjectID == "" {
			missing = append(missing, "firebase.project_id")
		}
		if c.Store.Driver == DriverFirebase && c.Firebase.DatabaseURL == "" && !c.Firebase.Emulator.Enabled {
			missing = append(missing, "firebase.database_url")
		}
		if c.Identity.Driver == DriverFirebase && c.Firebase.APIKey == "" && !c.Firebase.Emulator.Enabled {
			missing = append(missing, "firebase.api_key")
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing required firebase settings: %v", missing)
		}
	}

	return nil
}

// UsesFirebase reports whether any adapter targets Firebase.
func (c *Config) UsesFirebase() bool {
	return c.Store.Driver == DriverFirebase || c.Identity.Driver == DriverFirebase
}

func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

// Enabled reports whether a MySQL host is configured.
func (c *MySQLConfig) Enabled() bool {
	return c.Host != ""
}
