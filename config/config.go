package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	Port        string
	BindAddress string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	RedisHost   string
	RedisPort   string
	JWTSecret   string
	TokenTTL    time.Duration
	CacheTTL    time.Duration

	// Initial admin seeded by the migrate command when all three are set.
	AdminName     string
	AdminEmail    string
	AdminPassword string
}

// fileConfig mirrors the optional YAML config file. Any field left empty in
// the file keeps the value already resolved from the environment.
type fileConfig struct {
	Server struct {
		Port        string `yaml:"port"`
		BindAddress string `yaml:"bind_address"`
	} `yaml:"server"`
	Database struct {
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
	} `yaml:"database"`
	Redis struct {
		Host string `yaml:"host"`
		Port string `yaml:"port"`
	} `yaml:"redis"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		TokenTTL  string `yaml:"token_ttl"`
	} `yaml:"auth"`
	Cache struct {
		TTL string `yaml:"ttl"`
	} `yaml:"cache"`
}

func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		BindAddress:   getEnv("BIND_ADDRESS", "localhost"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "quizapi"),
		DBPassword:    getEnv("DB_PASSWORD", "quizapi123"),
		DBName:        getEnv("DB_NAME", "quizapi"),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		JWTSecret:     getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		TokenTTL:      time.Duration(getEnvInt("TOKEN_TTL_MINUTES", 60)) * time.Minute,
		CacheTTL:      time.Duration(getEnvInt("CACHE_TTL_SECONDS", 60)) * time.Second,
		AdminName:     getEnv("ADMIN_NAME", ""),
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
	}
}

// LoadWithFile resolves env config first, then overlays non-empty values from
// the YAML file at path. A missing file is not an error.
func LoadWithFile(path string) (*Config, error) {
	cfg := Load()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	overlay(&cfg.Port, fc.Server.Port)
	overlay(&cfg.BindAddress, fc.Server.BindAddress)
	overlay(&cfg.DBHost, fc.Database.Host)
	overlay(&cfg.DBPort, fc.Database.Port)
	overlay(&cfg.DBUser, fc.Database.User)
	overlay(&cfg.DBPassword, fc.Database.Password)
	overlay(&cfg.DBName, fc.Database.Name)
	overlay(&cfg.RedisHost, fc.Redis.Host)
	overlay(&cfg.RedisPort, fc.Redis.Port)
	overlay(&cfg.JWTSecret, fc.Auth.JWTSecret)
	if d, err := time.ParseDuration(fc.Auth.TokenTTL); err == nil && fc.Auth.TokenTTL != "" {
		cfg.TokenTTL = d
	}
	if d, err := time.ParseDuration(fc.Cache.TTL); err == nil && fc.Cache.TTL != "" {
		cfg.CacheTTL = d
	}

	return cfg, nil
}

func overlay(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

func InitRedis(cfg *Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	return client
}
