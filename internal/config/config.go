package config

import (
	"fmt"
	"os"
	"strconv"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config carries the engine's environment configuration. Values come from
// the process environment, with a .env file loaded when present.
type Config struct {
	// DBType selects the database driver: sqlite or postgres.
	DBType string
	// DBPath is the sqlite database file path.
	DBPath string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// RedisURL enables the comparison stat cache when set.
	RedisURL string

	// Compression names the codec for version content blobs.
	Compression string

	// KeepVersions is the per-content retention floor for the cleanup job.
	KeepVersions int
}

// LoadConfig reads the engine configuration from the environment.
func LoadConfig() *Config {
	return &Config{
		DBType:       env("REVISION_DB_TYPE", "sqlite"),
		DBPath:       env("REVISION_DB_PATH", ".revision/revision.db"),
		DBHost:       env("REVISION_DB_HOST", "localhost"),
		DBPort:       env("REVISION_DB_PORT", "5432"),
		DBUser:       env("REVISION_DB_USER", "revision"),
		DBPassword:   env("REVISION_DB_PASSWORD", ""),
		DBName:       env("REVISION_DB_NAME", "revision"),
		RedisURL:     env("REVISION_REDIS_URL", ""),
		Compression:  env("REVISION_COMPRESSION", "gzip"),
		KeepVersions: envInt("REVISION_KEEP_VERSIONS", 50),
	}
}

// GetDb opens the configured database connection.
func GetDb(cnf *Config) *gorm.DB {
	var db *gorm.DB
	var err error

	switch cnf.DBType {
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			cnf.DBHost, cnf.DBPort, cnf.DBUser, cnf.DBPassword, cnf.DBName)
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
	default:
		db, err = gorm.Open(sqlite.Open(cnf.DBPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
	}
	if err != nil {
		logrus.Fatalf("error connecting to database: %v", err)
	}

	return db
}

// GetRedis opens the configured redis connection, or returns nil when no
// redis is configured.
func GetRedis(cnf *Config) *redis.Client {
	if cnf.RedisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(cnf.RedisURL)
	if err != nil {
		logrus.Fatalf("error parsing redis url: %v", err)
	}
	return redis.NewClient(opts)
}

func env(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		logrus.Warnf("invalid %s=%q, using %d", key, value, fallback)
		return fallback
	}
	return n
}
