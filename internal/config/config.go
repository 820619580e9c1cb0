package config

import (
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTPPort    string
	DatabaseDSN string
	JWTSecret   string
	CORSOrigins string

	RedisAddr     string // boşsa cache invalidation devre dışı
	RedisPassword string

	KafkaBrokers string // virgülle ayrılmış, boşsa event yayını devre dışı
	KafkaTopic   string

	LogLevel string
}

var (
	logger     *logrus.Logger
	loggerOnce sync.Once
)

func Load() *Config {
	// .env varsa yükle, yoksa sessizce geç
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		DatabaseDSN:   getEnv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=kuyumcu port=5432 sslmode=disable"),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		CORSOrigins:   getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:  getEnv("KAFKA_BROKERS", ""),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "kuyumcu.ledger"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}

	log := GetLogger()

	// Production güvenlik kontrolleri
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment değişkeni tanımlanmamış! Production için zorunludur.")
	}
	if len(cfg.JWTSecret) < 32 {
		log.Fatal("JWT_SECRET en az 32 karakter olmalıdır!")
	}
	if cfg.DatabaseDSN == "host=localhost user=postgres password=postgres dbname=kuyumcu port=5432 sslmode=disable" {
		log.Warn("DATABASE_DSN varsayılan değer kullanılıyor, production için kendi Postgres bağlantını tanımla")
	}
	if cfg.RedisAddr == "" {
		log.Warn("REDIS_ADDR tanımlı değil, cache invalidation devre dışı")
	}
	if cfg.KafkaBrokers == "" {
		log.Warn("KAFKA_BROKERS tanımlı değil, ledger event yayını devre dışı")
	}

	return cfg
}

// GetLogger - tüm paketlerin kullandığı logrus singleton'ı
func GetLogger() *logrus.Logger {
	loggerOnce.Do(func() {
		logger = logrus.New()
		logger.SetOutput(os.Stdout)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		if lvl, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
			logger.SetLevel(lvl)
		}
	})
	return logger
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
