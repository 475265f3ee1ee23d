// Package config reads service configuration from the environment. A .env
// file in the working directory is loaded first when present; variables
// already set in the environment win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/pkg/tx/common"
)

const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

type Config struct {
	Port           string
	Store          string
	DatabaseURL    string
	MongoURI       string
	MongoDatabase  string
	TxMode         common.TxMode
	StatusPolicy   domain.TransitionPolicy
	Location       *time.Location
	RequestTimeout time.Duration

	KafkaBrokers string
	KafkaTopic   string
	KafkaGroupID string

	OutboxInterval time.Duration
	OutboxBatch    int

	LogLevel   string
	LogFormat  string
	BcryptCost int
}

// Load reads .env (if any) and then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return readCfg()
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func getint(k string, def int) (int, error) {
	v := getenv(k, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", k, v)
	}
	return n, nil
}

func readCfg() (Config, error) {
	c := Config{
		Port:          getenv("PORT", "8080"),
		Store:         strings.ToLower(getenv("STORE", StorePostgres)),
		DatabaseURL:   getenv("DATABASE_URL", ""),
		MongoURI:      getenv("MONGODB_URI", ""),
		MongoDatabase: getenv("MONGODB_DATABASE", "phoneshop"),
		KafkaBrokers:  getenv("KAFKA_BROKERS", ""),
		KafkaTopic:    getenv("KAFKA_TOPIC", "phoneshop.events"),
		KafkaGroupID:  getenv("KAFKA_GROUP_ID", "notification-service"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		LogFormat:     getenv("LOG_FORMAT", "json"),
	}

	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return Config{}, errors.New("DATABASE_URL is required for STORE=postgres")
		}
	case StoreMongo:
		if c.MongoURI == "" {
			return Config{}, errors.New("MONGODB_URI is required for STORE=mongo")
		}
	case StoreMemory:
	default:
		return Config{}, fmt.Errorf("STORE must be postgres, mongo or memory, got %q", c.Store)
	}

	var err error
	if c.TxMode, err = common.ParseTxMode(getenv("TX_MODE", "")); err != nil {
		return Config{}, err
	}
	if c.StatusPolicy, err = readPolicy(); err != nil {
		return Config{}, err
	}
	if c.Location, err = time.LoadLocation(getenv("TIMEZONE", "UTC")); err != nil {
		return Config{}, fmt.Errorf("TIMEZONE: %w", err)
	}

	timeoutMS, err := getint("REQUEST_TIMEOUT_MS", 2500)
	if err != nil {
		return Config{}, err
	}
	c.RequestTimeout = time.Duration(timeoutMS) * time.Millisecond

	pollMS, err := getint("OUTBOX_POLL_MS", 500)
	if err != nil {
		return Config{}, err
	}
	c.OutboxInterval = time.Duration(pollMS) * time.Millisecond
	if c.OutboxBatch, err = getint("OUTBOX_BATCH", 100); err != nil {
		return Config{}, err
	}
	if c.BcryptCost, err = getint("BCRYPT_COST", 10); err != nil {
		return Config{}, err
	}
	return c, nil
}

// readPolicy prefers STATUS_POLICY_FILE over the STATUS_POLICY name.
func readPolicy() (domain.TransitionPolicy, error) {
	if path := getenv("STATUS_POLICY_FILE", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return domain.TransitionPolicy{}, fmt.Errorf("STATUS_POLICY_FILE: %w", err)
		}
		return domain.ParseTransitionPolicy(data)
	}
	return domain.PolicyByName(getenv("STATUS_POLICY", domain.PolicyPermissive))
}
