// Package config loads agencysim settings from .env files, the environment
// and optional assumptions, scoring and scenario files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	hjson "github.com/hjson/hjson-go/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/opensource-finance/agencysim/internal/domain"
	"github.com/opensource-finance/agencysim/internal/scoring"
	"github.com/opensource-finance/agencysim/internal/simulator"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "AGENCYSIM_"

// ErrUnsupportedFormat is returned for files that are neither YAML nor HJSON/JSON.
var ErrUnsupportedFormat = errors.New("unsupported config file format")

// Settings is the fully resolved process configuration.
type Settings struct {
	*domain.Config

	// Scoring holds the lead-scoring weights.
	Scoring scoring.Config

	// Tenants limits the async worker to these tenants (empty = all).
	Tenants []string

	// AsyncWorker starts the report worker outside the Pro tier.
	AsyncWorker bool

	// Debug enables debug logging.
	Debug bool
}

// Load builds Settings. envFiles are loaded with godotenv before the
// environment is read; with no arguments ./.env is tried and silently
// skipped when absent. Variables already set in the process win over
// .env values.
func Load(envFiles ...string) (*Settings, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		if len(envFiles) > 0 || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	cfg := domain.DefaultConfig()
	if strings.EqualFold(getenv("TIER"), string(domain.TierPro)) {
		cfg = domain.ProConfig()
	}

	s := &Settings{Config: cfg, Scoring: scoring.DefaultConfig()}
	if err := s.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.AssumptionsFile != "" {
		a, err := ReadAssumptions(cfg.AssumptionsFile, cfg.Assumptions)
		if err != nil {
			return nil, err
		}
		cfg.Assumptions = a
	}
	if err := s.applyAssumptionEnv(); err != nil {
		return nil, err
	}

	if cfg.ScoringFile != "" {
		sc, err := ReadScoring(cfg.ScoringFile)
		if err != nil {
			return nil, err
		}
		s.Scoring = sc
	}

	return s, nil
}

func (s *Settings) applyEnv() error {
	cfg := s.Config

	if v := getenv("HOST"); v != "" {
		cfg.Server.Host = v
	}
	if err := envInt("PORT", &cfg.Server.Port); err != nil {
		return err
	}

	if v := getenv("DB_DRIVER"); v != "" {
		cfg.Repository.Driver = v
	}
	if v := getenv("SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := getenv("PG_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if err := envInt("PG_PORT", &cfg.Repository.PostgresPort); err != nil {
		return err
	}
	if v := getenv("PG_USER"); v != "" {
		cfg.Repository.PostgresUser = v
	}
	if v := getenv("PG_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := getenv("PG_DB"); v != "" {
		cfg.Repository.PostgresDB = v
	}
	if v := getenv("PG_SSLMODE"); v != "" {
		cfg.Repository.PostgresSSLMode = v
	}

	if v := getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.Type = "redis"
		cfg.Cache.RedisAddr = v
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		cfg.Cache.RedisPassword = v
	}

	if v := getenv("NATS_URL"); v != "" {
		cfg.EventBus.Type = "nats"
		cfg.EventBus.NATSUrl = v
	}
	if v := getenv("NATS_TOKEN"); v != "" {
		cfg.EventBus.NATSToken = v
	}

	if v := getenv("ASSUMPTIONS_FILE"); v != "" {
		cfg.AssumptionsFile = v
	}
	if v := getenv("SCORING_FILE"); v != "" {
		cfg.ScoringFile = v
	}

	if v := getenv("TENANTS"); v != "" {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				s.Tenants = append(s.Tenants, t)
			}
		}
	}

	s.AsyncWorker = getenv("ASYNC_WORKER") == "true"
	s.Debug = getenv("DEBUG") == "true"
	if s.Debug {
		cfg.Logging.Level = "debug"
	}
	if v := getenv("TRACING"); v != "" {
		cfg.Tracing.Enabled = v == "true"
	}
	return nil
}

// applyAssumptionEnv lets the environment override the most commonly tuned
// business constants after the assumptions file has been merged.
func (s *Settings) applyAssumptionEnv() error {
	a := &s.Config.Assumptions
	for name, dst := range map[string]*float64{
		"COMMISSION_RATE":    &a.CommissionRate,
		"EXPENSE_RATIO":      &a.ExpenseRatio,
		"BASE_RETENTION":     &a.BaseRetention,
		"ELASTICITY":         &a.Elasticity,
		"CASH_WARNING_RATIO": &a.CashWarningRatio,
	} {
		if err := envFloat(name, dst); err != nil {
			return err
		}
	}
	return envInt("COMMISSION_LAG_MONTHS", &a.CommissionLagMonths)
}

// ReadAssumptions reads an assumptions file on top of base. Fields absent
// from the file keep their base value; fields present win, zero included.
// Maps merge key by key. base is not modified.
func ReadAssumptions(path string, base domain.Assumptions) (domain.Assumptions, error) {
	a := base.Clone()
	if err := decodeFile(path, &a); err != nil {
		return domain.Assumptions{}, fmt.Errorf("failed to read assumptions: %w", err)
	}
	return a, nil
}

// ReadScoring reads lead-scoring weights on top of scoring.DefaultConfig.
// Maps merge key by key; lists in the file replace the default lists.
func ReadScoring(path string) (scoring.Config, error) {
	c := scoring.DefaultConfig()
	if err := decodeFile(path, &c); err != nil {
		return scoring.Config{}, fmt.Errorf("failed to read scoring config: %w", err)
	}
	return c, nil
}

// ReadScenario reads a multi-month scenario file.
func ReadScenario(path string) (simulator.Scenario, error) {
	var sc simulator.Scenario
	if err := decodeFile(path, &sc); err != nil {
		return simulator.Scenario{}, fmt.Errorf("failed to read scenario: %w", err)
	}
	return sc, nil
}

// decodeFile picks the decoder from the file extension. YAML files use
// snake_case keys; HJSON and JSON files use the camelCase JSON names.
func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, v)
	case ".hjson", ".json":
		var raw any
		if err := hjson.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("invalid hjson: %w", err)
		}
		b, err := json.Marshal(raw)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, v)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

func getenv(name string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + name))
}

func envInt(name string, dst *int) error {
	v := getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
	}
	*dst = n
	return nil
}

func envFloat(name string, dst *float64) error {
	v := getenv(name)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
	}
	*dst = f
	return nil
}
