package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/smacross/internal/adapters/storage"
	"github.com/alejandrodnm/smacross/internal/application/engine/backtest"
	"github.com/alejandrodnm/smacross/internal/domain"
	"github.com/alejandrodnm/smacross/internal/domain/strategy"
)

// Config es la configuración completa del backtester.
type Config struct {
	Strategy StrategyConfig `yaml:"strategy"`
	Backtest BacktestConfig `yaml:"backtest"`
	Source   SourceConfig   `yaml:"source"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// StrategyConfig selecciona la estrategia y sus ventanas.
type StrategyConfig struct {
	Name       string `yaml:"name"`
	FastPeriod int    `yaml:"fast_period"`
	SlowPeriod int    `yaml:"slow_period"`
}

// BacktestConfig controla la simulación de posiciones.
type BacktestConfig struct {
	Instrument         string  `yaml:"instrument"`
	StartingBalance    float64 `yaml:"starting_balance"`
	StopLossFraction   float64 `yaml:"stop_loss_fraction"`   // 0.02 = 2% bajo el precio de entrada
	TakeProfitFraction float64 `yaml:"take_profit_fraction"` // 0.05 = 5% sobre el precio de entrada
	Volume             int64   `yaml:"volume"`               // 0 = volumen de la barra
	Workers            int     `yaml:"workers"`              // barrido -all (0 = NumCPU*2)
}

// SourceConfig indica de dónde se leen las barras.
type SourceConfig struct {
	Kind       string           `yaml:"kind"` // sqlite | clickhouse
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// ClickHouseConfig contiene la conexión al almacén de barras en ClickHouse.
type ClickHouseConfig struct {
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Table    string `yaml:"table"`
}

// StorageConfig controla dónde se persisten barras y resultados.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}

// Parse interpreta el YAML, aplica overrides de entorno y defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)
	return &cfg, nil
}

// Validate comprueba periodos, balance, fracciones y origen antes de cualquier ejecución.
func (c *Config) Validate() error {
	if err := strategy.ValidatePeriods(c.Strategy.FastPeriod, c.Strategy.SlowPeriod); err != nil {
		return fmt.Errorf("config.Validate: %w", err)
	}
	if err := c.BacktestRules().Validate(); err != nil {
		return fmt.Errorf("config.Validate: %w", err)
	}
	if c.Backtest.Workers < 0 {
		return fmt.Errorf("config.Validate: %w", domain.InvalidConfig("workers must not be negative, got %d", c.Backtest.Workers))
	}
	switch c.Source.Kind {
	case "sqlite":
	case "clickhouse":
		if c.Source.ClickHouse.Addr == "" {
			return fmt.Errorf("config.Validate: %w", domain.InvalidConfig("clickhouse source requires addr"))
		}
	default:
		return fmt.Errorf("config.Validate: %w", domain.InvalidConfig("unknown source %q", c.Source.Kind))
	}
	return nil
}

// BacktestRules convierte la sección backtest al Config del engine.
func (c *Config) BacktestRules() backtest.Config {
	return backtest.Config{
		StartingBalance:    decimal.NewFromFloat(c.Backtest.StartingBalance),
		StopLossFraction:   decimal.NewFromFloat(c.Backtest.StopLossFraction),
		TakeProfitFraction: decimal.NewFromFloat(c.Backtest.TakeProfitFraction),
		Volume:             c.Backtest.Volume,
	}
}

// ClickHouse devuelve la configuración del adapter de ClickHouse.
func (c *Config) ClickHouse() storage.ClickHouseConfig {
	ch := c.Source.ClickHouse
	return storage.ClickHouseConfig{
		Addr:     ch.Addr,
		Database: ch.Database,
		Username: ch.Username,
		Password: ch.Password,
		Table:    ch.Table,
	}
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("BACKTEST_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("BACKTEST_INSTRUMENT"); v != "" {
		cfg.Backtest.Instrument = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		cfg.Source.ClickHouse.Password = v
	}
	if v := os.Getenv("BACKTEST_STARTING_BALANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Backtest.StartingBalance = f
		}
	}
}

// setDefaults rellena los valores ausentes con el setup clásico (SMA 10/100,
// balance 10000, SL 2%, TP 5%). Los valores presentes pero inválidos no se
// corrigen: Validate los rechaza.
func setDefaults(cfg *Config) {
	if cfg.Strategy.Name == "" {
		cfg.Strategy.Name = strategy.SMACrossoverName
	}
	if cfg.Strategy.FastPeriod == 0 {
		cfg.Strategy.FastPeriod = 10
	}
	if cfg.Strategy.SlowPeriod == 0 {
		cfg.Strategy.SlowPeriod = 100
	}
	if cfg.Backtest.StartingBalance == 0 {
		cfg.Backtest.StartingBalance = 10000
	}
	if cfg.Backtest.StopLossFraction == 0 {
		cfg.Backtest.StopLossFraction = 0.02
	}
	if cfg.Backtest.TakeProfitFraction == 0 {
		cfg.Backtest.TakeProfitFraction = 0.05
	}
	if cfg.Source.Kind == "" {
		cfg.Source.Kind = "sqlite"
	}
	if cfg.Source.ClickHouse.Table == "" {
		cfg.Source.ClickHouse.Table = "bars"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "smacross.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
