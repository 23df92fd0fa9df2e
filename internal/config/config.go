package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration.
type Config struct {
	Env      string         `yaml:"env" mapstructure:"env"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// AnalysisConfig configures ledger discovery, graph building and classification.
type AnalysisConfig struct {
	DataDir             string        `yaml:"data_dir" mapstructure:"data_dir"`
	RootFile            string        `yaml:"root_file" mapstructure:"root_file"`
	RootNodePAN         string        `yaml:"root_node_pan" mapstructure:"root_node_pan"`
	DataStartRow        int           `yaml:"data_start_row" mapstructure:"data_start_row"`
	Columns             ColumnMapping `yaml:"columns" mapstructure:"columns"`
	BogusThreshold      float64       `yaml:"bogus_threshold" mapstructure:"bogus_threshold"`
	RiskThreshold       float64       `yaml:"risk_threshold" mapstructure:"risk_threshold"`
	MaxCacheSize        int           `yaml:"max_cache_size" mapstructure:"max_cache_size"`
	MaxDepth            int           `yaml:"max_depth" mapstructure:"max_depth"`
	ContinueOnFileError bool          `yaml:"continue_on_file_error" mapstructure:"continue_on_file_error"`
	SkipInvalidRows     bool          `yaml:"skip_invalid_rows" mapstructure:"skip_invalid_rows"`
	NameWorkers         int           `yaml:"name_workers" mapstructure:"name_workers"`
}

// ColumnMapping holds 0-indexed ledger column positions.
type ColumnMapping struct {
	InfoCode       int `yaml:"info_code" mapstructure:"info_code"`
	PAN            int `yaml:"pan" mapstructure:"pan"`
	Amount         int `yaml:"amount" mapstructure:"amount"`
	PartyName      int `yaml:"party_name" mapstructure:"party_name"`
	TaxpayerType   int `yaml:"taxpayer_type" mapstructure:"taxpayer_type"`
	BusinessNature int `yaml:"business_nature" mapstructure:"business_nature"`
	TurnoverRange  int `yaml:"turnover_range" mapstructure:"turnover_range"`
	IncomeRange    int `yaml:"income_range" mapstructure:"income_range"`
}

// OutputConfig configures where results are written.
type OutputConfig struct {
	Dir            string `yaml:"dir" mapstructure:"dir"`
	ExcelFilename  string `yaml:"excel_filename" mapstructure:"excel_filename"`
	ReportFilename string `yaml:"report_filename" mapstructure:"report_filename"`
	JSONFilename   string `yaml:"json_filename" mapstructure:"json_filename"`
}

// StoreConfig configures the run persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host           string   `yaml:"host" mapstructure:"host"`
	Port           int      `yaml:"port" mapstructure:"port"`
	RateLimit      float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// environments holds per-environment overrides applied on top of defaults.
var environments = map[string]map[string]any{
	"development": {
		"log.level":                       "debug",
		"log.format":                      "console",
		"analysis.continue_on_file_error": true,
	},
	"production": {
		"log.level":                       "info",
		"log.format":                      "json",
		"analysis.continue_on_file_error": false,
	},
	"testing": {
		"log.level":                       "warn",
		"analysis.continue_on_file_error": true,
		"analysis.data_dir":               "testdata/ledgers",
		"output.dir":                      "testdata/output",
	},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "default")
	v.SetDefault("analysis.data_dir", "data/input")
	v.SetDefault("analysis.root_file", "")
	v.SetDefault("analysis.root_node_pan", "")
	v.SetDefault("analysis.data_start_row", 19)
	v.SetDefault("analysis.columns.info_code", 1)
	v.SetDefault("analysis.columns.pan", 3)
	v.SetDefault("analysis.columns.amount", 7)
	v.SetDefault("analysis.columns.party_name", 4)
	v.SetDefault("analysis.columns.taxpayer_type", 5)
	v.SetDefault("analysis.columns.business_nature", 9)
	v.SetDefault("analysis.columns.turnover_range", 10)
	v.SetDefault("analysis.columns.income_range", 11)
	v.SetDefault("analysis.bogus_threshold", 0.5)
	v.SetDefault("analysis.risk_threshold", 70.0)
	v.SetDefault("analysis.max_cache_size", 10000)
	v.SetDefault("analysis.max_depth", 0)
	v.SetDefault("analysis.continue_on_file_error", true)
	v.SetDefault("analysis.skip_invalid_rows", true)
	v.SetDefault("analysis.name_workers", 4)
	v.SetDefault("output.dir", "data/output")
	v.SetDefault("output.excel_filename", "gst_analysis_results.xlsx")
	v.SetDefault("output.report_filename", "gst_analysis_report.txt")
	v.SetDefault("output.json_filename", "gst_table_data.json")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "gst-analysis.db")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration from file and environment. A non-empty env selects
// an environment preset; it can also be set through GST_ENV. Explicit file and
// environment-variable values win over the preset.
func Load(env string) (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment
	v.SetEnvPrefix("GST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	if env == "" {
		env = v.GetString("env")
	}
	applyEnvironment(v, env)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.Env = env

	return &cfg, nil
}

// applyEnvironment layers the preset under explicit values: a preset key is
// only applied when neither the config file nor the environment set it.
func applyEnvironment(v *viper.Viper, env string) {
	if env == "" || env == "default" {
		return
	}
	preset, ok := environments[env]
	if !ok {
		zap.L().Warn("config: unknown environment, using defaults", zap.String("env", env))
		return
	}
	for key, val := range preset {
		if v.InConfig(key) {
			continue
		}
		if _, set := os.LookupEnv("GST_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))); set {
			continue
		}
		v.Set(key, val)
	}
}

// Environments returns the names of the known environment presets.
func Environments() []string {
	return []string{"default", "development", "production", "testing"}
}

// RootPAN returns the configured root identifier, falling back to the root
// file name prefix before the first underscore.
func (c AnalysisConfig) RootPAN() string {
	if c.RootNodePAN != "" {
		return strings.ToUpper(c.RootNodePAN)
	}
	base := filepath.Base(c.RootFile)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	pan, _, _ := strings.Cut(base, "_")
	return strings.ToUpper(pan)
}

// RootPath returns the full path of the root ledger.
func (c AnalysisConfig) RootPath() string {
	return filepath.Join(c.DataDir, c.RootFile)
}

// Validate checks analysis parameters.
func (c *Config) Validate() error {
	a := c.Analysis
	if a.RootFile == "" {
		return eris.New("config: analysis.root_file is required (GST_ANALYSIS_ROOT_FILE)")
	}
	if a.BogusThreshold < 0 || a.BogusThreshold > 1 {
		return eris.Errorf("config: invalid bogus_threshold %.3f (must be 0-1)", a.BogusThreshold)
	}
	if a.RiskThreshold < 0 || a.RiskThreshold > 100 {
		return eris.Errorf("config: invalid risk_threshold %.1f (must be 0-100)", a.RiskThreshold)
	}
	if a.MaxCacheSize <= 0 {
		return eris.Errorf("config: max_cache_size must be positive, got %d", a.MaxCacheSize)
	}
	if a.DataStartRow < 1 {
		return eris.Errorf("config: data_start_row must be >= 1, got %d", a.DataStartRow)
	}
	for name, col := range map[string]int{
		"pan":       a.Columns.PAN,
		"info_code": a.Columns.InfoCode,
		"amount":    a.Columns.Amount,
	} {
		if col < 0 {
			return eris.Errorf("config: missing required column mapping %s", name)
		}
	}
	return nil
}

// WriteSample writes the default configuration as YAML to path.
func WriteSample(path string) error {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return eris.Wrap(err, "config: unmarshal defaults")
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return eris.Wrap(err, "config: marshal sample")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "config: create sample dir")
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "config: write sample")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
