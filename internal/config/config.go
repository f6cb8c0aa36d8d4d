package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	City   CityConfig   `yaml:"city" mapstructure:"city"`
	Grid   GridConfig   `yaml:"grid" mapstructure:"grid"`
	KPI    KPIConfig    `yaml:"kpi" mapstructure:"kpi"`
	Score  ScoreConfig  `yaml:"score" mapstructure:"score"`
	Ingest IngestConfig `yaml:"ingest" mapstructure:"ingest"`
	Output OutputConfig `yaml:"output" mapstructure:"output"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the persistence backends. Driver selects where
// spatial layers live; the run registry is always the SQLite file.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	RegistryDSN string `yaml:"registry_dsn" mapstructure:"registry_dsn"`
}

// CityConfig identifies the analysis area and its metric CRS.
type CityConfig struct {
	Name string `yaml:"name" mapstructure:"name"`
	// Proj is the proj4 string of the metric CRS used for area and
	// intersection math. Default is ETRS89 / UTM zone 32N (EPSG:25832).
	Proj string `yaml:"proj" mapstructure:"proj"`
}

// GridConfig configures the hex grid and the rasterizer.
type GridConfig struct {
	Resolution int `yaml:"resolution" mapstructure:"resolution"`
	// ScanStepDeg is the rasterizer's fixed lon/lat sampling increment in
	// degrees. It is independent of Resolution.
	ScanStepDeg float64 `yaml:"scan_step_deg" mapstructure:"scan_step_deg"`
}

// KPIConfig holds the per-KPI radii, category sets and weights.
type KPIConfig struct {
	GravityRadiusM      float64            `yaml:"gravity_radius_m" mapstructure:"gravity_radius_m"`
	EssentialsRadiusM   float64            `yaml:"essentials_radius_m" mapstructure:"essentials_radius_m"`
	DiversityRadiusM    float64            `yaml:"diversity_radius_m" mapstructure:"diversity_radius_m"`
	EssentialCategories []string           `yaml:"essential_categories" mapstructure:"essential_categories"`
	ModeWeights         map[string]float64 `yaml:"mode_weights" mapstructure:"mode_weights"`
	GreenCategories     []string           `yaml:"green_categories" mapstructure:"green_categories"`
	Workers             int                `yaml:"workers" mapstructure:"workers"`
}

// ScoreConfig configures normalization and composite scoring.
type ScoreConfig struct {
	WeightsFile string `yaml:"weights_file" mapstructure:"weights_file"`
	Method      string `yaml:"method" mapstructure:"method"`
}

// IngestConfig configures file ingestion.
type IngestConfig struct {
	RulesFile    string `yaml:"rules_file" mapstructure:"rules_file"`
	CSVDelimiter string `yaml:"csv_delimiter" mapstructure:"csv_delimiter"`
	Charset      string `yaml:"charset" mapstructure:"charset"`
	// Population table column names (defaults match the Stuttgart open
	// data portal export).
	DateColumn       string `yaml:"date_column" mapstructure:"date_column"`
	DistrictColumn   string `yaml:"district_column" mapstructure:"district_column"`
	AgeGroupColumn   string `yaml:"age_group_column" mapstructure:"age_group_column"`
	PopulationColumn string `yaml:"population_column" mapstructure:"population_column"`
}

// OutputConfig configures file export.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int     `yaml:"port" mapstructure:"port"`
	RateLimitQPS   float64 `yaml:"rate_limit_qps" mapstructure:"rate_limit_qps"`
	RateLimitBurst int     `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment wins.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GEODATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.registry_dsn", "geodata.db")
	v.SetDefault("city.name", "stuttgart")
	v.SetDefault("city.proj", "+proj=utm +zone=32 +ellps=GRS80 +units=m +no_defs")
	v.SetDefault("grid.resolution", 8)
	v.SetDefault("grid.scan_step_deg", 0.01)
	v.SetDefault("kpi.gravity_radius_m", 1500)
	v.SetDefault("kpi.essentials_radius_m", 800)
	v.SetDefault("kpi.diversity_radius_m", 300)
	v.SetDefault("kpi.essential_categories", []string{"supermarket", "pharmacy", "school", "doctors", "hospital"})
	v.SetDefault("kpi.mode_weights", map[string]float64{
		"s_bahn": 3.0,
		"u_bahn": 2.5,
		"tram":   2.0,
		"bus":    1.0,
		"other":  0.5,
	})
	v.SetDefault("kpi.green_categories", []string{"park", "forest", "grass", "meadow", "cemetery", "allotments"})
	v.SetDefault("kpi.workers", 4)
	v.SetDefault("score.method", "minmax")
	v.SetDefault("ingest.csv_delimiter", ";")
	v.SetDefault("ingest.charset", "utf-8")
	v.SetDefault("ingest.date_column", "Stichtag")
	v.SetDefault("ingest.district_column", "Stadtbezirk")
	v.SetDefault("ingest.age_group_column", "Alter in 10 Gruppen")
	v.SetDefault("ingest.population_column", "Einwohner")
	v.SetDefault("output.dir", "output")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_qps", 20)
	v.SetDefault("server.rate_limit_burst", 40)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration sections needed by the named scopes.
func (c *Config) Validate(scopes ...string) error {
	for _, scope := range scopes {
		switch scope {
		case "store":
			switch c.Store.Driver {
			case "sqlite", "postgres":
			default:
				return eris.Errorf("config: unsupported store driver %q", c.Store.Driver)
			}
			if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
				return eris.New("config: store.database_url is required for the postgres driver (GEODATA_STORE_DATABASE_URL)")
			}
		case "grid":
			if c.Grid.Resolution < 0 || c.Grid.Resolution > 15 {
				return eris.Errorf("config: grid.resolution %d out of range 0..15", c.Grid.Resolution)
			}
			if c.Grid.ScanStepDeg <= 0 {
				return eris.Errorf("config: grid.scan_step_deg must be positive, got %g", c.Grid.ScanStepDeg)
			}
		case "kpi":
			if c.KPI.GravityRadiusM <= 0 || c.KPI.EssentialsRadiusM <= 0 || c.KPI.DiversityRadiusM <= 0 {
				return eris.New("config: kpi radii must be positive")
			}
			if c.KPI.Workers < 1 {
				return eris.Errorf("config: kpi.workers must be at least 1, got %d", c.KPI.Workers)
			}
		case "city":
			if c.City.Name == "" {
				return eris.New("config: city.name must not be empty")
			}
			if c.City.Proj == "" {
				return eris.New("config: city.proj must not be empty")
			}
		case "serve":
			if c.Server.Port <= 0 || c.Server.Port > 65535 {
				return eris.Errorf("config: invalid server.port %d", c.Server.Port)
			}
		default:
			return eris.Errorf("config: unknown validation scope %q", scope)
		}
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
