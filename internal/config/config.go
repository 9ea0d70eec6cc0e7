package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/choropleth/internal/choropleth"
)

// Config holds the full application configuration.
type Config struct {
	Stats    StatsConfig    `yaml:"stats" mapstructure:"stats"`
	Geometry GeometryConfig `yaml:"geometry" mapstructure:"geometry"`
	Scale    ScaleConfig    `yaml:"scale" mapstructure:"scale"`
	Render   RenderConfig   `yaml:"render" mapstructure:"render"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StatsConfig locates the per-region statistic dataset.
type StatsConfig struct {
	URL        string `yaml:"url" mapstructure:"url"`
	Format     string `yaml:"format" mapstructure:"format"` // json, csv, xlsx, sqlite, postgres
	KeyField   string `yaml:"key_field" mapstructure:"key_field"`
	ValueField string `yaml:"value_field" mapstructure:"value_field"`
	NameField  string `yaml:"name_field" mapstructure:"name_field"`
	GroupField string `yaml:"group_field" mapstructure:"group_field"`
	KeyWidth   int    `yaml:"key_width" mapstructure:"key_width"`
	Sheet      string `yaml:"sheet" mapstructure:"sheet"`
	Table      string `yaml:"table" mapstructure:"table"`
}

// GeometryConfig locates the region geometry dataset.
type GeometryConfig struct {
	URL        string `yaml:"url" mapstructure:"url"`
	Format     string `yaml:"format" mapstructure:"format"` // geojson, shapefile, postgis
	KeyField   string `yaml:"key_field" mapstructure:"key_field"`
	KeyWidth   int    `yaml:"key_width" mapstructure:"key_width"`
	Table      string `yaml:"table" mapstructure:"table"`
	GeomColumn string `yaml:"geom_column" mapstructure:"geom_column"`
}

// ScaleConfig configures classification.
type ScaleConfig struct {
	BucketCount int      `yaml:"bucket_count" mapstructure:"bucket_count"`
	Palette     []string `yaml:"palette" mapstructure:"palette"`
	NoDataColor string   `yaml:"no_data_color" mapstructure:"no_data_color"`
	StrictKeys  bool     `yaml:"strict_keys" mapstructure:"strict_keys"`
}

// Options converts the scale section to choropleth build options.
func (s ScaleConfig) Options() choropleth.Options {
	return choropleth.Options{
		BucketCount: s.BucketCount,
		Palette:     s.Palette,
		NoDataColor: s.NoDataColor,
		StrictKeys:  s.StrictKeys,
	}
}

// RenderConfig configures SVG output.
type RenderConfig struct {
	Width       float64 `yaml:"width" mapstructure:"width"`
	Height      float64 `yaml:"height" mapstructure:"height"`
	StrokeColor string  `yaml:"stroke_color" mapstructure:"stroke_color"`
	StrokeWidth float64 `yaml:"stroke_width" mapstructure:"stroke_width"`
	Legend      bool    `yaml:"legend" mapstructure:"legend"`
	Title       string  `yaml:"title" mapstructure:"title"`
	Description string  `yaml:"description" mapstructure:"description"`
	// Borders is an optional outline layer drawn under the regions. An
	// empty URL (and a non-postgis format) disables it.
	Borders GeometryConfig `yaml:"borders" mapstructure:"borders"`
}

// HasBorders reports whether a border layer is configured.
func (r RenderConfig) HasBorders() bool {
	return r.Borders.URL != "" || r.Borders.Format == "postgis"
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// StoreConfig configures the Postgres backend used by postgres/postgis
// sources and the import command.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Schema      string `yaml:"schema" mapstructure:"schema"`
}

// FetchConfig configures dataset downloads.
type FetchConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	TempDir     string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// Timeout is the per-request download timeout.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSecs) * time.Second
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CHOROPLETH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("stats.url", "https://raw.githubusercontent.com/no-stack-dub-sack/testable-projects-fcc/master/src/data/choropleth_map/for_user_education.json")
	v.SetDefault("stats.format", "json")
	v.SetDefault("stats.key_field", "fips")
	v.SetDefault("stats.value_field", "bachelorsOrHigher")
	v.SetDefault("stats.name_field", "area_name")
	v.SetDefault("stats.group_field", "state")
	v.SetDefault("stats.key_width", 5)
	v.SetDefault("stats.table", "region_stats")
	v.SetDefault("geometry.url", "https://www2.census.gov/geo/tiger/GENZ2023/shp/cb_2023_us_county_20m.zip")
	v.SetDefault("geometry.format", "shapefile")
	v.SetDefault("geometry.key_field", "GEOID")
	v.SetDefault("geometry.key_width", 5)
	v.SetDefault("geometry.table", "region_geometries")
	v.SetDefault("geometry.geom_column", "geom")
	v.SetDefault("scale.bucket_count", len(choropleth.BuGn9))
	v.SetDefault("scale.palette", choropleth.BuGn9)
	v.SetDefault("scale.no_data_color", choropleth.DefaultNoDataColor)
	v.SetDefault("render.width", 960)
	v.SetDefault("render.height", 600)
	v.SetDefault("render.stroke_color", "#ffffff")
	v.SetDefault("render.stroke_width", 0.25)
	v.SetDefault("render.legend", true)
	v.SetDefault("render.title", "United States Educational Attainment")
	v.SetDefault("render.description", "Percentage of adults age 25 and older with a bachelor's degree or higher (2010-2014)")
	v.SetDefault("render.borders.url", "https://www2.census.gov/geo/tiger/GENZ2023/shp/cb_2023_us_state_20m.zip")
	v.SetDefault("render.borders.format", "shapefile")
	v.SetDefault("render.borders.key_field", "GEOID")
	v.SetDefault("render.borders.key_width", 2)
	v.SetDefault("render.borders.table", "region_borders")
	v.SetDefault("render.borders.geom_column", "geom")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("store.schema", "choropleth")
	v.SetDefault("fetch.user_agent", "choropleth/1.0")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.temp_dir", "/tmp/choropleth")
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
