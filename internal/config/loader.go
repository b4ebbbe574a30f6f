package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config carries every tunable of the server.
type Config struct {
	ServerAddr     string
	BackendBaseURL string
	FetchBatchSize int
	CacheMaxItems  int
	AllowedOrigins []string
	ExportDir      string
	ExportTimeout  time.Duration
	DefaultPage    int
}

// Default returns the config used when nothing is set.
func Default() Config {
	return Config{
		ServerAddr:     ":8080",
		BackendBaseURL: "http://localhost:9000/api",
		FetchBatchSize: 500,
		CacheMaxItems:  50000,
		AllowedOrigins: []string{"http://localhost:3000"},
		ExportDir:      "",
		ExportTimeout:  10 * time.Minute,
		DefaultPage:    50,
	}
}

// Load reads config.yaml from configPath with environment overrides
// (WEALTHOPS_SERVER_ADDR and friends).
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("WEALTHOPS")

	v.BindEnv("server.addr")
	v.BindEnv("backend.base_url")
	v.BindEnv("backend.batch_size")
	v.BindEnv("cache.max_items")
	v.BindEnv("export.dir")

	if err := v.ReadInConfig(); err != nil {
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("server.addr") {
		cfg.ServerAddr = v.GetString("server.addr")
	}
	if v.IsSet("backend.base_url") {
		cfg.BackendBaseURL = v.GetString("backend.base_url")
	}
	if v.IsSet("backend.batch_size") {
		cfg.FetchBatchSize = v.GetInt("backend.batch_size")
	}
	if v.IsSet("cache.max_items") {
		cfg.CacheMaxItems = v.GetInt("cache.max_items")
	}
	if v.IsSet("cors.allowed_origins") {
		cfg.AllowedOrigins = v.GetStringSlice("cors.allowed_origins")
	}
	if v.IsSet("export.dir") {
		cfg.ExportDir = v.GetString("export.dir")
	}
	if v.IsSet("export.timeout") {
		cfg.ExportTimeout = v.GetDuration("export.timeout")
	}
	if v.IsSet("query.default_page_size") {
		cfg.DefaultPage = v.GetInt("query.default_page_size")
	}

	return cfg, nil
}
