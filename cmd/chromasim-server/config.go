package main

import (
	"flag"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/daniacca/chromasim/internal/tissue"
)

// ServerConfig holds the server configuration
type ServerConfig struct {
	Addr         string
	LogLevel     string
	DBPath       string
	FramesDir    string
	ConfigFile   string
	StepInterval time.Duration
}

// configResolver defines how to resolve a single configuration value
type configResolver struct {
	flagName    string
	envVarName  string
	defaultVal  string
	description string
	setter      func(*ServerConfig, string)
}

const defaultStepIntervalMs = 100

// loadServerConfig resolves every option from its flag, then its
// environment variable, then its default.
func loadServerConfig() ServerConfig {
	cfg := ServerConfig{}

	resolvers := []configResolver{
		{
			flagName:    "addr",
			envVarName:  "CHROMASIM_ADDR",
			defaultVal:  ":8080",
			description: "HTTP listen address (e.g. :8080, 0.0.0.0:8080)",
			setter:      func(c *ServerConfig, v string) { c.Addr = v },
		},
		{
			flagName:    "log-level",
			envVarName:  "CHROMASIM_LOG_LEVEL",
			defaultVal:  "info",
			description: "Log level: debug, info, warn, error",
			setter:      func(c *ServerConfig, v string) { c.LogLevel = v },
		},
		{
			flagName:    "db-path",
			envVarName:  "CHROMASIM_DB_PATH",
			defaultVal:  "",
			description: "SQLite database recording every frame; empty disables recording",
			setter:      func(c *ServerConfig, v string) { c.DBPath = v },
		},
		{
			flagName:    "frames-dir",
			envVarName:  "CHROMASIM_FRAMES_DIR",
			defaultVal:  "./data",
			description: "Directory where frame histories are saved as JSON",
			setter:      func(c *ServerConfig, v string) { c.FramesDir = v },
		},
		{
			flagName:    "config-file",
			envVarName:  "CHROMASIM_CONFIG_FILE",
			defaultVal:  "",
			description: "optional tissue config JSON used when a run does not bring its own",
			setter:      func(c *ServerConfig, v string) { c.ConfigFile = v },
		},
		{
			flagName:    "step-interval-ms",
			envVarName:  "CHROMASIM_STEP_INTERVAL_MS",
			defaultVal:  strconv.Itoa(defaultStepIntervalMs),
			description: "Default interval between background steps, in milliseconds",
			setter: func(c *ServerConfig, v string) {
				if val, err := strconv.Atoi(v); err == nil && val > 0 {
					c.StepInterval = time.Duration(val) * time.Millisecond
				} else {
					log.Printf("Invalid value for step-interval-ms: %s, using default %d", v, defaultStepIntervalMs)
					c.StepInterval = defaultStepIntervalMs * time.Millisecond
				}
			},
		},
	}

	flagVars := make(map[string]*string)
	for _, resolver := range resolvers {
		flagVars[resolver.flagName] = flag.String(resolver.flagName, "", resolver.description)
	}

	flag.Parse()

	for _, resolver := range resolvers {
		var value string
		if *flagVars[resolver.flagName] != "" {
			value = *flagVars[resolver.flagName]
		} else if envValue := os.Getenv(resolver.envVarName); envValue != "" {
			value = envValue
		} else {
			value = resolver.defaultVal
		}
		resolver.setter(&cfg, value)
	}

	return cfg
}

// loadDefaultTissueConfig returns the tissue config new runs fall back
// to: the file at path, or the reference config when path is empty.
func loadDefaultTissueConfig(path string) (tissue.Config, error) {
	if path == "" {
		return tissue.DefaultConfig(), nil
	}
	return tissue.LoadConfigFile(path)
}
