package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kacperjurak/goloadflow"
)

// ArrayFlags collects a repeatable float flag, e.g. -load -40 -load -80.
type ArrayFlags []float64

func (a *ArrayFlags) String() string {
	parts := make([]string, len(*a))
	for i, v := range *a {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func (a *ArrayFlags) Set(value string) error {
	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return err
	}
	*a = append(*a, val)
	return nil
}

// Config holds all configuration settings for the load-flow solver
type Config struct {
	Method          string
	LinearSolver    string
	Tolerance       float64
	MaxIterations   int
	NumericJacobian bool
	File            string
	Quiet           bool
	HTTPServer      bool
	Workers         int
	EnableProfiling bool
	Loads           ArrayFlags
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port            string
	WorkerCount     int
	WebhookURL      string
	CacheSize       int
	EnableProfiling bool
	ProfilingPort   string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Method:        goloadflow.NewtonRaphson,
		LinearSolver:  "gauss",
		Tolerance:     goloadflow.DefaultTolerance,
		MaxIterations: goloadflow.DefaultMaxIterations,
		Workers:       4,
	}
}

// DefaultServerConfig returns server configuration with sensible defaults
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:          "8080",
		WorkerCount:   5,
		CacheSize:     256,
		ProfilingPort: "6060",
	}
}

// Settings converts the solver part of the configuration.
func (c *Config) Settings() goloadflow.Settings {
	return goloadflow.Settings{
		Tolerance:       c.Tolerance,
		MaxIterations:   c.MaxIterations,
		Method:          c.Method,
		LinearSolver:    c.LinearSolver,
		NumericJacobian: c.NumericJacobian,
		Quiet:           c.Quiet,
	}
}

// LoadEnv applies GOFLOW_* overrides, reading a .env file first when one
// exists. Either config may be nil.
func LoadEnv(cfg *Config, scfg *ServerConfig) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}

	if cfg != nil {
		setString(&cfg.Method, "GOFLOW_METHOD")
		setString(&cfg.LinearSolver, "GOFLOW_LINEAR_SOLVER")
		if err := setFloat(&cfg.Tolerance, "GOFLOW_TOLERANCE"); err != nil {
			return err
		}
		if err := setInt(&cfg.MaxIterations, "GOFLOW_MAX_ITERATIONS"); err != nil {
			return err
		}
		if err := setBool(&cfg.NumericJacobian, "GOFLOW_NUMERIC_JACOBIAN"); err != nil {
			return err
		}
		if err := setBool(&cfg.Quiet, "GOFLOW_QUIET"); err != nil {
			return err
		}
	}

	if scfg != nil {
		setString(&scfg.Port, "GOFLOW_PORT")
		setString(&scfg.WebhookURL, "GOFLOW_WEBHOOK_URL")
		setString(&scfg.ProfilingPort, "GOFLOW_PROFILING_PORT")
		if err := setInt(&scfg.WorkerCount, "GOFLOW_WORKERS"); err != nil {
			return err
		}
		if err := setInt(&scfg.CacheSize, "GOFLOW_CACHE_SIZE"); err != nil {
			return err
		}
		if err := setBool(&scfg.EnableProfiling, "GOFLOW_PROFILING"); err != nil {
			return err
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		log.Printf("⚙️  %s override: %s", key, v)
		*dst = v
	}
}

func setFloat(dst *float64, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}
