package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tailscale/hujson"
)

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	SummarySuffix string `json:"summary_suffix,omitempty"`
	SummaryDir    string `json:"summary_dir,omitempty"`
	LogLevel      string `json:"log_level,omitempty"`
	LockTimeout   string `json:"lock_timeout,omitempty"`
	Workers       int    `json:"workers,omitempty"`

	// Resolved values (computed, not serialized)
	EffectiveCwd   string        `json:"-"`
	SummaryDirAbs  string        `json:"-"` // empty means next to the mailbox
	LockTimeoutDur time.Duration `json:"-"`
	Level          zerolog.Level `json:"-"`

	// Sources tracks which config files were loaded (for diagnostics)
	Sources ConfigSources `json:"-"`
}

// ConfigSources tracks which config files were loaded.
type ConfigSources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project or explicit config if loaded, empty otherwise
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		SummarySuffix: ".msf",
		LogLevel:      "warn",
		LockTimeout:   "2s",
		Workers:       4,
	}
}

// ConfigFileName is the default project config file name.
const ConfigFileName = ".mailsum.json"

// defaultConfigFile is written by init-config.
const defaultConfigFile = `{
  // Appended to the mailbox path to name its summary file.
  "summary_suffix": ".msf",

  // Directory for summary files. Empty keeps them next to the mailbox.
  "summary_dir": "",

  // One of trace, debug, info, warn, error.
  "log_level": "warn",

  // How long sync waits for another writer of the same summary.
  "lock_timeout": "2s",

  // Summaries read in parallel by counts.
  "workers": 4,
}
`

// globalConfigPath returns $XDG_CONFIG_HOME/mailsum/config.json, falling
// back to ~/.config/mailsum/config.json. Empty when neither is known.
func globalConfigPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "mailsum", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "mailsum", "config.json")
	}

	return ""
}

// LoadConfigInput holds the inputs for LoadConfig.
type LoadConfigInput struct {
	WorkDirOverride  string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath       string            // -c/--config flag value
	LogLevelOverride string            // --log-level flag value; empty means no override
	Env              map[string]string // environment variables
}

// LoadConfig loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config
// 3. Project config file (.mailsum.json, if exists)
// 4. Explicit config file via ConfigPath (replaces 3)
// 5. CLI overrides.
func LoadConfig(input LoadConfigInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	} else if !filepath.IsAbs(workDir) {
		abs, err := filepath.Abs(workDir)
		if err != nil {
			return Config{}, fmt.Errorf("resolve working directory: %w", err)
		}

		workDir = abs
	}

	cfg := DefaultConfig()

	if path := globalConfigPath(input.Env); path != "" {
		globalCfg, loaded, err := loadConfigFile(path, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg.Sources.Global = path
			cfg = mergeConfig(cfg, globalCfg)
		}
	}

	projectPath, mustExist := filepath.Join(workDir, ConfigFileName), false
	if input.ConfigPath != "" {
		projectPath, mustExist = input.ConfigPath, true
		if !filepath.IsAbs(projectPath) {
			projectPath = filepath.Join(workDir, projectPath)
		}
	}

	projectCfg, loaded, err := loadConfigFile(projectPath, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg.Sources.Project = projectPath
		cfg = mergeConfig(cfg, projectCfg)
	}

	if input.LogLevelOverride != "" {
		cfg.LogLevel = input.LogLevelOverride
	}

	err = resolveConfig(&cfg, workDir)
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadConfigFile loads a config file. If mustExist is false, a missing file
// returns a zero config and loaded=false.
func loadConfigFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}

		if os.IsNotExist(err) {
			return Config{}, false, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}

		return Config{}, false, fmt.Errorf("%w: %s: %w", ErrConfigFileRead, path, err)
	}

	cfg, err := parseConfig(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return cfg, true, nil
}

func parseConfig(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	err = json.Unmarshal(standardized, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	// summary_dir may be set to "" to undo a global setting.
	var raw map[string]any

	_ = json.Unmarshal(standardized, &raw)

	if v, ok := raw["summary_dir"].(string); ok && v == "" {
		cfg.SummaryDir = resetDir
	}

	return cfg, nil
}

// resetDir marks an explicit empty summary_dir while merging.
const resetDir = "\x00"

func mergeConfig(base, overlay Config) Config {
	if overlay.SummarySuffix != "" {
		base.SummarySuffix = overlay.SummarySuffix
	}

	if overlay.SummaryDir == resetDir {
		base.SummaryDir = ""
	} else if overlay.SummaryDir != "" {
		base.SummaryDir = overlay.SummaryDir
	}

	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}

	if overlay.LockTimeout != "" {
		base.LockTimeout = overlay.LockTimeout
	}

	if overlay.Workers != 0 {
		base.Workers = overlay.Workers
	}

	return base
}

// resolveConfig validates cfg and fills its computed fields.
func resolveConfig(cfg *Config, workDir string) error {
	cfg.EffectiveCwd = workDir

	if cfg.SummarySuffix == "" || strings.ContainsRune(cfg.SummarySuffix, filepath.Separator) {
		return fmt.Errorf("%w: %q", ErrSuffixInvalid, cfg.SummarySuffix)
	}

	if cfg.Workers < 1 {
		return fmt.Errorf("%w: %d", ErrWorkersInvalid, cfg.Workers)
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		return fmt.Errorf("%w: %q", ErrLogLevelInvalid, cfg.LogLevel)
	}

	cfg.Level = level

	timeout, err := time.ParseDuration(cfg.LockTimeout)
	if err != nil || timeout <= 0 {
		return fmt.Errorf("%w: %q", ErrLockTimeoutInvalid, cfg.LockTimeout)
	}

	cfg.LockTimeoutDur = timeout

	cfg.SummaryDirAbs = ""
	if cfg.SummaryDir != "" {
		cfg.SummaryDirAbs = cfg.SummaryDir
		if !filepath.IsAbs(cfg.SummaryDirAbs) {
			cfg.SummaryDirAbs = filepath.Join(workDir, cfg.SummaryDirAbs)
		}
	}

	return nil
}

// resolveMailbox makes a mailbox argument absolute against the working
// directory.
func (c Config) resolveMailbox(arg string) string {
	if filepath.IsAbs(arg) {
		return arg
	}

	return filepath.Join(c.EffectiveCwd, arg)
}

// SummaryPath returns the summary file for the mailbox at path.
func (c Config) SummaryPath(mailbox string) string {
	name := filepath.Base(mailbox) + c.SummarySuffix

	if c.SummaryDirAbs == "" {
		return filepath.Join(filepath.Dir(mailbox), name)
	}

	return filepath.Join(c.SummaryDirAbs, name)
}
