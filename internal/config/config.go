package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
)

// Config is the server configuration.
type Config struct {
	// Host and Port the HTTP server binds to.
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`

	// DataDir overrides the XDG data directory for repository links and
	// persisted reviews.
	DataDir string `json:"dataDir,omitempty"`

	// DefaultAgent selects the reviewer agent used when a request names none.
	DefaultAgent string `json:"defaultAgent,omitempty"`

	// AgentsFile points at an agents.yaml overriding the built-in candidates.
	AgentsFile string `json:"agentsFile,omitempty"`

	LogLevel  string `json:"logLevel,omitempty"`
	LogPretty bool   `json:"logPretty,omitempty"`
}

// Default returns the configuration used before any file or environment
// override applies.
func Default() *Config {
	return &Config{
		Host:         "127.0.0.1",
		Port:         7440,
		DataDir:      GetPaths().StoragePath(),
		DefaultAgent: "codex",
		AgentsFile:   GetPaths().AgentsPath(),
		LogLevel:     "info",
	}
}

// Load loads configuration from multiple sources (priority order):
// 1. Defaults
// 2. Global config (~/.config/lareview/lareview.json or .jsonc)
// 3. Project config (<directory>/lareview.json or .jsonc)
// 4. LAREVIEW_CONFIG file
// 5. Environment variables
func Load(directory string) (*Config, error) {
	loadDotEnv(directory)

	config := Default()
	loaded := make(map[string]bool)

	loadOnce := func(path, baseDir string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[absPath] {
			return
		}
		if loadConfigFile(path, config, baseDir) == nil {
			loaded[absPath] = true
		}
	}

	globalDir := GetPaths().Config
	loadOnce(filepath.Join(globalDir, "lareview.json"), globalDir)
	loadOnce(filepath.Join(globalDir, "lareview.jsonc"), globalDir)

	if directory != "" {
		loadOnce(filepath.Join(directory, "lareview.json"), directory)
		loadOnce(filepath.Join(directory, "lareview.jsonc"), directory)
	}

	if configPath := os.Getenv("LAREVIEW_CONFIG"); configPath != "" {
		loadOnce(configPath, filepath.Dir(configPath))
	}

	applyEnvOverrides(config)

	return config, nil
}

// loadDotEnv loads .env files so their variables are visible to both the
// interpolation pass and the override pass. Existing variables win.
func loadDotEnv(directory string) {
	if directory != "" {
		_ = godotenv.Load(filepath.Join(directory, ".env"))
	}
	_ = godotenv.Load(filepath.Join(GetPaths().Config, ".env"))
}

// loadConfigFile loads a single config file with interpolation support.
func loadConfigFile(path string, config *Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err // File doesn't exist, skip
	}

	// Strip JSONC comments using tidwall/jsonc
	data = jsonc.ToJSON(data)
	data = interpolate(data, baseDir)

	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(config, &fileConfig)
	return nil
}

// interpolate processes {env:VAR} and {file:path} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	str := string(data)

	envPattern := regexp.MustCompile(`\{env:([^}]+)\}`)
	str = envPattern.ReplaceAllStringFunc(str, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})

	filePattern := regexp.MustCompile(`\{file:([^}]+)\}`)
	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		filePath := filePattern.FindStringSubmatch(match)[1]

		if strings.HasPrefix(filePath, "~/") {
			home := os.Getenv("HOME")
			filePath = filepath.Join(home, filePath[2:])
		} else if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(baseDir, filePath)
		}

		content, err := os.ReadFile(filePath)
		if err != nil {
			return match // Keep original if file not found
		}

		escaped := strings.ReplaceAll(string(content), "\\", "\\\\")
		escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
		escaped = strings.ReplaceAll(escaped, "\n", "\\n")
		escaped = strings.ReplaceAll(escaped, "\r", "\\r")
		escaped = strings.ReplaceAll(escaped, "\t", "\\t")

		return escaped
	})

	return []byte(str)
}

// mergeConfig merges source config into target.
func mergeConfig(target, source *Config) {
	if source.Host != "" {
		target.Host = source.Host
	}
	if source.Port != 0 {
		target.Port = source.Port
	}
	if source.DataDir != "" {
		target.DataDir = source.DataDir
	}
	if source.DefaultAgent != "" {
		target.DefaultAgent = source.DefaultAgent
	}
	if source.AgentsFile != "" {
		target.AgentsFile = source.AgentsFile
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}
	if source.LogPretty {
		target.LogPretty = true
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *Config) {
	if host := os.Getenv("LAREVIEW_HOST"); host != "" {
		config.Host = host
	}
	if port := os.Getenv("LAREVIEW_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil && n > 0 {
			config.Port = n
		}
	}
	if dir := os.Getenv("LAREVIEW_DATA_DIR"); dir != "" {
		config.DataDir = dir
	}
	if agent := os.Getenv("LAREVIEW_AGENT"); agent != "" {
		config.DefaultAgent = agent
	}
	if level := os.Getenv("LAREVIEW_LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}
}

// Save saves the configuration to a file.
func Save(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
