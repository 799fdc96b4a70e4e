package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// AppDir is the directory name under XDG_CONFIG_HOME and XDG_DATA_HOME.
	AppDir = "pdx"
	// ConfigFile is the config file name.
	ConfigFile = "config.yml"

	// EnvDataDir overrides data_dir.
	EnvDataDir = "PDX_DATA_DIR"
	// EnvOllamaHost overrides ollama_url, matching the variable Ollama itself reads.
	EnvOllamaHost = "OLLAMA_HOST"
)

// ConfigPath returns the path to the config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/pdx/config.yml.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, AppDir, ConfigFile)
}

// DefaultDataDir returns where the databases live when data_dir is unset.
// Respects XDG_DATA_HOME, defaults to ~/.local/share/pdx.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return AppDir
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, AppDir)
}

// HelpfulConfigMessage explains where configuration comes from.
func HelpfulConfigMessage() string {
	configPath := ConfigPath()
	return fmt.Sprintf(`Configuration is read from %s (optional).

Example:
  mkdir -p %s
  cat > %s <<EOF
  data_dir: ~/papers/pdx
  ollama_url: http://localhost:11434
  generation_model: llama3.1:8b
  EOF

%s and %s override data_dir and ollama_url.`,
		configPath,
		filepath.Dir(configPath),
		configPath,
		EnvDataDir, EnvOllamaHost)
}
