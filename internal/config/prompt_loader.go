package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultPromptDir is the subdirectory within the user's home directory.
const defaultPromptDir = ".config/triage/prompts"

// LoadPromptContent returns the prompt template for a classifier step.
// An empty configuredPath returns builtin unchanged. An absolute path is read
// directly; a relative one is resolved against ~/.config/triage/prompts/.
func LoadPromptContent(configuredPath, builtin string) (string, error) {
	if configuredPath == "" {
		return builtin, nil
	}

	finalPath := configuredPath
	if !filepath.IsAbs(configuredPath) {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		finalPath = filepath.Join(homeDir, defaultPromptDir, configuredPath)
	}

	promptBytes, err := os.ReadFile(finalPath)
	if err != nil {
		if os.IsNotExist(err) && !filepath.IsAbs(configuredPath) {
			return "", fmt.Errorf("prompt file not found at default location '%s'. Please create it or specify an absolute path in config.yaml: %w", finalPath, err)
		}
		return "", fmt.Errorf("failed to read prompt file '%s': %w", finalPath, err)
	}
	if len(promptBytes) == 0 {
		return "", fmt.Errorf("prompt file '%s' is empty", finalPath)
	}

	return string(promptBytes), nil
}
