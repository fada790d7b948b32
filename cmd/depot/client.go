package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"depot/internal/api"
	"depot/internal/config"
)

const (
	sessionFileName = ".depot-session"
	sessionEnvKey   = "DEPOT_SESSION"
)

// withClient builds an API client carrying the stored session token.
func withClient(cfg *config.Config, fn func(*api.Client) error) error {
	client := api.NewClient(cfg.APIURL)
	if token := currentSessionToken(); token != "" {
		client.SetSessionToken(token)
	}
	return fn(client)
}

// currentSessionToken prefers the environment over the session file.
func currentSessionToken() string {
	if token := strings.TrimSpace(os.Getenv(sessionEnvKey)); token != "" {
		return token
	}
	path, err := sessionPath()
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func saveSessionToken(token string) error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token+"\n"), 0o600)
}

func clearSessionToken() error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func sessionPath() (string, error) {
	configPath, err := config.Path()
	if err != nil {
		return "", fmt.Errorf("resolve session path: %w", err)
	}
	return filepath.Join(filepath.Dir(configPath), sessionFileName), nil
}
