package utils

import (
	"os"
	"path/filepath"
)

// GetProjectRoot returns the absolute path to the project root directory,
// found by walking up from the working directory to the nearest go.mod.
func GetProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "." // fallback
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached root
		}
		dir = parent
	}
	return "." // fallback
}

// GetDataDir returns the directory holding the local marker database.
func GetDataDir() string {
	return filepath.Join(GetProjectRoot(), "data")
}

// GetModelDir returns the directory holding encrypted body models.
func GetModelDir() string {
	return filepath.Join(GetProjectRoot(), "public", "models")
}
