package config

import (
	"os"
	"path/filepath"
	"strings"
)

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

// DetectProjectRoot walks up from each candidate looking for a project
// marker and falls back to the working directory.
func DetectProjectRoot(candidates []string) (string, error) {
	markers := []string{
		DefaultFile,
		".git",
	}

	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}

		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		root := abs
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			root = filepath.Dir(abs)
		}

		for {
			for _, marker := range markers {
				if _, err := os.Stat(filepath.Join(root, marker)); err == nil {
					return filepath.Clean(root), nil
				}
			}
			parent := filepath.Dir(root)
			if parent == root {
				break
			}
			root = parent
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Clean(cwd), nil
}

// FindConfigFile returns the explicit path when given, else the
// configuration file at the detected project root. The second result is
// false when no file exists there.
func FindConfigFile(explicit string) (string, bool, error) {
	if p := strings.TrimSpace(explicit); p != "" {
		_, err := os.Stat(p)
		return p, err == nil, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, err
	}
	root, err := DetectProjectRoot([]string{cwd})
	if err != nil {
		return "", false, err
	}
	p := filepath.Join(root, DefaultFile)
	_, err = os.Stat(p)
	return p, err == nil, nil
}
