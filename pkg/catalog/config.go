// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// File represents a catalog YAML document.
type File struct {
	Rules []Rule `yaml:"rules"`
}

// LoadFile loads a rule catalog from a YAML file.
// Supports environment variable expansion in the form ${VAR_NAME} or ${VAR_NAME:default}.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes and validates a catalog YAML document.
func Parse(data []byte) (*File, error) {
	expanded := expandEnvVars(string(data))

	var file File
	if err := yaml.Unmarshal([]byte(expanded), &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML catalog: %w", err)
	}

	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	return &file, nil
}

// Validate checks every rule and rejects duplicate IDs.
func (f *File) Validate() error {
	ids := make(map[string]bool, len(f.Rules))
	for i := range f.Rules {
		rule := &f.Rules[i]
		if err := rule.Validate(); err != nil {
			return err
		}
		if ids[rule.ID] {
			return fmt.Errorf("duplicate rule ID: %s", rule.ID)
		}
		ids[rule.ID] = true
	}
	return nil
}

// LoadRegistry loads a YAML catalog into a new Registry.
func LoadRegistry(path string) (*Registry, error) {
	file, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	registry := NewRegistry()
	if err := registry.Replace(file.Rules); err != nil {
		return nil, err
	}
	return registry, nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		parts := strings.SplitN(key, ":", 2)
		varName := parts[0]
		defaultValue := ""
		if len(parts) == 2 {
			defaultValue = parts[1]
		}

		value := os.Getenv(varName)
		if value == "" {
			return defaultValue
		}
		return value
	})
}
