/*
Copyright 2021 Stefan Prodan
Copyright 2013 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/stefanprodan/konverge/pkg/objectutil"
)

const (
	KonvergeConfigKind        = "Config"
	KonvergeConfigApiVersion  = "konverge.dev/v1"
	KonvergeFieldManagerName  = "konverge"
	KonvergeFieldManagerGroup = "konverge.dev"
)

type Config struct {
	metav1.TypeMeta `json:",inline"`

	// ApplyOrder holds the list of the Kubernetes API Kinds that
	// describes in which order they are reconciled.
	ApplyOrder *objectutil.KindOrder `json:"applyOrder,omitempty"`

	// FieldManager holds the manager name and the owner label key prefix.
	FieldManager *FieldManager `json:"fieldManager,omitempty"`

	// Retry holds the settings for retrying requests
	// rejected with a transient error.
	Retry *Retry `json:"retry,omitempty"`
}

type FieldManager struct {
	// Name sets the field manager for the reconciled objects.
	Name string `json:"name"`

	// Group sets the owner label key prefix and the
	// record annotation key prefix.
	Group string `json:"group"`
}

type Retry struct {
	// Attempts sets how many times a request is tried
	// before giving up.
	Attempts int `json:"attempts"`

	// Interval sets the delay before the first retry,
	// doubled on each subsequent attempt.
	Interval metav1.Duration `json:"interval"`
}

// NewConfig returns a config with the default apply order,
// field manager and retry settings.
func NewConfig() *Config {
	return &Config{
		TypeMeta: metav1.TypeMeta{
			Kind:       KonvergeConfigKind,
			APIVersion: KonvergeConfigApiVersion,
		},
		ApplyOrder:   defaultKindOrder(),
		FieldManager: defaultFieldManager(),
		Retry:        defaultRetry(),
	}
}

func defaultKindOrder() *objectutil.KindOrder {
	order := objectutil.DefaultKindOrder()
	return &order
}

func defaultFieldManager() *FieldManager {
	return &FieldManager{
		Name:  KonvergeFieldManagerName,
		Group: KonvergeFieldManagerGroup,
	}
}

func defaultRetry() *Retry {
	return &Retry{
		Attempts: 4,
		Interval: metav1.Duration{Duration: 500 * time.Millisecond},
	}
}

// DefaultConfigPath returns '$HOME/.konverge/config'
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".konverge/config"), nil
}

// Read loads the config from the specified path,
// if the config file is not found, a default is returned.
func Read(configPath string) (*Config, error) {
	if configPath == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return nil, fmt.Errorf("$HOME dir can't be determined, error: %w", err)
		}
		configPath = p
	}

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return NewConfig(), nil
	}

	cfgData, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(cfgData, cfg); err != nil {
		return nil, err
	}

	if cfg.ApplyOrder == nil {
		cfg.ApplyOrder = defaultKindOrder()
	}

	if err := cfg.ApplyOrder.Validate(); err != nil {
		return nil, fmt.Errorf("invalid apply order: %w", err)
	}

	if cfg.FieldManager == nil {
		cfg.FieldManager = defaultFieldManager()
	}

	if cfg.FieldManager.Name == "" {
		return nil, fmt.Errorf("the field manager name can't be empty")
	}

	if cfg.FieldManager.Group == "" {
		return nil, fmt.Errorf("the field manager group can't be empty")
	}

	if cfg.Retry == nil {
		cfg.Retry = defaultRetry()
	}

	if cfg.Retry.Attempts < 1 {
		return nil, fmt.Errorf("the retry attempts must be greater than zero")
	}

	return cfg, nil
}

// Write saves the config at the given path, if no path is specified
// it will create or override '$HOME/.konverge/config'.
func (c *Config) Write(configPath string) error {
	if configPath == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return err
		}
		configPath = p
	}

	if err := os.MkdirAll(filepath.Dir(configPath), os.FileMode(0755)); err != nil {
		return err
	}

	cfgData, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if err := os.WriteFile(configPath, cfgData, os.FileMode(0666)); err != nil {
		return err
	}

	return nil
}
