package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"sandrun/internal/sandbox/engine"
	"sandrun/internal/sandbox/profile"
	"sandrun/pkg/utils/logger"
)

const (
	defaultHelperPath  = "sandrun-init"
	defaultGraceMargin = 2 * time.Second
)

// SandboxConfig holds supervisor settings.
type SandboxConfig struct {
	WorkRoot         string        `yaml:"workRoot"`
	HelperPath       string        `yaml:"helperPath"`
	GraceMargin      time.Duration `yaml:"graceMargin"`
	OutputMaxBytes   int64         `yaml:"outputMaxBytes"`
	CgroupRoot       string        `yaml:"cgroupRoot"`
	EnableCgroup     bool          `yaml:"enableCgroup"`
	EnableNamespaces bool          `yaml:"enableNamespaces"`
	DisableSeccomp   bool          `yaml:"disableSeccomp"`
}

// ProfileConfig overrides the built-in runtime profile.
type ProfileConfig struct {
	ID              string   `yaml:"id"`
	Name            string   `yaml:"name"`
	CommandTpl      string   `yaml:"command"`
	SourceFile      string   `yaml:"sourceFile"`
	RuntimePaths    []string `yaml:"runtimePaths"`
	AllowDegradedFS bool     `yaml:"allowDegradedFS"`
}

// Config is the top-level sandrun configuration.
type Config struct {
	Sandbox  SandboxConfig   `yaml:"sandbox"`
	Profiles []ProfileConfig `yaml:"profiles"`
	Log      logger.Config   `yaml:"log"`
}

func defaultConfig() Config {
	return Config{
		Sandbox: SandboxConfig{
			HelperPath:  defaultHelperPath,
			GraceMargin: defaultGraceMargin,
		},
		Log: logger.Config{Level: "info", Format: "console"},
	}
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c Config) engineConfig() engine.Config {
	return engine.Config{
		HelperPath:       c.Sandbox.HelperPath,
		GraceMargin:      c.Sandbox.GraceMargin,
		OutputMaxBytes:   c.Sandbox.OutputMaxBytes,
		CgroupRoot:       c.Sandbox.CgroupRoot,
		EnableCgroup:     c.Sandbox.EnableCgroup,
		EnableNamespaces: c.Sandbox.EnableNamespaces,
		DisableSeccomp:   c.Sandbox.DisableSeccomp,
	}
}

func (p ProfileConfig) runtimeProfile() profile.RuntimeProfile {
	return profile.RuntimeProfile{
		ID:              p.ID,
		Name:            p.Name,
		CommandTpl:      p.CommandTpl,
		SourceFile:      p.SourceFile,
		RuntimePaths:    p.RuntimePaths,
		AllowDegradedFS: p.AllowDegradedFS,
	}
}
