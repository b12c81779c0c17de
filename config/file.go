package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the on-disk form of the relay settings.  Every field is
// optional; unset fields leave the existing value alone.
//
//	listen: true
//	port: 2222
//	proxy: 10.0.0.5:22
//	mirror: 10.0.0.9:22
//	loop_guard: all
//	mirror_cooldown: 1m
type File struct {
	Listen            *bool         `yaml:"listen"`
	ListenAddr        string        `yaml:"listen_addr"`
	Port              int           `yaml:"port"`
	KeepOpen          *bool         `yaml:"keep_open"`
	Timeout           time.Duration `yaml:"timeout"`
	Proxy             string        `yaml:"proxy"`
	Mirror            string        `yaml:"mirror"`
	LoopGuard         string        `yaml:"loop_guard"`
	Source            string        `yaml:"source"`
	MirrorMaxFailures int           `yaml:"mirror_max_failures"`
	MirrorCooldown    time.Duration `yaml:"mirror_cooldown"`
	Verbose           int           `yaml:"verbose"`
}

// LoadFile reads a YAML file and overlays it onto cfg.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	f.apply(cfg)
	return nil
}

func (f *File) apply(cfg *Config) {
	if f.Listen != nil {
		cfg.Listen = *f.Listen
	}
	if f.ListenAddr != "" {
		cfg.ListenAddr = f.ListenAddr
	}
	if f.Port > 0 {
		cfg.ListenPort = f.Port
	}
	if f.KeepOpen != nil {
		cfg.KeepOpen = *f.KeepOpen
	}
	if f.Timeout > 0 {
		cfg.Timeout = f.Timeout
	}
	if f.Proxy != "" {
		cfg.Proxy = f.Proxy
	}
	if f.Mirror != "" {
		cfg.Mirror = f.Mirror
	}
	if f.LoopGuard != "" {
		cfg.LoopGuard = f.LoopGuard
	}
	if f.Source != "" {
		cfg.SourceIP = f.Source
	}
	if f.MirrorMaxFailures > 0 {
		cfg.MirrorMaxFailures = f.MirrorMaxFailures
	}
	if f.MirrorCooldown > 0 {
		cfg.MirrorCooldown = f.MirrorCooldown
	}
	if f.Verbose > 0 {
		cfg.Verbose = f.Verbose
	}
}
