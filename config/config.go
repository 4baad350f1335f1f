// Copyright 2024 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/analytic/util/logutil"
	"github.com/pingcap/errors"
)

// Config number limitations
const (
	// DefMaxChunkSize is the default max number of rows in one output chunk.
	DefMaxChunkSize = 1024
	// DefWindowConcurrency is the default number of window lanes.
	DefWindowConcurrency = 4
	// MaxWindowConcurrency is the max number of window lanes.
	MaxWindowConcurrency = 256
)

// Config contains configuration options.
type Config struct {
	Log         Log         `toml:"log" json:"log"`
	Performance Performance `toml:"performance" json:"performance"`
	Status      Status      `toml:"status" json:"status"`
}

// Log is the log section of config.
type Log struct {
	// Log level.
	Level string `toml:"level" json:"level"`
	// Log format, one of json or text.
	Format string `toml:"format" json:"format"`
	// Disable automatic timestamps in output. Deprecated: use EnableTimestamp instead.
	DisableTimestamp bool `toml:"disable-timestamp" json:"disable-timestamp"`
	// File log config.
	File logutil.FileLogConfig `toml:"file" json:"file"`
}

// Performance is the performance section of the config.
type Performance struct {
	// MaxChunkSize is the max number of rows the source emits per chunk.
	MaxChunkSize int `toml:"max-chunk-size" json:"max-chunk-size"`
	// WindowConcurrency is the number of independent window lanes.
	WindowConcurrency int `toml:"window-concurrency" json:"window-concurrency"`
	// MemQuotaWindow is the memory quota of all window lanes, 0 means unlimited.
	MemQuotaWindow int64 `toml:"mem-quota-window" json:"mem-quota-window"`
}

// Status is the status section of the config.
type Status struct {
	// MetricsAddr is the address the prometheus handler listens on, empty disables it.
	MetricsAddr string `toml:"metrics-addr" json:"metrics-addr"`
}

var defaultConf = Config{
	Log: Log{
		Level:  "info",
		Format: logutil.DefaultLogFormat,
		File:   logutil.NewFileLogConfig(logutil.DefaultLogMaxSize),
	},
	Performance: Performance{
		MaxChunkSize:      DefMaxChunkSize,
		WindowConcurrency: DefWindowConcurrency,
	},
}

var globalConf atomic.Pointer[Config]

func init() {
	conf := defaultConf
	StoreGlobalConfig(&conf)
}

// NewConfig creates a new config instance with default value.
func NewConfig() *Config {
	conf := defaultConf
	return &conf
}

// GetGlobalConfig returns the global configuration for this server.
// It should store configuration from command line and configuration file.
// Other parts of the system can read the global configuration use this function.
func GetGlobalConfig() *Config {
	return globalConf.Load()
}

// StoreGlobalConfig stores a new config to the globalConf. It mostly uses in the test to avoid some data races.
func StoreGlobalConfig(config *Config) {
	globalConf.Store(config)
}

// UpdateGlobal updates the global config, and provide a latest config to the function f.
func UpdateGlobal(f func(conf *Config)) {
	g := GetGlobalConfig()
	newConf := *g
	f(&newConf)
	StoreGlobalConfig(&newConf)
}

// ErrConfigValidationFailed is the error returned when the config contains
// unknown items.
type ErrConfigValidationFailed struct {
	confFile       string
	UndecodedItems []string
}

func (e *ErrConfigValidationFailed) Error() string {
	return fmt.Sprintf("config file %s contained invalid configuration options: %s; check "+
		"the configuration file for typos", e.confFile, strings.Join(e.UndecodedItems, ", "))
}

// Load loads config options from a toml file.
func (c *Config) Load(confFile string) error {
	metaData, err := toml.DecodeFile(confFile, c)
	if err != nil {
		return errors.Trace(err)
	}
	// If any items in confFile file are not mapped into the Config struct, issue
	// an error and stop the server from starting.
	undecoded := metaData.Undecoded()
	if len(undecoded) > 0 {
		undecodedItems := make([]string, 0, len(undecoded))
		for _, item := range undecoded {
			undecodedItems = append(undecodedItems, item.String())
		}
		return &ErrConfigValidationFailed{confFile, undecodedItems}
	}
	return nil
}

// Valid checks if this config is valid.
func (c *Config) Valid() error {
	if c.Performance.MaxChunkSize <= 0 {
		return fmt.Errorf("max-chunk-size should be positive, got %d", c.Performance.MaxChunkSize)
	}
	if c.Performance.WindowConcurrency < 1 || c.Performance.WindowConcurrency > MaxWindowConcurrency {
		return fmt.Errorf("window-concurrency should be in [1, %d], got %d",
			MaxWindowConcurrency, c.Performance.WindowConcurrency)
	}
	if c.Performance.MemQuotaWindow < 0 {
		return fmt.Errorf("mem-quota-window should not be negative")
	}
	if _, err := toLogLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

func toLogLevel(level string) (string, error) {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error", "fatal":
		return strings.ToLower(level), nil
	}
	return "", fmt.Errorf("invalid log level %q", level)
}

// ToLogConfig converts *Log to *logutil.LogConfig.
func (l *Log) ToLogConfig() *logutil.LogConfig {
	return logutil.NewLogConfig(l.Level, l.Format, l.File, l.DisableTimestamp)
}
