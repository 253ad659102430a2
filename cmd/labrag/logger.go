// Copyright 2025 Kadir Pekel
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

package main

import (
	"fmt"
	"os"

	"github.com/alanlin8901/special-happiness/pkg/config"
	"github.com/alanlin8901/special-happiness/pkg/logger"
)

const (
	// LogFileEnvVar is the environment variable name for log file path
	LogFileEnvVar = "LOG_FILE"
	// LogLevelEnvVar is the environment variable name for log level
	LogLevelEnvVar = "LOG_LEVEL"
	// LogFormatEnvVar is the environment variable name for log format
	LogFormatEnvVar = "LOG_FORMAT"
	// DefaultLogFormat is the default log format
	DefaultLogFormat = "simple"
)

type logSettings struct {
	Level  string
	File   string
	Format string
}

// resolveLogSettings picks each setting from the CLI flag, then the
// environment, then the config file section (which may be nil), then the
// default.
func resolveLogSettings(cliLevel, cliFile, cliFormat string, cfg *config.LoggerConfig, getenv func(string) string) logSettings {
	var fromCfg config.LoggerConfig
	if cfg != nil {
		fromCfg = *cfg
	}
	return logSettings{
		Level:  firstNonEmpty(cliLevel, getenv(LogLevelEnvVar), fromCfg.Level, "info"),
		File:   firstNonEmpty(cliFile, getenv(LogFileEnvVar), fromCfg.File),
		Format: firstNonEmpty(cliFormat, getenv(LogFormatEnvVar), fromCfg.Format, DefaultLogFormat),
	}
}

// initLogger installs the default logger. The returned cleanup closes the
// log file, if any.
func initLogger(s logSettings) (func(), error) {
	level, err := logger.ParseLevel(s.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	if s.File == "" {
		logger.Init(level, os.Stderr, s.Format)
		return func() {}, nil
	}

	file, cleanup, err := logger.OpenLogFile(s.File)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger.Init(level, file, s.Format)
	return cleanup, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
