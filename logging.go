/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package insertbot

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	DefaultLogLevel    = "info"
	DefaultLogEncoding = "console"
)

type Logger struct {
	*zap.SugaredLogger
}

// With returns child logger, receiver is left untouched
func (m *Logger) With(args ...interface{}) *Logger {
	return &Logger{m.SugaredLogger.With(args...)}
}

func (m *Logger) Clone() Logger {
	return *m
}

func setupLogger(encoding string, level string) (*Logger, error) {
	if encoding == "" {
		encoding = DefaultLogEncoding
	}
	if level == "" {
		level = DefaultLogLevel
	}
	rawJSON := []byte(fmt.Sprintf(`{
	  "level": "%s",
	  "encoding": "%s",
	  "outputPaths": ["stdout"],
	  "errorOutputPaths": ["stderr"],
	  "encoderConfig": {
	    "messageKey": "message",
	    "levelKey": "level",
	    "levelEncoder": "uppercase",
	    "timeKey": "time",
	    "timeEncoder": "ISO8601",
	    "callerKey": "caller",
	    "callerEncoder": "short"
	  }
	}`, level, encoding))

	var cfg zap.Config
	if err := jsoniter.Unmarshal(rawJSON, &cfg); err != nil {
		return nil, err
	}
	if encoding == "console" {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{logger.Sugar()}, nil
}

// NewLogger builds logger from runner config, falls back to defaults on bad level or encoding
func NewLogger(cfg *RunnerConfig) *Logger {
	l, err := setupLogger(cfg.LogEncoding, cfg.LogLevel)
	if err != nil {
		l, _ = setupLogger(DefaultLogEncoding, DefaultLogLevel)
		l.Warnf("bad log settings, using defaults: %v", err)
	}
	return l
}

// NewNopLogger discards everything
func NewNopLogger() *Logger {
	return &Logger{zap.NewNop().Sugar()}
}
