// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package debuglog configures logrus for the joinpath tools.
package debuglog

import (
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options to Configure.
type Options struct {
	// The logger to configure. Defaults to the logrus standard logger.
	Logger *logrus.Logger
	// If true, use colored output even when the output is not a terminal.
	ForceColors bool
	// If true, log at Debug level. This is where optimizer and executor
	// traces go.
	Debug bool
}

// Configure sets up the logger's formatter and hooks. Timestamps are printed
// in UTC and caller file names are relative to the module root.
func Configure(options Options) {
	logger := options.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.SetFormatter(&logrus.TextFormatter{
		ForceColors:     options.ForceColors,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000000 MST",
	})
	logger.SetReportCaller(true)
	logger.AddHook(utcHook{})
	logger.AddHook(newFilenameHook())
	if options.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	logger.WithFields(logrus.Fields{
		"forceColors": options.ForceColors,
	}).Info("Initialized Logrus")
}

// utcHook converts entry timestamps to UTC.
type utcHook struct{}

func (utcHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (utcHook) Fire(entry *logrus.Entry) error {
	entry.Time = entry.Time.UTC()
	return nil
}

// filenameHook trims the module root off caller file names.
type filenameHook struct {
	prefix string
}

func newFilenameHook() filenameHook {
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		return filenameHook{}
	}
	// thisFile is <root>/util/debuglog/setup.go.
	root := filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
	return filenameHook{prefix: root + "/"}
}

func (filenameHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook filenameHook) Fire(entry *logrus.Entry) error {
	if hook.prefix != "" && entry.HasCaller() {
		entry.Caller.File = strings.TrimPrefix(entry.Caller.File, hook.prefix)
	}
	return nil
}
