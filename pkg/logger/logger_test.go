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

package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_SimpleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(slog.LevelInfo, &buf, FormatSimple)

	l.Info("ingested", "files", 3)
	l.Debug("hidden")

	assert.Equal(t, "INFO ingested files=3\n", buf.String())
}

func TestNew_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	l := New(slog.LevelDebug, &buf, FormatSimple).With("component", "agent").WithGroup("tool")

	l.Warn("slow", "name", "SQLQuery")

	assert.Equal(t, "WARN slow component=agent tool.name=SQLQuery\n", buf.String())
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(slog.LevelInfo, &buf, FormatJSON)

	l.Error("boom", "code", 7)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "boom", rec["msg"])
	assert.Equal(t, "ERROR", rec["level"])
	assert.EqualValues(t, 7, rec["code"])
}

func TestModuleFilter_DropsForeignInfo(t *testing.T) {
	var buf bytes.Buffer
	h := &moduleFilter{
		next:     &lineHandler{opts: &slog.HandlerOptions{Level: slog.LevelInfo}, w: &buf, wmu: &sync.Mutex{}},
		minLevel: slog.LevelInfo,
	}

	// PC 0 means the caller is unknown, which is treated as foreign.
	require.NoError(t, h.Handle(t.Context(), slog.NewRecord(time.Time{}, slog.LevelInfo, "foreign", 0)))
	assert.Empty(t, buf.String())

	require.NoError(t, h.Handle(t.Context(), slog.NewRecord(time.Time{}, slog.LevelWarn, "foreign warn", 0)))
	assert.Equal(t, "WARN foreign warn\n", buf.String())
}

func TestOpenLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labrag.log")

	f, cleanup, err := OpenLogFile(path)
	require.NoError(t, err)
	defer cleanup()

	l := New(slog.LevelInfo, f, FormatVerbose)
	l.Info("hello")
	assert.FileExists(t, path)
}
