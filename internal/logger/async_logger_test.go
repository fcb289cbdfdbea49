// Copyright 2025 Google LLC
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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func setupTest(t *testing.T) (string, func()) {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "rvos-logger-test-*")
	require.NoError(t, err)

	return tempDir, func() { os.RemoveAll(tempDir) }
}

// TestInitRoutesThroughRotatingFile verifies that supplying a FilePath
// causes log output to land on disk via lumberjack instead of stderr.
func TestInitRoutesThroughRotatingFile(t *testing.T) {
	dir, cleanup := setupTest(t)
	defer cleanup()

	logPath := filepath.Join(dir, "rvos.log")
	Init(Config{
		Severity:        INFO,
		Format:          "text",
		FilePath:        logPath,
		MaxFileSizeMB:   1,
		BackupFileCount: 1,
	})
	defer Init(Config{Severity: INFO, Format: "text"})

	Infof("boot complete")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "boot complete")
}
