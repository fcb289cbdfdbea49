// Copyright 2024 Google Inc. All Rights Reserved.
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

package cfg

import (
	"fmt"
	"slices"
)

// ValidateConfig rationalizes and checks a decoded Config, returning an
// error naming the first offending field rather than panicking: this
// runs before boot, while the process can still exit cleanly on a bad
// flag or config file.
func ValidateConfig(c *Config) error {
	if c.Disk.BlockCacheCapacity <= 0 {
		return fmt.Errorf("disk.block-cache-capacity: must be positive, got %d", c.Disk.BlockCacheCapacity)
	}
	if c.Memory.PhysicalFrames <= 0 {
		return fmt.Errorf("memory.physical-frames: must be positive, got %d", c.Memory.PhysicalFrames)
	}
	if c.Memory.UserStackPages <= 0 {
		return fmt.Errorf("memory.user-stack-pages: must be positive, got %d", c.Memory.UserStackPages)
	}
	if c.Scheduler.BigStride <= 0 {
		return fmt.Errorf("scheduler.big-stride: must be positive, got %d", c.Scheduler.BigStride)
	}
	if c.Scheduler.DefaultPriority <= 1 {
		return fmt.Errorf("scheduler.default-priority: must be > 1 (priority 1 stalls stride growth), got %d", c.Scheduler.DefaultPriority)
	}
	if err := isValidLogSeverity(c.Logging.Severity); err != nil {
		return err
	}
	if err := isValidLogRotateConfig(c.Logging.LogRotate); err != nil {
		return err
	}
	return nil
}

func isValidLogSeverity(s LogSeverity) error {
	if slices.Contains(validSeverities, string(s)) {
		return nil
	}
	return fmt.Errorf("logging.severity: invalid value %q, must be one of %v", s, validSeverities)
}

func isValidLogRotateConfig(r LogRotateLoggingConfig) error {
	if r.MaxFileSizeMb <= 0 {
		return fmt.Errorf("logging.log-rotate.max-file-size-mb: must be positive, got %d", r.MaxFileSizeMb)
	}
	if r.BackupFileCount < 0 {
		return fmt.Errorf("logging.log-rotate.backup-file-count: must be >= 0, got %d", r.BackupFileCount)
	}
	return nil
}
