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

// GetDefaultConfig returns a Config populated with the same defaults
// BindFlags registers on the flag set. Decode starts from it, so fields
// that no flag or config file sets keep these values instead of zero.
func GetDefaultConfig() Config {
	return Config{
		AppName: "rvos",
		Disk: DiskConfig{
			BlockCacheCapacity: DefaultBlockCacheCapacity,
			FileMode:           DefaultFileMode,
			DirMode:            DefaultDirMode,
		},
		Memory: MemoryConfig{
			PhysicalFrames:   DefaultPhysicalFrames,
			UserStackPages:   DefaultUserStackPages,
			KernelStackPages: DefaultKernelStackPages,
		},
		Scheduler: SchedulerConfig{
			BigStride:       DefaultBigStride,
			DefaultPriority: DefaultPriority,
			TimeSliceMs:     DefaultTimeSliceMs,
		},
		Logging: LoggingConfig{
			Severity: InfoLogSeverity,
			Format:   DefaultLogFormat,
			LogRotate: LogRotateLoggingConfig{
				MaxFileSizeMb:   DefaultLogMaxFileSizeMB,
				BackupFileCount: DefaultLogBackupFileCount,
			},
		},
	}
}
