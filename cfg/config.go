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
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the root boot configuration, decoded from a YAML file and/or
// command-line flags via viper.
type Config struct {
	AppName string `yaml:"app-name"`

	Disk      DiskConfig      `yaml:"disk"`
	Memory    MemoryConfig    `yaml:"memory"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
	Debug     DebugConfig     `yaml:"debug"`
}

// DiskConfig describes the FAT32 volume the kernel mounts at boot.
type DiskConfig struct {
	// ImagePath is the path to the disk image backing the block device.
	ImagePath string `yaml:"image-path"`

	// BlockCacheCapacity is the number of 512-byte blocks the block
	// cache may hold at once.
	BlockCacheCapacity int `yaml:"block-cache-capacity"`

	FileMode Octal `yaml:"file-mode"`
	DirMode  Octal `yaml:"dir-mode"`

	Uid int `yaml:"uid"`
	Gid int `yaml:"gid"`
}

// MemoryConfig sizes the simulated physical address space.
type MemoryConfig struct {
	// PhysicalFrames is the number of 4 KiB frames in the simulated
	// physical memory arena available for user/kernel page allocation.
	PhysicalFrames int `yaml:"physical-frames"`

	// UserStackPages is the number of pages reserved for each new
	// process's user stack.
	UserStackPages int `yaml:"user-stack-pages"`

	// KernelStackPages is the number of pages reserved for each task's
	// kernel stack.
	KernelStackPages int `yaml:"kernel-stack-pages"`
}

// SchedulerConfig tunes the stride scheduler.
type SchedulerConfig struct {
	BigStride       int `yaml:"big-stride"`
	DefaultPriority int `yaml:"default-priority"`
	TimeSliceMs     int `yaml:"time-slice-ms"`
}

// LoggingConfig controls the logger's severity, format, and rotation.
type LoggingConfig struct {
	Severity LogSeverity `yaml:"severity"`
	Format   string      `yaml:"format"`
	FilePath string      `yaml:"file-path"`

	LogRotate LogRotateLoggingConfig `yaml:"log-rotate"`
}

type LogRotateLoggingConfig struct {
	MaxFileSizeMb   int  `yaml:"max-file-size-mb"`
	BackupFileCount int  `yaml:"backup-file-count"`
	Compress        bool `yaml:"compress"`
}

// DebugConfig controls invariant-checking behavior.
type DebugConfig struct {
	// ExitOnInvariantViolation is decoded from the config and the
	// --debug-invariants flag, but no code reads it: invariant panics
	// behave the same whatever its value.
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`

	// LogMutex is decoded from the config, but no code reads it; no
	// mutex hold-time messages are printed.
	LogMutex bool `yaml:"log-mutex"`
}

// BindFlags registers the command-line flags that back Config and binds
// them to viper so that flags, environment variables, and config-file
// values can all populate the same Config struct.
func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("app-name", "", "rvos", "The application name of this boot.")
	if err = viper.BindPFlag("app-name", flagSet.Lookup("app-name")); err != nil {
		return err
	}

	flagSet.IntP("block-cache-capacity", "", DefaultBlockCacheCapacity, "Number of 512-byte blocks held by the block cache.")
	if err = viper.BindPFlag("disk.block-cache-capacity", flagSet.Lookup("block-cache-capacity")); err != nil {
		return err
	}

	flagSet.IntP("file-mode", "", 0644, "Permissions bits for files, in octal.")
	if err = viper.BindPFlag("disk.file-mode", flagSet.Lookup("file-mode")); err != nil {
		return err
	}

	flagSet.IntP("dir-mode", "", 0755, "Permissions bits for directories, in octal.")
	if err = viper.BindPFlag("disk.dir-mode", flagSet.Lookup("dir-mode")); err != nil {
		return err
	}

	flagSet.IntP("uid", "", 0, "UID owner of all inodes.")
	if err = viper.BindPFlag("disk.uid", flagSet.Lookup("uid")); err != nil {
		return err
	}

	flagSet.IntP("physical-frames", "", DefaultPhysicalFrames, "Number of 4 KiB frames in the simulated physical arena.")
	if err = viper.BindPFlag("memory.physical-frames", flagSet.Lookup("physical-frames")); err != nil {
		return err
	}

	flagSet.IntP("big-stride", "", DefaultBigStride, "BIG_STRIDE constant used by the stride scheduler.")
	if err = viper.BindPFlag("scheduler.big-stride", flagSet.Lookup("big-stride")); err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", string(InfoLogSeverity), "TRACE, DEBUG, INFO, WARNING, ERROR, or OFF.")
	if err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.BoolP("debug-invariants", "", false, "Exit when internal invariants are violated.")
	if err = viper.BindPFlag("debug.exit-on-invariant-violation", flagSet.Lookup("debug-invariants")); err != nil {
		return err
	}

	return nil
}
