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

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/chaoskernel/rvos/internal/blockdev"
	"github.com/chaoskernel/rvos/internal/kernel"
	"github.com/chaoskernel/rvos/internal/logger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var bootCmd = &cobra.Command{
	Use:   "boot <disk-image> <init-elf>",
	Short: "Boot the kernel against a FAT32 disk image, running init to completion",
	Args:  cobra.ExactArgs(2),
	RunE:  runBoot,
}

func init() {
	rootCmd.AddCommand(bootCmd)
}

func runBoot(cmd *cobra.Command, args []string) error {
	imagePath, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving disk image path: %w", err)
	}
	Config.Disk.ImagePath = imagePath
	initPath := args[1]

	bootID := uuid.New().String()
	logger.Init(logger.Config{
		Severity:        string(Config.Logging.Severity),
		Format:          Config.Logging.Format,
		FilePath:        Config.Logging.FilePath,
		MaxFileSizeMB:   Config.Logging.LogRotate.MaxFileSizeMb,
		BackupFileCount: Config.Logging.LogRotate.BackupFileCount,
		Compress:        Config.Logging.LogRotate.Compress,
	})
	logger.Infof("boot %s: starting rvos against %s", bootID, imagePath)

	dev, err := blockdev.OpenFile(imagePath)
	if err != nil {
		return fmt.Errorf("opening disk image: %w", err)
	}
	defer func() {
		if cerr := dev.Close(); cerr != nil {
			logger.Errorf("closing block device: %v", cerr)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	k, err := kernel.New(Config, dev)
	if err != nil {
		return fmt.Errorf("constructing kernel: %w", err)
	}

	exitCode, err := k.Boot(ctx, initPath, nil)
	if err != nil {
		return fmt.Errorf("kernel run: %w", err)
	}

	logger.Infof("boot %s: init exited with code %d", bootID, exitCode)
	if exitCode != 0 {
		os.Exit(exitCode)
	}
	return nil
}
