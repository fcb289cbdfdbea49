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
	"fmt"
	"path/filepath"

	"github.com/chaoskernel/rvos/internal/blockdev"
	"github.com/chaoskernel/rvos/internal/fat32"
	"github.com/spf13/cobra"
)

var mkfsTotalBlocks int64

var mkfsCmd = &cobra.Command{
	Use:   "mkfs <disk-image>",
	Short: "Format a new FAT32 disk image",
	Args:  cobra.ExactArgs(1),
	RunE:  runMkfs,
}

func init() {
	mkfsCmd.Flags().Int64Var(&mkfsTotalBlocks, "total-blocks", 32768, "Number of 512-byte blocks in the new image")
	rootCmd.AddCommand(mkfsCmd)
}

func runMkfs(cmd *cobra.Command, args []string) error {
	imagePath, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving disk image path: %w", err)
	}

	dev, err := blockdev.CreateFile(imagePath, mkfsTotalBlocks)
	if err != nil {
		return fmt.Errorf("creating disk image: %w", err)
	}
	defer dev.Close()

	if err := fat32.Format(dev, mkfsTotalBlocks); err != nil {
		return fmt.Errorf("formatting FAT32 volume: %w", err)
	}

	fmt.Printf("formatted %s: %d blocks\n", imagePath, mkfsTotalBlocks)
	return nil
}
