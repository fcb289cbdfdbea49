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

// Package cmd wires the rvos command-line surface: a cobra root command
// with "boot" and "mkfs" subcommands, flags bound to viper, and a
// decoded cfg.Config handed off to the kernel at RunE time.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/chaoskernel/rvos/cfg"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error

	// Config is the fully decoded and validated boot configuration,
	// populated by the root command's PersistentPreRunE before any
	// subcommand's RunE runs.
	Config cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "rvos",
	Short: "A userspace simulator of a RISC-V teaching kernel's process, memory and FAT32 semantics",
	Long: `rvos boots a simulated RISC-V rv64 kernel against a FAT32 disk image:
process scheduling, an SV39-modeled address space, and a FAT32 filesystem
with a bounded block cache, all running as ordinary Go code rather than
bare-metal assembly.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		decoded, err := cfg.Decode(viper.GetViper())
		if err != nil {
			return err
		}
		Config = decoded
		return nil
	},
}

// Execute runs the root command, exiting the process with status 1 on
// any returned error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML boot config file")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	if cfgFile == "" {
		return
	}

	resolved, err := filepath.Abs(cfgFile)
	if err != nil {
		configFileErr = fmt.Errorf("resolving config file path: %w", err)
		return
	}
	viper.SetConfigFile(resolved)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("reading config file: %w", err)
		return
	}
}
