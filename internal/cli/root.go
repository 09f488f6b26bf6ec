// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-keycustody.
//
// go-keycustody is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package cli implements the keycustody command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfigFile   string
	flagOutputFormat string
	flagDebug        bool
	flagMockAuth     bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "keycustody",
	Short: "go-keycustody CLI - private key custody tool",
	Long: `go-keycustody manages user-exclusive keypairs unlockable through a
memorized passphrase or a passkey (WebAuthn PRF extension), with a
one-time recovery key as an out-of-band backup.

The private key is never persisted in plaintext. Exactly one derivation
method is live at a time; methods can be switched without a window
where the key is unrecoverable, and the recovery key stays valid across
switches.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "",
		"config file (default is $HOME/.keycustody/keycustody.yaml)")
	rootCmd.PersistentFlags().StringVarP(&flagOutputFormat, "output", "o", "text",
		"output format (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false,
		"debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagMockAuth, "mock-authenticator", false,
		"use the in-process mock authenticator for passkey operations")

	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(unlockCmd)
	rootCmd.AddCommand(switchCmd)
	rootCmd.AddCommand(recoveryCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

// handleError prints an error and exits with code 1
func handleError(err error) {
	printer := NewPrinter(flagOutputFormat, os.Stderr)
	_ = printer.PrintError(err)
	os.Exit(1)
}

// printDebug prints a message if debug mode is enabled
func printDebug(format string, args ...interface{}) {
	if flagDebug {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}
