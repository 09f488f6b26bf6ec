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

package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-keycustody/pkg/custody"
	"github.com/jeremyhahn/go-keycustody/pkg/types"
)

var (
	setupMethod     string
	setupMode       string
	setupPassphrase string
	setupRecovery   bool
)

var setupCmd = &cobra.Command{
	Use:   "setup <account-id>",
	Short: "Provision a keypair for an account",
	Long: `Provision a new keypair and seal the private key under the chosen
derivation method.

With --method passphrase and no --passphrase, a high-entropy word-group
passphrase is generated and shown once. Under zero-knowledge mode a
recovery key is always generated and shown once.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		application, err := buildApp()
		if err != nil {
			handleError(err)
		}
		defer application.close()

		opts := custody.SetupOptions{
			Method:           types.DerivationMethod(setupMethod),
			Mode:             types.Mode(setupMode),
			GenerateRecovery: setupRecovery,
		}

		if opts.Method == types.MethodPassphrase && setupPassphrase != "" {
			secret, err := types.NewPasswordFromString(setupPassphrase)
			if err != nil {
				handleError(err)
			}
			defer secret.Clear()
			opts.Passphrase = secret
		}

		result, err := application.service.Setup(cmd.Context(), args[0], opts)
		if err != nil {
			handleError(err)
		}

		printer := NewPrinter(flagOutputFormat, os.Stdout)
		if result.GeneratedPassphrase != "" {
			_ = printer.PrintGeneratedPassphrase(result.GeneratedPassphrase)
		}
		if result.RecoveryDocument != nil {
			_ = printer.PrintRecoveryDocument(result.RecoveryDocument)
		}
		_ = printer.PrintMessage("Account provisioned: " + args[0])
	},
}

func init() {
	setupCmd.Flags().StringVar(&setupMethod, "method", "passphrase",
		"derivation method (passphrase, passkey-prf)")
	setupCmd.Flags().StringVar(&setupMode, "mode", "",
		"operating mode (convenience, zero-knowledge); config default when empty")
	setupCmd.Flags().StringVar(&setupPassphrase, "passphrase", "",
		"user-chosen passphrase (generated when empty)")
	setupCmd.Flags().BoolVar(&setupRecovery, "recovery", false,
		"generate a recovery document (always on under zero-knowledge)")
}
