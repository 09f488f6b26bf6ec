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
	switchTo            string
	switchOldPassphrase string
	switchNewPassphrase string
	switchFreshRecovery bool
)

var switchCmd = &cobra.Command{
	Use:   "switch <account-id>",
	Short: "Switch the live derivation method",
	Long: `Switch the account to a new derivation method. The currently live
method must be proven first; its ciphertext remains authoritative until
the new tuple is committed atomically. A failure at any step leaves the
account working under the old method.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		application, err := buildApp()
		if err != nil {
			handleError(err)
		}
		defer application.close()

		accountID := args[0]
		ctx := cmd.Context()
		toMethod := types.DerivationMethod(switchTo)

		sw, err := application.service.BeginSwitch(ctx, accountID)
		if err != nil {
			handleError(err)
		}
		defer sw.Abort()

		status, err := application.service.AccountStatus(accountID)
		if err != nil {
			handleError(err)
		}

		// verify: prove possession of the live method
		if status.DerivationMethod == types.MethodPasskeyPRF {
			err = sw.VerifyWithPasskey(ctx)
		} else {
			secret, perr := readPassphrase(switchOldPassphrase, "Current passphrase")
			if perr != nil {
				handleError(perr)
			}
			defer secret.Clear()
			err = sw.VerifyWithPassphrase(ctx, secret)
		}
		if err != nil {
			handleError(err)
		}

		// setup-new-method: seal the same key under the new method
		switch toMethod {
		case types.MethodPasskeyPRF:
			err = sw.StageNewPasskey(ctx)
		case types.MethodPassphrase:
			secret, perr := readPassphrase(switchNewPassphrase, "New passphrase")
			if perr != nil {
				handleError(perr)
			}
			defer secret.Clear()
			err = sw.StageNewPassphrase(ctx, secret)
		default:
			handleError(custody.ErrMethodNotLive)
		}
		if err != nil {
			handleError(err)
		}

		// recovery-document: fresh document when requested or required
		var doc = sw.RecoveryDocument()
		if switchFreshRecovery || (status.Mode == types.ModeZeroKnowledge && !status.HasRecoveryData) {
			doc, err = sw.GenerateRecoveryDocument()
			if err != nil {
				handleError(err)
			}
		}

		if err := sw.Commit(ctx); err != nil {
			handleError(err)
		}

		printer := NewPrinter(flagOutputFormat, os.Stdout)
		if doc != nil {
			_ = printer.PrintRecoveryDocument(doc)
		}
		_ = printer.PrintMessage("Switched " + accountID + " to " + toMethod.String())
	},
}

func init() {
	switchCmd.Flags().StringVar(&switchTo, "to", "",
		"target derivation method (passphrase, passkey-prf)")
	switchCmd.Flags().StringVar(&switchOldPassphrase, "passphrase", "",
		"current passphrase (prompted when empty and live method is passphrase)")
	switchCmd.Flags().StringVar(&switchNewPassphrase, "new-passphrase", "",
		"new passphrase (prompted when empty and target method is passphrase)")
	switchCmd.Flags().BoolVar(&switchFreshRecovery, "fresh-recovery", false,
		"generate a fresh recovery document during the switch")
	_ = switchCmd.MarkFlagRequired("to")
}
