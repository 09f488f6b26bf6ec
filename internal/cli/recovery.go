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
	"github.com/jeremyhahn/go-keycustody/pkg/recovery"
)

var (
	recoveryNewPassphrase string
	recoverKey            string
)

var recoveryCmd = &cobra.Command{
	Use:   "recovery",
	Short: "Recovery key operations",
}

var recoveryNewCmd = &cobra.Command{
	Use:   "new <account-id>",
	Short: "Generate a fresh recovery document",
	Long: `Unlock the account and issue a fresh recovery document. The previous
recovery key stops working; the new key is shown exactly once.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		application, err := buildApp()
		if err != nil {
			handleError(err)
		}
		defer application.close()

		accountID := args[0]
		ctx := cmd.Context()

		status, err := application.service.AccountStatus(accountID)
		if err != nil {
			handleError(err)
		}

		var session *custody.Session
		if status.DerivationMethod.String() == "passkey-prf" {
			session, err = application.service.UnlockWithPasskey(ctx, accountID)
		} else {
			secret, perr := readPassphrase(recoveryNewPassphrase, "Passphrase")
			if perr != nil {
				handleError(perr)
			}
			defer secret.Clear()
			session, err = application.service.UnlockWithPassphrase(ctx, accountID, secret)
		}
		if err != nil {
			handleError(err)
		}
		defer session.Close()

		doc, err := application.service.RegenerateRecovery(ctx, session)
		if err != nil {
			handleError(err)
		}

		printer := NewPrinter(flagOutputFormat, os.Stdout)
		_ = printer.PrintRecoveryDocument(doc)
	},
}

var recoveryValidateCmd = &cobra.Command{
	Use:   "validate <recovery-key>",
	Short: "Check recovery key format locally",
	Long: `Validate the structure of a recovery key (grouping, length, character
set) without contacting the store or attempting decryption.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		printer := NewPrinter(flagOutputFormat, os.Stdout)
		if recovery.ValidateFormat(args[0]) {
			_ = printer.PrintMessage("Recovery key format: valid")
			return
		}
		handleError(recovery.ErrMalformedRecoveryKey)
	},
}

var recoveryRecoverCmd = &cobra.Command{
	Use:   "recover <account-id>",
	Short: "Recover an account with its recovery key",
	Long: `Decrypt the account private key with the recovery key, independent of
the live derivation method. Follow up with "switch" to establish a new
method and a fresh recovery document.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		application, err := buildApp()
		if err != nil {
			handleError(err)
		}
		defer application.close()

		key := recoverKey
		if key == "" {
			secret, perr := readPassphrase("", "Recovery key")
			if perr != nil {
				handleError(perr)
			}
			defer secret.Clear()
			key, perr = secret.String()
			if perr != nil {
				handleError(perr)
			}
		}

		session, err := application.service.Recover(cmd.Context(), args[0], key)
		if err != nil {
			handleError(err)
		}
		defer session.Close()

		printer := NewPrinter(flagOutputFormat, os.Stdout)
		_ = printer.PrintMessage("Recovered " + args[0] +
			"; run \"keycustody switch\" to establish a new method and recovery key")
	},
}

func init() {
	recoveryNewCmd.Flags().StringVar(&recoveryNewPassphrase, "passphrase", "",
		"passphrase (prompted when empty and live method is passphrase)")
	recoveryRecoverCmd.Flags().StringVar(&recoverKey, "key", "",
		"recovery key (prompted when empty)")

	recoveryCmd.AddCommand(recoveryNewCmd)
	recoveryCmd.AddCommand(recoveryValidateCmd)
	recoveryCmd.AddCommand(recoveryRecoverCmd)
}
