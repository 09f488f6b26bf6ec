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
)

var (
	unlockPassphrase string
	unlockEscrow     bool
	unlockShowPublic bool
)

var unlockCmd = &cobra.Command{
	Use:   "unlock <account-id>",
	Short: "Unlock an account with its live derivation method",
	Long: `Unlock the account's private key with the live derivation method and
verify it decrypts correctly. With --escrow, a convenience-mode account
is unlocked from its escrowed secret without prompting.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		application, err := buildApp()
		if err != nil {
			handleError(err)
		}
		defer application.close()

		accountID := args[0]

		status, err := application.service.AccountStatus(accountID)
		if err != nil {
			handleError(err)
		}

		var session *custody.Session
		switch {
		case unlockEscrow:
			session, err = application.service.UnlockWithEscrow(cmd.Context(), accountID)
		case status.DerivationMethod.String() == "passkey-prf":
			session, err = application.service.UnlockWithPasskey(cmd.Context(), accountID)
		default:
			secret, perr := readPassphrase(unlockPassphrase, "Passphrase")
			if perr != nil {
				handleError(perr)
			}
			defer secret.Clear()
			session, err = application.service.UnlockWithPassphrase(cmd.Context(), accountID, secret)
		}
		if err != nil {
			handleError(err)
		}
		defer session.Close()

		printer := NewPrinter(flagOutputFormat, os.Stdout)
		_ = printer.PrintMessage("Unlocked " + accountID + " via " + session.Method().String())

		if unlockShowPublic {
			publicKeyPEM, err := application.service.PublicKeyPEM(accountID)
			if err != nil {
				handleError(err)
			}
			_ = printer.PrintPEM("public_key_pem", []byte(publicKeyPEM))
		}
	},
}

func init() {
	unlockCmd.Flags().StringVar(&unlockPassphrase, "passphrase", "",
		"passphrase (prompted when empty)")
	unlockCmd.Flags().BoolVar(&unlockEscrow, "escrow", false,
		"unlock from the escrowed secret (convenience mode)")
	unlockCmd.Flags().BoolVar(&unlockShowPublic, "public-key", false,
		"print the account public key after unlocking")
}
