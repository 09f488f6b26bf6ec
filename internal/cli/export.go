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
	exportPassphrase    string
	exportPassword      string
	exportOutputFile    string
	exportPublicKeyOnly bool
)

var exportCmd = &cobra.Command{
	Use:   "export <account-id>",
	Short: "Export account key material",
	Long: `Export the account public key, or the private key as an encrypted
PKCS#8 PEM block under an export password for use with external tooling.
The private key is never written in plaintext.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		application, err := buildApp()
		if err != nil {
			handleError(err)
		}
		defer application.close()

		accountID := args[0]
		printer := NewPrinter(flagOutputFormat, os.Stdout)

		if exportPublicKeyOnly {
			publicKeyPEM, err := application.service.PublicKeyPEM(accountID)
			if err != nil {
				handleError(err)
			}
			writeExport(printer, "public_key_pem", []byte(publicKeyPEM))
			return
		}

		status, err := application.service.AccountStatus(accountID)
		if err != nil {
			handleError(err)
		}

		var session *custody.Session
		if status.DerivationMethod.String() == "passkey-prf" {
			session, err = application.service.UnlockWithPasskey(cmd.Context(), accountID)
		} else {
			secret, perr := readPassphrase(exportPassphrase, "Passphrase")
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

		password, err := readPassphrase(exportPassword, "Export password")
		if err != nil {
			handleError(err)
		}
		defer password.Clear()

		exported, err := application.service.ExportPrivateKey(session, password)
		if err != nil {
			handleError(err)
		}

		writeExport(printer, "encrypted_private_key_pem", exported)
	},
}

func writeExport(printer *Printer, label string, pemData []byte) {
	if exportOutputFile != "" {
		if err := os.WriteFile(exportOutputFile, pemData, 0600); err != nil {
			handleError(err)
		}
		_ = printer.PrintMessage("Wrote " + exportOutputFile)
		return
	}
	_ = printer.PrintPEM(label, pemData)
}

func init() {
	exportCmd.Flags().StringVar(&exportPassphrase, "passphrase", "",
		"passphrase (prompted when empty and live method is passphrase)")
	exportCmd.Flags().StringVar(&exportPassword, "export-password", "",
		"password protecting the exported PKCS#8 block (prompted when empty)")
	exportCmd.Flags().StringVarP(&exportOutputFile, "file", "f", "",
		"write output to file instead of stdout")
	exportCmd.Flags().BoolVar(&exportPublicKeyOnly, "public", false,
		"export the public key only (no unlock required)")
}
