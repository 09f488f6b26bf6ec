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
)

var statusCmd = &cobra.Command{
	Use:   "status <account-id>",
	Short: "Show an account's custody state",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		application, err := buildApp()
		if err != nil {
			handleError(err)
		}
		defer application.close()

		status, err := application.service.AccountStatus(args[0])
		if err != nil {
			handleError(err)
		}

		printer := NewPrinter(flagOutputFormat, os.Stdout)
		if err := printer.PrintStatus(status); err != nil {
			handleError(err)
		}
	},
}
