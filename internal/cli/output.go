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
	"encoding/json"
	"fmt"
	"io"

	"github.com/jeremyhahn/go-keycustody/pkg/custody"
	"github.com/jeremyhahn/go-keycustody/pkg/recovery"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// PrintError prints an error
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{"error": err.Error()})
	default:
		_, werr := fmt.Fprintf(p.writer, "Error: %s\n", err.Error())
		return werr
	}
}

// PrintMessage prints a plain status message
func (p *Printer) PrintMessage(msg string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{"message": msg})
	default:
		_, err := fmt.Fprintln(p.writer, msg)
		return err
	}
}

// PrintStatus prints an account's custody status
func (p *Printer) PrintStatus(status *custody.Status) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(status)
	default:
		fmt.Fprintf(p.writer, "Account:          %s\n", status.AccountID)
		fmt.Fprintf(p.writer, "Mode:             %s\n", status.Mode)
		fmt.Fprintf(p.writer, "Live method:      %s\n", status.DerivationMethod)
		fmt.Fprintf(p.writer, "Recovery data:    %t\n", status.HasRecoveryData)
		fmt.Fprintf(p.writer, "Escrowed secret:  %t\n", status.HasEscrow)
		fmt.Fprintf(p.writer, "Record version:   %d\n", status.Version)
		fmt.Fprintf(p.writer, "Created:          %s\n", status.CreatedAt)
		fmt.Fprintf(p.writer, "Updated:          %s\n", status.UpdatedAt)
		return nil
	}
}

// PrintGeneratedPassphrase shows a generated passphrase exactly once.
func (p *Printer) PrintGeneratedPassphrase(passphrase string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{"passphrase": passphrase})
	default:
		fmt.Fprintln(p.writer, "Your passphrase (shown once, write it down):")
		fmt.Fprintf(p.writer, "\n    %s\n\n", passphrase)
		return nil
	}
}

// PrintRecoveryDocument shows the recovery key exactly once.
func (p *Printer) PrintRecoveryDocument(doc *recovery.Document) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{"recovery_key": doc.RecoveryKey})
	default:
		fmt.Fprintln(p.writer, "Your recovery key (shown once, store it offline):")
		fmt.Fprintf(p.writer, "\n    %s\n\n", doc.RecoveryKey)
		fmt.Fprintln(p.writer, "Anyone with this key can recover your private key.")
		return nil
	}
}

// PrintPEM prints PEM-encoded material
func (p *Printer) PrintPEM(label string, pemData []byte) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{label: string(pemData)})
	default:
		_, err := fmt.Fprint(p.writer, string(pemData))
		return err
	}
}

// printJSON prints data as indented JSON
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
