// =============================================================================
// Tax Transaction Manager - Schema Command
// =============================================================================
//
// This file defines the 'schema' command, which prints the XSD describing the
// XML report.
//
// COMMAND USAGE:
//   taxcalc schema [--output report.xsd]
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/ginjaninja78/tax-transaction-manager/internal/xmlwriter"
	"github.com/spf13/cobra"
)

// schemaOutput is the file the XSD is written to. Empty prints to stdout.
var schemaOutput string

// schemaCmd prints the XSD describing the XML report, for consumers that
// validate the report before loading it.
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the XSD schema of the XML report",
	RunE: func(cmd *cobra.Command, args []string) error {
		xsd := xmlwriter.GenerateXSD(xmlwriter.DefaultGenerateOptions())

		if schemaOutput == "" {
			_, err := cmd.OutOrStdout().Write(xsd)
			return err
		}

		if err := os.WriteFile(schemaOutput, xsd, 0644); err != nil {
			return fmt.Errorf("failed to write schema: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Schema written to %s\n", schemaOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)

	schemaCmd.Flags().StringVarP(&schemaOutput, "output", "o", "", "Write the schema to this file instead of stdout")
}
