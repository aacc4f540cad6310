// =============================================================================
// Tax Transaction Manager - Main Entry Point
// =============================================================================
//
// USAGE:
//   taxcalc process       - Validate transaction files and calculate tax
//   taxcalc edit          - Edit one record and re-validate it
//   taxcalc history       - List past processing runs
//   taxcalc version       - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Core business logic (import, engine, reports, history)
//   - pkg/           : Shared file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/tax-transaction-manager/cmd"
)

func main() {
	cmd.Execute()
}
