package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/matsen/rollcall/internal/localstore"
	"github.com/matsen/rollcall/internal/standing"
	"github.com/spf13/cobra"
)

var localSheetID int64

func init() {
	localNotesCmd.Flags().Int64Var(&localSheetID, "sheet-id", 0, "Sheet ID whose notes to list")

	localCmd.AddCommand(localImportCmd)
	localCmd.AddCommand(localNotesCmd)
	rootCmd.AddCommand(localCmd)
}

var localCmd = &cobra.Command{
	Use:   "local",
	Short: "Manage the local SQLite store",
	Long: `Commands for the local SQLite store used when store is "local".

The local store stands in for the Google spreadsheet: ranges are imported from
CSV exports and cell notes are written to the database instead of the sheet.`,
}

var localImportCmd = &cobra.Command{
	Use:   "import <range> <file.csv>",
	Short: "Import a CSV export as a sheet range",
	Long: `Import a CSV file and store it under the given range name, replacing
any previous import of that range.

Examples:
  rollcall local import 'Attendance!C1:Z40' attendance.csv
  rollcall local import 'Roster!A2:B40' roster.csv`,
	Args: cobra.ExactArgs(2),
	RunE: runLocalImport,
}

var localNotesCmd = &cobra.Command{
	Use:   "notes",
	Short: "List cell notes written to the local store",
	Args:  cobra.NoArgs,
	RunE:  runLocalNotes,
}

func mustOpenLocal() *localstore.DB {
	cfg := mustLoadConfig()
	db, err := localstore.OpenDB(cfg.LocalDB)
	if err != nil {
		exitWithError(ExitError, "opening local store: %v", err)
	}
	return db
}

func runLocalImport(cmd *cobra.Command, args []string) error {
	rangeSpec, path := args[0], args[1]

	f, err := os.Open(path)
	if err != nil {
		exitWithError(ExitError, "opening %s: %v", path, err)
	}
	defer f.Close()

	db := mustOpenLocal()
	defer db.Close()

	n, err := db.ImportCSV(cmd.Context(), rangeSpec, f)
	if err != nil {
		exitWithError(ExitDataError, "importing %s: %v", path, err)
	}

	if humanOutput {
		outputHuman("Imported %d row(s) into %s\n", n, rangeSpec)
		return nil
	}
	return outputJSON(StatusResponse{Status: "imported", Count: n, Path: path})
}

func runLocalNotes(cmd *cobra.Command, args []string) error {
	db := mustOpenLocal()
	defer db.Close()

	notes, err := db.Notes(cmd.Context(), localSheetID)
	if err != nil {
		exitWithError(ExitError, "listing notes: %v", err)
	}

	if !humanOutput {
		if notes == nil {
			notes = []standing.CellMutation{}
		}
		return outputJSON(notes)
	}
	if len(notes) == 0 {
		fmt.Println("No notes.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROW\tCOL\tNOTE")
	for _, n := range notes {
		fmt.Fprintf(w, "%d\t%d\t%s\n", n.Row, n.Column, truncateString(flatten(n.Note), 70))
	}
	return w.Flush()
}

// flatten joins a multi-line note onto one line.
func flatten(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\n':
			if i < len(s)-1 {
				out = append(out, ';', ' ')
			}
		default:
			out = append(out, s[i])
		}
	}
	return string(out)
}
