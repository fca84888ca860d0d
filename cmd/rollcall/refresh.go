package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/matsen/rollcall/internal/bot"
	"github.com/matsen/rollcall/internal/standing"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(standingCmd)
	rootCmd.AddCommand(badCmd)
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Recompute standings and write cell notes",
	Long: `Read the attendance and roster ranges, compute every member's standing
and write the reasons as notes on their score cells.

Exit codes:
  0  success
  2  missing configuration
  3  empty sheet or a score that is not a number
  4  notes could not be written

Examples:
  rollcall refresh
  rollcall refresh --human`,
	Args: cobra.NoArgs,
	RunE: runRefresh,
}

var standingCmd = &cobra.Command{
	Use:   "standing <name>",
	Short: "Show one member's standing",
	Long: `Refresh from the sheet and show the standing of one member.
Names are matched case-insensitively.

Examples:
  rollcall standing "Ada Lovelace" --human`,
	Args: cobra.ExactArgs(1),
	RunE: runStanding,
}

var badCmd = &cobra.Command{
	Use:   "bad",
	Short: "List members not in good standing",
	Args:  cobra.NoArgs,
	RunE:  runBad,
}

// refreshOnce runs one refresh and exits on fatal errors. Per-row problems
// and note write failures are reported on stderr and returned.
func refreshOnce(cmd *cobra.Command) (*bot.Refresher, *bot.Report, error) {
	cfg := mustLoadConfig()
	mustValidate(cfg.ValidateSheets())

	store := mustOpenStore(cmd.Context(), cfg)
	defer store.Close()

	ref := newRefresher(cfg, store)
	rep, err := ref.Refresh(cmd.Context())
	if rep == nil {
		exitWithError(exitCodeFor(err), "refreshing: %v", err)
	}
	return ref, rep, err
}

func runRefresh(cmd *cobra.Command, args []string) error {
	_, rep, err := refreshOnce(cmd)

	if humanOutput {
		outputHuman("Refreshed %d member(s), wrote %d note(s); %d not in good standing\n", rep.Members, rep.Mutations, rep.BadStanding)
		for _, p := range rep.Problems {
			outputHuman("  problem: %s\n", p)
		}
		if rep.SubmitError != "" {
			outputHuman("  notes not written: %s\n", rep.SubmitError)
		}
	} else {
		outputJSON(rep)
	}

	if err != nil {
		logger.Sync()
		os.Exit(exitCodeFor(err))
	}
	return nil
}

func runStanding(cmd *cobra.Command, args []string) error {
	ref, _, _ := refreshOnce(cmd)

	rec, err := ref.Directory().Lookup(args[0])
	if errors.Is(err, standing.ErrNotFound) {
		exitWithError(ExitDataError, "no member named %q", args[0])
	}
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		outputHuman("%s: score %s, %s standing\n", rec.Name, rec.ScoreText, rec.Standing)
		for _, line := range strings.Split(rec.Summary(), "\n") {
			outputHuman("  %s\n", line)
		}
		return nil
	}
	return outputJSON(rec)
}

func runBad(cmd *cobra.Command, args []string) error {
	ref, _, _ := refreshOnce(cmd)

	recs, err := ref.Directory().BadStanding()
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if !humanOutput {
		if recs == nil {
			recs = []standing.Record{}
		}
		return outputJSON(recs)
	}

	if len(recs) == 0 {
		fmt.Println("Everyone is in good standing.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSCORE\tSTANDING\tREASONS")
	for _, rec := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", rec.Name, rec.ScoreText, rec.Standing, len(rec.Reasons))
	}
	return w.Flush()
}
