package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/anstrom/shodan-notifier/internal/diff"
	"github.com/anstrom/shodan-notifier/internal/report"
	"github.com/anstrom/shodan-notifier/internal/snapshot"
)

const defaultDiffContext = 3

var (
	diffFrom    string
	diffTo      string
	diffUnified bool
	diffContext int
)

// diffCmd represents the diff command.
var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare two stored snapshots offline",
	Long: `Compare the archive of --from against the archive of --to, or against the
latest snapshot when --to is omitted. Prints the incremental report that a run
would have published, or a unified diff of the identity lines with --unified.
No lookups are made and nothing is published.`,
	Example: `  shodan-notifier diff --from 2024-04-30
  shodan-notifier diff --from 2024-04-01 --to 2024-05-01 --unified`,
	Args: cobra.NoArgs,
	RunE: runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().StringVar(&diffFrom, "from", "", "older archive date (YYYY-MM-DD)")
	diffCmd.Flags().StringVar(&diffTo, "to", "", "newer archive date (default: latest snapshot)")
	diffCmd.Flags().BoolVar(&diffUnified, "unified", false, "print a unified diff instead of the report")
	diffCmd.Flags().IntVar(&diffContext, "context", defaultDiffContext, "context lines for --unified")

	if err := diffCmd.MarkFlagRequired("from"); err != nil {
		panic(err)
	}
}

func runDiff(cmd *cobra.Command, _ []string) error {
	cfg, err := currentConfig()
	if err != nil {
		return err
	}

	return compareSnapshots(cmd.OutOrStdout(), newStore(cfg), newBuilder(cfg), diffOptions{
		From:    diffFrom,
		To:      diffTo,
		Unified: diffUnified,
		Context: diffContext,
	})
}

type diffOptions struct {
	From    string
	To      string
	Unified bool
	Context int
}

// compareSnapshots writes the comparison of two stored snapshots to w.
func compareSnapshots(w io.Writer, store *snapshot.FileStore, builder *report.Builder, opts diffOptions) error {
	fromDay, err := parseDate(opts.From)
	if err != nil {
		return err
	}
	old, err := store.LoadArchive(fromDay)
	if err != nil {
		return err
	}

	var (
		newer []snapshot.Row
		asOf  = time.Now()
	)
	if opts.To == "" {
		newer, err = store.Load()
	} else {
		asOf, err = parseDate(opts.To)
		if err != nil {
			return err
		}
		newer, err = store.LoadArchive(asOf)
	}
	if err != nil {
		return err
	}
	current := snapshot.Sort(newer)

	if opts.Unified {
		out, err := diff.Unified(old, current, opts.Context)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	}

	b := *builder
	b.Now = func() time.Time { return asOf }
	doc := b.Incremental(diff.Compute(old, current))

	_, err = fmt.Fprintln(w, doc.Body)
	return err
}
