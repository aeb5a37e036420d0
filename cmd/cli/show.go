package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/shodan-notifier/internal/snapshot"
)

var (
	showDate string
	showList bool
)

// showCmd represents the show command.
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the latest snapshot or an archived one",
	Long: `Display the rows of the latest snapshot as a table. With --date the
archive of that calendar day is shown instead; --list prints the archived dates.`,
	Example: `  shodan-notifier show
  shodan-notifier show --date 2024-05-01
  shodan-notifier show --list`,
	Args: cobra.NoArgs,
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().StringVar(&showDate, "date", "", "archive date to display (YYYY-MM-DD)")
	showCmd.Flags().BoolVar(&showList, "list", false, "list archived dates")
}

func runShow(cmd *cobra.Command, _ []string) error {
	cfg, err := currentConfig()
	if err != nil {
		return err
	}
	store := newStore(cfg)
	out := cmd.OutOrStdout()

	if showList {
		dates, err := store.ListArchives()
		if err != nil {
			return err
		}
		if len(dates) == 0 {
			fmt.Fprintln(out, "No archives found.")
			return nil
		}
		for _, d := range dates {
			fmt.Fprintln(out, d.Format(snapshot.ArchiveDateLayout))
		}
		return nil
	}

	rows, err := loadRows(store, showDate)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "Snapshot is empty.")
		return nil
	}

	return renderTable(out, rows)
}

// loadRows returns the archive for date, or the latest snapshot when date is empty.
func loadRows(store *snapshot.FileStore, date string) ([]snapshot.Row, error) {
	if date == "" {
		return store.Load()
	}
	day, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	return store.LoadArchive(day)
}

func parseDate(s string) (time.Time, error) {
	day, err := time.Parse(snapshot.ArchiveDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return day, nil
}

// renderTable writes rows as a console table.
func renderTable(w io.Writer, rows []snapshot.Row) error {
	table := tablewriter.NewWriter(w)
	header := make([]any, len(snapshot.Columns))
	for i, c := range snapshot.Columns {
		header[i] = c
	}
	table.Header(header...)

	for i := range rows {
		_ = table.Append(rows[i].Fields())
	}

	return table.Render()
}
