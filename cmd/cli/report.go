package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/edgerunner0x01/violette/internal/store"
)

var reportDBPath string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print stored scan results as a table",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportDBPath, "db", "violette.db", "path to the results database")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	if !cmd.Flags().Changed("db") {
		reportDBPath = loadConfig().Database.Path
	}

	st, err := store.Open(reportDBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.Snapshot(cmd.Context())
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No results recorded yet.")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("IP", "Hostname", "Status", "OS", "Open Ports", "Last Scan")

	for i := range records {
		r := &records[i]
		_ = table.Append([]string{
			r.IP,
			r.Hostname,
			r.Status,
			r.OSGuess,
			formatPorts(r.Ports),
			r.LastScan,
		})
	}

	if err := table.Render(); err != nil {
		return err
	}
	fmt.Printf("\n%d host(s)\n", len(records))
	return nil
}

func formatPorts(ports []store.Port) string {
	var parts []string
	for _, p := range ports {
		entry := strconv.Itoa(p.PortNumber)
		if p.Service != "" {
			entry += "/" + p.Service
		}
		parts = append(parts, entry)
	}
	return strings.Join(parts, " ")
}
