package cli

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgerunner0x01/violette/internal/store"
)

var (
	exportDBPath string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored scan results as JSON",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportDBPath, "db", "violette.db", "path to the results database")
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}

// exportDocument is the JSON export shape.
type exportDocument struct {
	Metadata exportMetadata     `json:"metadata"`
	Hosts    []store.HostRecord `json:"hosts"`
}

type exportMetadata struct {
	GeneratedAt string `json:"generated_at"`
	TotalHosts  int    `json:"total_hosts"`
}

func runExport(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	if !cmd.Flags().Changed("db") {
		exportDBPath = loadConfig().Database.Path
	}

	st, err := store.Open(exportDBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.Snapshot(cmd.Context())
	if err != nil {
		return err
	}
	if records == nil {
		records = []store.HostRecord{}
	}

	doc := exportDocument{
		Metadata: exportMetadata{
			GeneratedAt: store.Timestamp(time.Now()),
			TotalHosts:  len(records),
		},
		Hosts: records,
	}

	out := os.Stdout
	if exportOutput != "" {
		f, err := os.Create(exportOutput) // #nosec G304 - path comes from the operator
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
