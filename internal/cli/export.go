package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rmoreira/hearing-sync/internal/config"
	"github.com/rmoreira/hearing-sync/internal/court"
	calendarsink "github.com/rmoreira/hearing-sync/internal/sink/calendar"
	"github.com/rmoreira/hearing-sync/internal/snapshot"
)

var flagExportDir string

// newExportCmd creates the export subcommand, which writes the locally
// snapshotted schedule as .ics files for import into any calendar app.
func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the last synced schedule as iCalendar files",
		Long: `Writes one .ics file per hearing from the local snapshots of the last
successful sync. Useful when the Google Calendar integration is not
configured.`,
		RunE: runExport,
	}
	cmd.Flags().StringVar(&flagExportDir, "out", ".", "Directory to write .ics files into")
	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}

	store, err := snapshot.New(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening snapshot store: %w", err)
	}
	if err := os.MkdirAll(flagExportDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	now := time.Now()
	written := 0
	for _, system := range court.DefaultSystems() {
		records, err := store.Load(system.ID)
		if err != nil {
			return fmt.Errorf("loading snapshot for %s: %w", system.ID, err)
		}
		for _, rec := range records {
			name := icsFileName(rec.SystemID, rec.ProcessNumber, rec.Date)
			path := filepath.Join(flagExportDir, name)
			ics := calendarsink.GenerateICS(rec, now)
			if err := os.WriteFile(path, []byte(ics), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			written++
		}
	}

	if written == 0 {
		fmt.Println("No snapshotted hearings to export. Run a sync first.")
		return nil
	}
	fmt.Printf("Wrote %d .ics files to %s.\n", written, flagExportDir)
	return nil
}

// icsFileName builds a filesystem-safe file name for one hearing.
func icsFileName(system, process, date string) string {
	repl := strings.NewReplacer("/", "-", "\\", "-", " ", "_", ":", "-")
	return fmt.Sprintf("%s_%s_%s.ics", repl.Replace(system), repl.Replace(process), repl.Replace(date))
}
