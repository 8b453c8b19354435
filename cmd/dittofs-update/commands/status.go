package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittofs/internal/bytesize"
	"github.com/marmos91/dittofs/internal/cli/output"
	"github.com/marmos91/dittofs/internal/sysinfo"
	"github.com/marmos91/dittofs/pkg/config"
	"github.com/marmos91/dittofs/pkg/updateengine"
)

var statusOutput string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the update-engine payload state",
	Long: `Display the current state of the payload state machine: response
signature, attempt counters, current URL, backoff expiry, durations, byte
counters, reboot count, and rollback version.

This opens the same BadgerDB-backed persisted stores the update engine
itself writes through. The stores are exclusive, so the command cannot
open them while the host process is running.

Examples:
  # Show update status as a table
  dittofs-update status

  # Output as JSON
  dittofs-update status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}
	printer := output.NewPrinter(cmd.OutOrStdout(), format, true)

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	store, powerwash, closeStores, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	system := sysinfo.New(cfg.UpdateEngine.AllowHTTPDownloads)
	state := updateengine.New(store, powerwash, system, realClock{}, nil, cfg.UpdateEngine.ToEngineConfig())
	snap := state.Snapshot()

	if format == output.FormatTable {
		return printer.Print(statusTable(snap))
	}
	return printer.Print(snap)
}

// statusTable renders a Snapshot as field/value rows, with byte counters
// humanized.
func statusTable(snap updateengine.Snapshot) *output.TableData {
	table := output.NewTableData("Field", "Value")

	table.AddRow("Response signature", snap.ResponseSignature)
	table.AddRow("Payload attempt number", strconv.FormatInt(snap.PayloadAttemptNumber, 10))
	table.AddRow("Full payload attempt number", strconv.FormatInt(snap.FullPayloadAttemptNumber, 10))
	table.AddRow("Current URL", snap.CurrentURL)
	table.AddRow("URL failure count", strconv.FormatInt(snap.URLFailureCount, 10))
	table.AddRow("URL switch count", strconv.FormatInt(snap.URLSwitchCount, 10))
	table.AddRow("Responses seen", strconv.FormatInt(snap.NumResponsesSeen, 10))
	table.AddRow("Backoff expiry", snap.BackoffExpiryTime.String())
	table.AddRow("Backed off", strconv.FormatBool(snap.ShouldBackoffDownload))
	table.AddRow("Update duration", snap.UpdateDuration.String())
	table.AddRow("Update duration (uptime)", snap.UpdateDurationUptime.String())
	sources := []updateengine.DownloadSource{
		updateengine.SourceHTTPSServer,
		updateengine.SourceHTTPServer,
		updateengine.SourceHTTPPeer,
	}
	for _, src := range sources {
		table.AddRow("Current bytes ("+src.String()+")", bytesize.ByteSize(snap.CurrentBytesDownloaded[src]).String())
	}
	for _, src := range sources {
		table.AddRow("Total bytes ("+src.String()+")", bytesize.ByteSize(snap.TotalBytesDownloaded[src]).String())
	}
	table.AddRow("Reboots during update", strconv.FormatInt(snap.NumReboots, 10))
	table.AddRow("Rollback version", snap.RollbackVersion)

	return table
}
