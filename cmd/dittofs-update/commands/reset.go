package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/dittofs/internal/sysinfo"
	"github.com/marmos91/dittofs/pkg/config"
	"github.com/marmos91/dittofs/pkg/updateengine"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the in-flight update attempt",
	Long: `Reset the in-flight update attempt: attempt counters, URL position,
per-URL failure count, backoff expiry, and current-attempt byte counters.

The response signature, cumulative byte totals, and the rollback version
are untouched, so the next offer of the same update starts from a clean
attempt rather than being mistaken for a new response.

This is safe to run while the host process is stopped; running it against
a live host process is not supported (the stores are exclusive).`,
	RunE: runReset,
}

func runReset(cmd *cobra.Command, args []string) error {
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
	state.ResetUpdateStatus()

	cmd.Println("Update attempt state reset.")
	return nil
}
