package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/dittofs/internal/sysinfo"
	"github.com/marmos91/dittofs/pkg/config"
	"github.com/marmos91/dittofs/pkg/updateengine"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Blacklist the currently running OS version",
	Long: `Record the currently running OS version as rolled back from.

The version is written to the powerwash-safe store, so it survives a
factory reset; future offers of this version are expected to be filtered
by the offer pipeline. Any in-flight update attempt is reset, since its
offer becomes moot.

The actual partition switch is performed by the platform's rollback
tooling; this command only records the blacklist.`,
	RunE: runRollback,
}

func runRollback(cmd *cobra.Command, args []string) error {
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
	state.Rollback()

	cmd.Printf("Rollback recorded: version %q is now blacklisted.\n", state.RollbackVersion())
	return nil
}
