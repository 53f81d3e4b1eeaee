package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/avatar/internal/control"
)

var failedCmd = &cobra.Command{
	Use:   "failed",
	Short: "Inspect and edit the failure registry",
}

var failedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sources that failed to load",
	Run:   runFailedList,
}

var failedClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every failed source",
	Run:   runFailedClear,
}

var failedRemoveCmd = &cobra.Command{
	Use:   "remove <key>...",
	Short: "Forget specific failed sources (keys look like github:octocat)",
	Args:  cobra.MinimumNArgs(1),
	Run:   runFailedRemove,
}

func init() {
	failedCmd.AddCommand(failedListCmd, failedClearCmd, failedRemoveCmd)
	rootCmd.AddCommand(failedCmd)
}

func openRegistry(ctx context.Context) *control.Registry {
	cfg := loadConfig()
	reg, err := control.OpenRegistry(ctx, cfg, false)
	if err != nil {
		slog.Error("Failed to open failure registry", "error", err)
		os.Exit(1)
	}
	if cfg.Registry.Backend == "memory" {
		slog.Warn("The in-memory registry is per process; this command only sees its own state")
	}
	return reg
}

func runFailedList(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	reg := openRegistry(ctx)
	defer func() {
		_ = reg.Close()
	}()

	all, err := reg.Repo.GetAll(ctx)
	if err != nil {
		slog.Error("Failed to list failed sources", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "KEY\tREASON\tFAILED AT\tEXPIRES")
	for _, fs := range all {
		expires := "never"
		if fs.ExpiresAt != nil {
			expires = fs.ExpiresAt.Format(time.RFC3339)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", fs.Key, fs.Reason, fs.FailedAt.Format(time.RFC3339), expires)
	}
	_ = w.Flush()
}

func runFailedClear(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	reg := openRegistry(ctx)
	defer func() {
		_ = reg.Close()
	}()

	if err := reg.Repo.Clear(ctx); err != nil {
		slog.Error("Failed to clear failed sources", "error", err)
		os.Exit(1)
	}
	slog.Info("Failure registry cleared")
}

func runFailedRemove(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	reg := openRegistry(ctx)
	defer func() {
		_ = reg.Close()
	}()

	for _, key := range args {
		if err := reg.Repo.Remove(ctx, key); err != nil {
			slog.Error("Failed to remove failed source", "key", key, "error", err)
			os.Exit(1)
		}
		slog.Info("Removed failed source", "key", key)
	}
}
