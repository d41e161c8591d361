package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
)

var threadsFlags struct {
	db string
}

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "List threads with checkpoint history",
	RunE:  runThreads,
}

func init() {
	f := threadsCmd.Flags()
	f.StringVar(&threadsFlags.db, "db", "checkpoints.db", "Checkpoint database path")
}

func runThreads(cmd *cobra.Command, _ []string) error {
	store, err := checkpoint.NewSQLiteStore(threadsFlags.db)
	if err != nil {
		return fmt.Errorf("open checkpoint database: %w", err)
	}
	defer store.Close()

	threads, err := store.Threads()
	if err != nil {
		return fmt.Errorf("list threads: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(threads) == 0 {
		fmt.Fprintln(out, "No threads found.")
		return nil
	}

	for _, threadID := range threads {
		infos, err := store.List(threadID)
		if err != nil {
			return fmt.Errorf("list checkpoints for %s: %w", threadID, err)
		}

		last := infos[len(infos)-1]
		fmt.Fprintf(out, "%s  steps=%d  last_node=%s  updated=%s\n",
			threadID, len(infos), last.NodeID, last.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return nil
}
