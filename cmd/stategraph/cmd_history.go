package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
)

var historyFlags struct {
	db string
}

var historyCmd = &cobra.Command{
	Use:   "history <thread-id>",
	Short: "Show the checkpoint history for a thread",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyFlags.db, "db", "checkpoints.db", "Checkpoint database path")
}

func runHistory(cmd *cobra.Command, args []string) error {
	threadID := args[0]

	store, err := checkpoint.NewSQLiteStore(historyFlags.db)
	if err != nil {
		return fmt.Errorf("open checkpoint database: %w", err)
	}
	defer store.Close()

	infos, err := store.List(threadID)
	if err != nil {
		return fmt.Errorf("list checkpoints: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintf(out, "No checkpoints for thread %q.\n", threadID)
		return nil
	}

	for _, info := range infos {
		data, err := store.Load(threadID, info.Step)
		if err != nil {
			return fmt.Errorf("load step %d: %w", info.Step, err)
		}
		cp, err := checkpoint.Unmarshal(data)
		if err != nil {
			return fmt.Errorf("decode step %d: %w", info.Step, err)
		}

		marker := ""
		if cp.Interrupted {
			marker = "  [interrupted]"
		}
		fmt.Fprintf(out, "step %3d  %s -> %s  source=%s  %s%s\n",
			cp.Step, cp.NodeID, cp.NextNode, cp.Source,
			cp.Timestamp.Format("15:04:05.000"), marker)
	}
	return nil
}
