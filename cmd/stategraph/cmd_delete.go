package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
)

var deleteFlags struct {
	db   string
	step int
}

var deleteCmd = &cobra.Command{
	Use:   "delete <thread-id>",
	Short: "Delete a thread's checkpoints",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	f := deleteCmd.Flags()
	f.StringVar(&deleteFlags.db, "db", "checkpoints.db", "Checkpoint database path")
	f.IntVar(&deleteFlags.step, "step", 0, "Delete only this step (default: whole thread)")
}

func runDelete(cmd *cobra.Command, args []string) error {
	threadID := args[0]

	store, err := checkpoint.NewSQLiteStore(deleteFlags.db)
	if err != nil {
		return fmt.Errorf("open checkpoint database: %w", err)
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	if deleteFlags.step > 0 {
		if err := store.Delete(threadID, deleteFlags.step); err != nil {
			return fmt.Errorf("delete checkpoint: %w", err)
		}
		fmt.Fprintf(out, "Deleted step %d of thread %q.\n", deleteFlags.step, threadID)
		return nil
	}

	if err := store.DeleteThread(threadID); err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	fmt.Fprintf(out, "Deleted all checkpoints for thread %q.\n", threadID)
	return nil
}
