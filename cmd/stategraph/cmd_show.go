package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
)

var showFlags struct {
	db   string
	step int
}

var showCmd = &cobra.Command{
	Use:   "show <thread-id>",
	Short: "Show one checkpoint in full, including its state",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	f := showCmd.Flags()
	f.StringVar(&showFlags.db, "db", "checkpoints.db", "Checkpoint database path")
	f.IntVar(&showFlags.step, "step", 0, "Step to show (default: latest)")
}

func runShow(cmd *cobra.Command, args []string) error {
	threadID := args[0]

	store, err := checkpoint.NewSQLiteStore(showFlags.db)
	if err != nil {
		return fmt.Errorf("open checkpoint database: %w", err)
	}
	defer store.Close()

	var data []byte
	if showFlags.step > 0 {
		data, err = store.Load(threadID, showFlags.step)
	} else {
		data, err = store.Latest(threadID)
	}
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	cp, err := checkpoint.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("decode checkpoint: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Thread:     %s\n", cp.ThreadID)
	fmt.Fprintf(out, "Step:       %d\n", cp.Step)
	fmt.Fprintf(out, "Node:       %s\n", cp.NodeID)
	fmt.Fprintf(out, "Next:       %s\n", cp.NextNode)
	if cp.PrevNodeID != "" {
		fmt.Fprintf(out, "Previous:   %s\n", cp.PrevNodeID)
	}
	fmt.Fprintf(out, "Source:     %s\n", cp.Source)
	fmt.Fprintf(out, "Timestamp:  %s\n", cp.Timestamp.Format("2006-01-02 15:04:05.000"))
	if cp.Interrupted {
		fmt.Fprintf(out, "Interrupted: yes\n")
		if len(cp.InterruptValue) > 0 {
			fmt.Fprintf(out, "Payload:    %s\n", string(cp.InterruptValue))
		}
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, cp.State, "", "  "); err != nil {
		fmt.Fprintf(out, "State:      %s\n", string(cp.State))
		return nil
	}
	fmt.Fprintf(out, "State:\n%s\n", pretty.String())
	return nil
}
