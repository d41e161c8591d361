package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/stategraph/pkg/stategraph/store"
)

var storeFlags struct {
	db     string
	prefix string
}

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect the cross-thread key-value store",
}

var storeListCmd = &cobra.Command{
	Use:   "list <namespace>",
	Short: "List items in a namespace (parts joined with '/')",
	Args:  cobra.ExactArgs(1),
	RunE:  runStoreList,
}

var storeGetCmd = &cobra.Command{
	Use:   "get <namespace> <key>",
	Short: "Show one item's value",
	Args:  cobra.ExactArgs(2),
	RunE:  runStoreGet,
}

var storeDeleteCmd = &cobra.Command{
	Use:   "delete <namespace> <key>",
	Short: "Delete one item",
	Args:  cobra.ExactArgs(2),
	RunE:  runStoreDelete,
}

func init() {
	pf := storeCmd.PersistentFlags()
	pf.StringVar(&storeFlags.db, "db", "store.db", "Store database path")

	storeListCmd.Flags().StringVar(&storeFlags.prefix, "prefix", "", "Only list keys starting with prefix")

	storeCmd.AddCommand(storeListCmd)
	storeCmd.AddCommand(storeGetCmd)
	storeCmd.AddCommand(storeDeleteCmd)
}

// parseNamespace splits "users/alice" into its parts.
func parseNamespace(raw string) store.Namespace {
	return store.Namespace(strings.Split(raw, "/"))
}

func openStore() (*store.SQLiteStore, error) {
	s, err := store.NewSQLiteStore(storeFlags.db)
	if err != nil {
		return nil, fmt.Errorf("open store database: %w", err)
	}
	return s, nil
}

func runStoreList(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	ns := parseNamespace(args[0])
	items, err := s.List(cmd.Context(), ns, storeFlags.prefix)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprintf(out, "No items in namespace %q.\n", ns.String())
		return nil
	}

	for _, item := range items {
		fmt.Fprintf(out, "%s  updated=%s  %s\n",
			item.Key, item.UpdatedAt.Format("2006-01-02 15:04:05"), string(item.Value))
	}
	return nil
}

func runStoreGet(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	ns := parseNamespace(args[0])
	item, err := s.Get(cmd.Context(), ns, args[1])
	if err != nil {
		return fmt.Errorf("get item: %w", err)
	}

	out := cmd.OutOrStdout()
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, item.Value, "", "  "); err != nil {
		fmt.Fprintln(out, string(item.Value))
		return nil
	}
	fmt.Fprintln(out, pretty.String())
	return nil
}

func runStoreDelete(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	ns := parseNamespace(args[0])
	if err := s.Delete(cmd.Context(), ns, args[1]); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s/%s.\n", ns.String(), args[1])
	return nil
}
