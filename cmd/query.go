package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	queryFilter filterFlags
	queryCount  bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Print events matching a filter",
	Long: `Print the live events matching the filter flags as JSON lines, newest
first. With --count only the number of matching events is printed.`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

func init() {
	queryFilter.register(queryCmd)
	queryCmd.Flags().BoolVar(&queryCount, "count", false, "print the number of matching events only")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	f, err := queryFilter.filter(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rt, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if queryCount {
		n, err := rt.store.Count(cmd.Context(), f)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
		return err
	}

	events, err := rt.store.Query(cmd.Context(), f)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return errors.Wrap(err, "failed to write event")
		}
	}
	return nil
}
