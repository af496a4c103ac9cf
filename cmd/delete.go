package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	deleteFilter filterFlags
	deleteAll    bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Soft-delete events matching a filter",
	Long: `Mark the live events matching the filter flags as deleted. Deleted ids
stay reserved and cannot be saved again. Without --limit at most the
configured delete limit is affected per run.`,
	Args: cobra.NoArgs,
	RunE: runDelete,
}

func init() {
	deleteFilter.register(deleteCmd)
	deleteCmd.Flags().BoolVar(&deleteAll, "all", false, "allow deleting without any filter constraint")
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	f, err := deleteFilter.filter(cmd)
	if err != nil {
		return err
	}
	if f.IsEmpty() && !deleteAll {
		return errors.New("refusing to delete without a filter; pass --all to delete the newest events")
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

	return rt.store.Delete(cmd.Context(), f)
}
