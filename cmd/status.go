package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"example.com/backstage/services/eventlog/internal/event"
	"example.com/backstage/services/eventlog/internal/store"
)

var statusGet bool

var statusCmd = &cobra.Command{
	Use:   "status <event-id>",
	Short: "Show whether an event is stored, deleted or unknown",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusGet, "get", false, "also print the event when it is stored")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	id, err := event.ParseID(args[0])
	if err != nil {
		return errors.Wrap(err, "invalid event id")
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

	status, err := rt.store.CheckStatus(cmd.Context(), id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if _, err := fmt.Fprintln(out, status); err != nil {
		return err
	}

	if !statusGet || status != store.StatusSaved {
		return nil
	}

	e, err := rt.store.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	if e == nil {
		// deleted between the two calls
		return nil
	}
	return json.NewEncoder(out).Encode(e)
}
