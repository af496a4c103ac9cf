package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/backstage/services/eventlog/internal/event"
	"example.com/backstage/services/eventlog/internal/store"
)

const maxEventLine = 4 << 20

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Save events read as JSON lines",
	Long: `Read one JSON event per line from file, or from stdin when no file or "-"
is given, and save each into the store. Duplicates are counted, not fatal.
Filter flags restrict the import to matching events; --limit stops it after
that many matches.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

var importFilter filterFlags

func init() {
	importFilter.register(importCmd)
	rootCmd.AddCommand(importCmd)
}

// importResult tallies the outcome of an import
type importResult struct {
	Accepted   int
	Duplicates int
	Invalid    int
	Skipped    int
}

type eventSaver interface {
	Save(ctx context.Context, e event.Event) (store.SaveStatus, error)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	f, err := importFilter.filter(cmd)
	if err != nil {
		return err
	}

	in := cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		file, err := os.Open(args[0])
		if err != nil {
			return errors.Wrap(err, "failed to open input")
		}
		defer file.Close()
		in = file
	}

	rt, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := importEvents(cmd.Context(), rt.store, in, f)
	if err != nil {
		return err
	}

	log.Info().
		Int("accepted", res.Accepted).
		Int("duplicates", res.Duplicates).
		Int("invalid", res.Invalid).
		Int("skipped", res.Skipped).
		Msg("Import finished")

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "accepted=%d duplicates=%d invalid=%d skipped=%d\n",
		res.Accepted, res.Duplicates, res.Invalid, res.Skipped)
	return err
}

// importEvents saves every valid event line of r that matches f. Lines that
// do not parse are skipped; a store failure aborts the import.
func importEvents(ctx context.Context, s eventSaver, r io.Reader, f event.Filter) (importResult, error) {
	var res importResult
	matched := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var e event.Event
		if err := json.Unmarshal([]byte(text), &e); err != nil {
			res.Invalid++
			log.Warn().Err(err).Int("line", line).Msg("Skipping invalid event")
			continue
		}

		if !f.Match(e) {
			res.Skipped++
			continue
		}
		if f.Limit != nil && matched >= *f.Limit {
			break
		}
		matched++

		status, err := s.Save(ctx, e)
		if err != nil {
			return res, errors.Wrapf(err, "failed to save event on line %d", line)
		}

		switch status {
		case store.SaveAccepted:
			res.Accepted++
		case store.SaveRejectedDuplicate:
			res.Duplicates++
		}
	}

	if err := scanner.Err(); err != nil {
		return res, errors.Wrap(err, "failed to read input")
	}
	return res, nil
}
