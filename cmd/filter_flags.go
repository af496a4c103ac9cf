package cmd

import (
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"example.com/backstage/services/eventlog/internal/event"
)

// filterFlags are the command line form of an event filter
type filterFlags struct {
	ids     []string
	authors []string
	kinds   []uint
	since   int64
	until   int64
	tags    []string
	limit   int
}

func (ff *filterFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringSliceVar(&ff.ids, "id", nil, "event id (hex), repeatable")
	fs.StringSliceVar(&ff.authors, "author", nil, "author public key (hex), repeatable")
	fs.UintSliceVar(&ff.kinds, "kind", nil, "event kind, repeatable")
	fs.Int64Var(&ff.since, "since", 0, "only events created at or after this unix time")
	fs.Int64Var(&ff.until, "until", 0, "only events created at or before this unix time")
	fs.StringArrayVar(&ff.tags, "tag", nil, "tag constraint name=value[,value...], repeatable")
	fs.IntVar(&ff.limit, "limit", 0, "maximum number of events")
}

// filter builds the event filter from the flags that were set on cmd
func (ff *filterFlags) filter(cmd *cobra.Command) (event.Filter, error) {
	fs := cmd.Flags()
	f := event.NewFilter()

	if fs.Changed("id") {
		ids := make([]event.ID, 0, len(ff.ids))
		for _, s := range ff.ids {
			id, err := event.ParseID(s)
			if err != nil {
				return f, errors.Wrapf(err, "invalid --id %q", s)
			}
			ids = append(ids, id)
		}
		f = f.WithIDs(ids...)
	}

	if fs.Changed("author") {
		authors := make([]event.PublicKey, 0, len(ff.authors))
		for _, s := range ff.authors {
			pk, err := event.ParsePublicKey(s)
			if err != nil {
				return f, errors.Wrapf(err, "invalid --author %q", s)
			}
			authors = append(authors, pk)
		}
		f = f.WithAuthors(authors...)
	}

	if fs.Changed("kind") {
		kinds := make([]event.Kind, 0, len(ff.kinds))
		for _, k := range ff.kinds {
			if k > math.MaxUint16 {
				return f, errors.Errorf("invalid --kind %d: out of range", k)
			}
			kinds = append(kinds, event.Kind(k))
		}
		f = f.WithKinds(kinds...)
	}

	if fs.Changed("since") {
		if ff.since < 0 {
			return f, errors.Errorf("invalid --since %d", ff.since)
		}
		f = f.WithSince(event.Timestamp(ff.since))
	}

	if fs.Changed("until") {
		if ff.until < 0 {
			return f, errors.Errorf("invalid --until %d", ff.until)
		}
		f = f.WithUntil(event.Timestamp(ff.until))
	}

	for _, raw := range ff.tags {
		name, values, err := parseTagFlag(raw)
		if err != nil {
			return f, err
		}
		f = f.WithTag(name, values...)
	}

	if fs.Changed("limit") {
		if ff.limit < 0 {
			return f, errors.Errorf("invalid --limit %d", ff.limit)
		}
		f = f.WithLimit(ff.limit)
	}

	return f, nil
}

// parseTagFlag splits "name=v1,v2". "name=" yields an empty value set.
func parseTagFlag(flag string) (string, []string, error) {
	name, raw, ok := strings.Cut(flag, "=")
	if !ok || name == "" {
		return "", nil, errors.Errorf("invalid --tag %q: expected name=value[,value...]", flag)
	}
	if raw == "" {
		return name, []string{}, nil
	}
	return name, strings.Split(raw, ","), nil
}
