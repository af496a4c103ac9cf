package cmd

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/eventlog/internal/event"
)

const (
	hexID     = "5c83da77af1dec6d7289834998ad7aafbd9e2191396d75ec3cc27f5a77226f36"
	hexPubKey = "f7234bd4c1394dda46d09f35bd384dd30cc552ad5541990f98844fb06676e9ca"
)

func parseFilter(t *testing.T, args ...string) (event.Filter, error) {
	t.Helper()

	var ff filterFlags
	cmd := &cobra.Command{Use: "test"}
	ff.register(cmd)
	require.NoError(t, cmd.Flags().Parse(args))

	return ff.filter(cmd)
}

func TestFilterFlagsUnset(t *testing.T) {
	f, err := parseFilter(t)
	require.NoError(t, err)
	assert.True(t, f.IsEmpty())
}

func TestFilterFlagsAll(t *testing.T) {
	f, err := parseFilter(t,
		"--id", hexID,
		"--author", hexPubKey,
		"--kind", "1", "--kind", "30023",
		"--since", "100",
		"--until", "200",
		"--tag", "p=alice,bob",
		"--tag", "t=",
		"--limit", "5",
	)
	require.NoError(t, err)

	id, _ := event.ParseID(hexID)
	pk, _ := event.ParsePublicKey(hexPubKey)

	assert.Equal(t, []event.ID{id}, f.IDs)
	assert.Equal(t, []event.PublicKey{pk}, f.Authors)
	assert.Equal(t, []event.Kind{1, 30023}, f.Kinds)
	require.NotNil(t, f.Since)
	assert.Equal(t, event.Timestamp(100), *f.Since)
	require.NotNil(t, f.Until)
	assert.Equal(t, event.Timestamp(200), *f.Until)
	assert.Equal(t, []string{"alice", "bob"}, f.Tags["p"])
	assert.NotNil(t, f.Tags["t"])
	assert.Empty(t, f.Tags["t"])
	require.NotNil(t, f.Limit)
	assert.Equal(t, 5, *f.Limit)
}

func TestFilterFlagsZeroValuesAreConstraints(t *testing.T) {
	f, err := parseFilter(t, "--since", "0", "--limit", "0")
	require.NoError(t, err)

	require.NotNil(t, f.Since)
	require.NotNil(t, f.Limit)
	assert.Equal(t, 0, *f.Limit)
}

func TestFilterFlagsInvalid(t *testing.T) {
	cases := map[string][]string{
		"short id":     {"--id", "abcd"},
		"bad author":   {"--author", strings.Repeat("zz", 32)},
		"kind range":   {"--kind", "70000"},
		"tag no value": {"--tag", "p"},
		"tag no name":  {"--tag", "=alice"},
		"negative":     {"--limit", "-1"},
	}

	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseFilter(t, args...)
			assert.Error(t, err)
		})
	}
}
