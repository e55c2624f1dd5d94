package migrations

import (
	"regexp"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

var idPattern = regexp.MustCompile(`^\d{14}_[a-z0-9_]+$`)

func TestAll_IDsAreWellFormed(t *testing.T) {
	for _, m := range all() {
		require.Regexp(t, idPattern, m.Id)
	}
}

func TestAll_IDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, m := range all() {
		require.False(t, seen[m.Id], "duplicate migration id %q", m.Id)
		seen[m.Id] = true
	}
}

func TestAll_Sorted(t *testing.T) {
	mm := all()
	require.True(t, sort.SliceIsSorted(mm, func(i, j int) bool { return mm[i].Id < mm[j].Id }))
}

func TestAll_UpAndDownPresent(t *testing.T) {
	for _, m := range all() {
		require.NotEmpty(t, m.Up, "migration %q has no up statements", m.Id)
		require.NotEmpty(t, m.Down, "migration %q has no down statements", m.Id)
	}
}

func TestAll_ConcurrentIndexBuildsArePostDeployment(t *testing.T) {
	// CREATE/DROP INDEX CONCURRENTLY cannot run inside a transaction and is
	// only allowed in post-deployment migrations.
	concurrently := regexp.MustCompile(`(?i)\bCONCURRENTLY\b`)

	for _, m := range all() {
		for _, stmt := range append(append([]string{}, m.Up...), m.Down...) {
			if !concurrently.MatchString(stmt) {
				continue
			}
			require.True(t, m.PostDeployment, "migration %q builds an index concurrently but is not post-deployment", m.Id)
			require.True(t, m.DisableTransactionUp, "migration %q builds an index concurrently inside a transaction", m.Id)
		}
	}
}
