package metadata

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/mediavault/vaultdb/vaultdb/schema"
)

func TestVault_Valid(t *testing.T) {
	require.NoError(t, Vault().Validate())
}

func TestVault_Registered(t *testing.T) {
	s, err := schema.Lookup(TargetName)
	require.NoError(t, err)
	require.Equal(t, Vault(), s)
}

func TestVault_UploadedFiles(t *testing.T) {
	s := Vault()

	table := s.Table("uploaded_files")
	require.NotNil(t, table)
	require.Equal(t, []string{"id"}, table.PrimaryKey())

	for _, name := range []string{"anime_title", "episode", "filename", "ep_lang", "ep_qual"} {
		c := table.Column(name)
		require.NotNil(t, c, "column %q not declared", name)
		require.False(t, c.Nullable, "column %q must not be nullable", name)
	}

	require.True(t, table.Column("filesize").Nullable)
}

func TestVault_SelfDiffIsEmpty(t *testing.T) {
	plan := schema.Diff(Vault(), Vault())
	require.True(t, plan.Empty())
	require.Empty(t, plan.Warnings)
}
