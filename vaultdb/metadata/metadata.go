// Package metadata declares the schema of the vault metadata database. The
// declaration is the source of truth the generate command diffs the live
// database against, and is registered under the name the migration.target
// configuration parameter refers to.
package metadata

import "gitlab.com/mediavault/vaultdb/vaultdb/schema"

// TargetName is the registry name of the vault schema declaration.
const TargetName = "vault"

func init() {
	schema.Register(TargetName, Vault())
}

// Vault returns the declared schema of the vault metadata database. It must
// describe the state reached by applying all migrations in
// vaultdb/datastore/migrations.
func Vault() *schema.Schema {
	return &schema.Schema{
		Name: "public",
		Tables: []*schema.Table{
			{
				Name: "uploaded_files",
				Columns: []*schema.Column{
					{Name: "id", Type: "bigint", PrimaryKey: true},
					{Name: "anime_title", Type: "text"},
					{Name: "episode", Type: "integer"},
					{Name: "uploaded_chat_id", Type: "bigint"},
					{Name: "uploader_user_id", Type: "bigint"},
					{Name: "uploaded_message_id", Type: "bigint"},
					{Name: "vault_chat_id", Type: "bigint"},
					{Name: "vault_message_id", Type: "bigint"},
					{Name: "filename", Type: "text"},
					{Name: "filesize", Type: "bigint", Nullable: true},
					{Name: "created_at", Type: "timestamp with time zone", Default: "now()"},
					{Name: "ep_lang", Type: "text", Default: "'ja'"},
					{Name: "ep_qual", Type: "integer", Default: "1080"},
				},
				Indexes: []*schema.Index{
					{Name: "index_uploaded_files_on_anime_title", Columns: []string{"anime_title"}},
					{Name: "index_uploaded_files_on_episode", Columns: []string{"episode"}},
					{Name: "index_uploaded_files_on_anime_title_and_episode_and_created_at", Columns: []string{"anime_title", "episode", "created_at"}},
				},
			},
		},
	}
}
