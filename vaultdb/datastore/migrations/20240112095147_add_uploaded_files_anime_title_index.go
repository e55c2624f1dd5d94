package migrations

import migrate "github.com/rubenv/sql-migrate"

func init() {
	m := &Migration{
		Migration: &migrate.Migration{
			Id: "20240112095147_add_uploaded_files_anime_title_index",
			Up: []string{
				"CREATE INDEX IF NOT EXISTS index_uploaded_files_on_anime_title ON uploaded_files USING btree (anime_title)",
			},
			Down: []string{
				"DROP INDEX IF EXISTS index_uploaded_files_on_anime_title CASCADE",
			},
		},
		PostDeployment: false,
	}

	allMigrations = append(allMigrations, m)
}
