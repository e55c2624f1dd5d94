package migrations

import migrate "github.com/rubenv/sql-migrate"

func init() {
	m := &Migration{
		Migration: &migrate.Migration{
			Id: "20240112095202_add_uploaded_files_episode_index",
			Up: []string{
				"CREATE INDEX IF NOT EXISTS index_uploaded_files_on_episode ON uploaded_files USING btree (episode)",
			},
			Down: []string{
				"DROP INDEX IF EXISTS index_uploaded_files_on_episode CASCADE",
			},
		},
		PostDeployment: false,
	}

	allMigrations = append(allMigrations, m)
}
