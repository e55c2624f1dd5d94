package migrations

import migrate "github.com/rubenv/sql-migrate"

func init() {
	m := &Migration{
		Migration: &migrate.Migration{
			Id: "20240530101246_post_add_uploaded_files_latest_lookup_index",
			Up: []string{
				"CREATE INDEX CONCURRENTLY IF NOT EXISTS index_uploaded_files_on_anime_title_and_episode_and_created_at ON uploaded_files USING btree (anime_title, episode, created_at DESC)",
			},
			Down: []string{
				"DROP INDEX IF EXISTS index_uploaded_files_on_anime_title_and_episode_and_created_at CASCADE",
			},
			DisableTransactionUp:   true,
			DisableTransactionDown: true,
		},
		PostDeployment: true,
	}

	allMigrations = append(allMigrations, m)
}
