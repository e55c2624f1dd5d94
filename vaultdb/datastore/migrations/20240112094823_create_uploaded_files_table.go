package migrations

import migrate "github.com/rubenv/sql-migrate"

func init() {
	m := &Migration{
		Migration: &migrate.Migration{
			Id: "20240112094823_create_uploaded_files_table",
			Up: []string{
				`CREATE TABLE IF NOT EXISTS uploaded_files (
					id bigint GENERATED BY DEFAULT AS IDENTITY,
					anime_title text NOT NULL,
					episode integer NOT NULL,
					uploaded_chat_id bigint NOT NULL,
					uploader_user_id bigint NOT NULL,
					uploaded_message_id bigint NOT NULL,
					vault_chat_id bigint NOT NULL,
					vault_message_id bigint NOT NULL,
					filename text NOT NULL,
					filesize bigint,
					created_at timestamp with time zone NOT NULL DEFAULT now(),
					CONSTRAINT pk_uploaded_files PRIMARY KEY (id),
					CONSTRAINT check_uploaded_files_filename_length CHECK ((char_length(filename) <= 1024))
				)`,
			},
			Down: []string{
				"DROP TABLE IF EXISTS uploaded_files CASCADE",
			},
		},
		PostDeployment: false,
	}

	allMigrations = append(allMigrations, m)
}
