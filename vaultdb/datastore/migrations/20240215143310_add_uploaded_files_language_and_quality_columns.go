package migrations

import migrate "github.com/rubenv/sql-migrate"

func init() {
	m := &Migration{
		Migration: &migrate.Migration{
			Id: "20240215143310_add_uploaded_files_language_and_quality_columns",
			Up: []string{
				"ALTER TABLE uploaded_files ADD COLUMN IF NOT EXISTS ep_lang text NOT NULL DEFAULT 'ja'",
				"ALTER TABLE uploaded_files ADD COLUMN IF NOT EXISTS ep_qual integer NOT NULL DEFAULT 1080",
				`DO $$
				BEGIN
					IF NOT EXISTS (
						SELECT
							1
						FROM
							information_schema.constraint_column_usage
						WHERE
							table_name = 'uploaded_files'
							AND column_name = 'ep_lang'
							AND constraint_name = 'check_uploaded_files_ep_lang_length') THEN
						ALTER TABLE public.uploaded_files
							ADD CONSTRAINT check_uploaded_files_ep_lang_length CHECK ((char_length(ep_lang) <= 16)) NOT VALID;
					END IF;
				END;
				$$`,
				"ALTER TABLE uploaded_files VALIDATE CONSTRAINT check_uploaded_files_ep_lang_length",
			},
			Down: []string{
				"ALTER TABLE uploaded_files DROP CONSTRAINT IF EXISTS check_uploaded_files_ep_lang_length",
				"ALTER TABLE uploaded_files DROP COLUMN IF EXISTS ep_qual",
				"ALTER TABLE uploaded_files DROP COLUMN IF EXISTS ep_lang",
			},
		},
		PostDeployment: false,
	}

	allMigrations = append(allMigrations, m)
}
