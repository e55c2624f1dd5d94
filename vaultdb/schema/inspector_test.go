package schema

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newInspectorMock(t *testing.T) (*Inspector, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewInspector(db), mock
}

func expectInspection(mock sqlmock.Sqlmock, tables, columns, pks, indexes, fks *sqlmock.Rows) {
	mock.ExpectQuery("information_schema.tables").WillReturnRows(tables)
	mock.ExpectQuery("information_schema.columns").WillReturnRows(columns)
	mock.ExpectQuery("PRIMARY KEY").WillReturnRows(pks)
	mock.ExpectQuery("pg_indexes").WillReturnRows(indexes)
	mock.ExpectQuery("FOREIGN KEY").WillReturnRows(fks)
}

func TestInspector_Inspect_EmptyDatabase(t *testing.T) {
	i, mock := newInspectorMock(t)

	expectInspection(mock,
		sqlmock.NewRows([]string{"table_name"}),
		sqlmock.NewRows([]string{"table_name", "column_name", "data_type", "is_nullable", "column_default"}),
		sqlmock.NewRows([]string{"table_name", "column_name"}),
		sqlmock.NewRows([]string{"tablename", "indexname", "indexdef"}),
		sqlmock.NewRows([]string{"table_name", "constraint_name", "column_name", "ref_table", "ref_column"}),
	)

	s, err := i.Inspect(context.Background())
	require.NoError(t, err)
	require.Equal(t, "public", s.Name)
	require.Empty(t, s.Tables)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInspector_Inspect(t *testing.T) {
	i, mock := newInspectorMock(t)

	tables := sqlmock.NewRows([]string{"table_name"}).
		AddRow("uploaded_files")

	columns := sqlmock.NewRows([]string{"table_name", "column_name", "data_type", "is_nullable", "column_default"}).
		AddRow("uploaded_files", "id", "bigint", "NO", "").
		AddRow("uploaded_files", "anime_title", "text", "NO", "").
		AddRow("uploaded_files", "filesize", "bigint", "YES", "").
		AddRow("uploaded_files", "created_at", "timestamp with time zone", "NO", "now()")

	pks := sqlmock.NewRows([]string{"table_name", "column_name"}).
		AddRow("uploaded_files", "id")

	indexes := sqlmock.NewRows([]string{"tablename", "indexname", "indexdef"}).
		AddRow("uploaded_files", "index_uploaded_files_on_anime_title",
			"CREATE INDEX index_uploaded_files_on_anime_title ON public.uploaded_files USING btree (anime_title)").
		AddRow("uploaded_files", "index_uploaded_files_on_anime_title_and_episode_and_created_at",
			"CREATE INDEX index_uploaded_files_on_anime_title_and_episode_and_created_at ON public.uploaded_files USING btree (anime_title, episode, created_at DESC)")

	fks := sqlmock.NewRows([]string{"table_name", "constraint_name", "column_name", "ref_table", "ref_column"})

	expectInspection(mock, tables, columns, pks, indexes, fks)

	s, err := i.Inspect(context.Background())
	require.NoError(t, err)
	require.Len(t, s.Tables, 1)

	table := s.Table("uploaded_files")
	require.NotNil(t, table)
	require.Len(t, table.Columns, 4)

	require.True(t, table.Column("id").PrimaryKey)
	require.False(t, table.Column("id").Nullable)
	require.True(t, table.Column("filesize").Nullable)
	require.Equal(t, "now()", table.Column("created_at").Default)

	require.Len(t, table.Indexes, 2)
	require.Equal(t, []string{"anime_title"}, table.Indexes[0].Columns)
	require.Equal(t, []string{"anime_title", "episode", "created_at"}, table.Indexes[1].Columns)
	require.False(t, table.Indexes[0].Unique)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInspector_Inspect_ForeignKeys(t *testing.T) {
	i, mock := newInspectorMock(t)

	tables := sqlmock.NewRows([]string{"table_name"}).
		AddRow("albums").
		AddRow("artists")

	columns := sqlmock.NewRows([]string{"table_name", "column_name", "data_type", "is_nullable", "column_default"}).
		AddRow("albums", "id", "bigint", "NO", "").
		AddRow("albums", "artist_id", "bigint", "NO", "").
		AddRow("artists", "id", "bigint", "NO", "")

	pks := sqlmock.NewRows([]string{"table_name", "column_name"}).
		AddRow("albums", "id").
		AddRow("artists", "id")

	indexes := sqlmock.NewRows([]string{"tablename", "indexname", "indexdef"})

	fks := sqlmock.NewRows([]string{"table_name", "constraint_name", "column_name", "ref_table", "ref_column"}).
		AddRow("albums", "fk_albums_artist_id_artists", "artist_id", "artists", "id")

	expectInspection(mock, tables, columns, pks, indexes, fks)

	s, err := i.Inspect(context.Background())
	require.NoError(t, err)

	table := s.Table("albums")
	require.NotNil(t, table)
	require.Len(t, table.ForeignKeys, 1)
	require.Equal(t, &ForeignKey{
		Name:       "fk_albums_artist_id_artists",
		Columns:    []string{"artist_id"},
		RefTable:   "artists",
		RefColumns: []string{"id"},
	}, table.ForeignKeys[0])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestParseIndexDef(t *testing.T) {
	tt := []struct {
		name string
		def  string
		want *Index
	}{
		{
			name: "simple",
			def:  "CREATE INDEX idx ON public.t USING btree (a)",
			want: &Index{Name: "idx", Columns: []string{"a"}},
		},
		{
			name: "composite with ordering",
			def:  "CREATE INDEX idx ON public.t USING btree (a, b DESC, c NULLS FIRST)",
			want: &Index{Name: "idx", Columns: []string{"a", "b", "c"}},
		},
		{
			name: "unique",
			def:  "CREATE UNIQUE INDEX idx ON public.t USING btree (a)",
			want: &Index{Name: "idx", Columns: []string{"a"}, Unique: true},
		},
	}

	for _, test := range tt {
		t.Run(test.name, func(t *testing.T) {
			got, err := parseIndexDef("idx", test.def)
			require.NoError(t, err)
			require.Equal(t, test.want, got)
		})
	}
}

func TestParseIndexDef_Unparsable(t *testing.T) {
	_, err := parseIndexDef("idx", "CREATE INDEX idx ON public.t")
	require.Error(t, err)
}

func TestParseIndexDef_ExpressionIndex(t *testing.T) {
	_, err := parseIndexDef("idx", "CREATE INDEX idx ON public.t USING btree (lower(name))")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unparsable")

	_, err = parseIndexDef("idx", "CREATE INDEX idx ON public.t USING btree (a, (b + c))")
	require.Error(t, err)
}
