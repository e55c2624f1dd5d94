package configuration

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDatabase_Host(t *testing.T) {
	yml := `
version: 0.1
database:
  host: %s
`
	tt := []parameterTest{
		{
			name:  "sample",
			value: "db.example.com",
			want:  "db.example.com",
		},
		{
			name: "default",
			want: defaultDatabaseHost,
		},
	}

	validator := func(t *testing.T, want interface{}, got *Configuration) {
		require.Equal(t, want, got.Database.Host)
	}

	testParameter(t, yml, "VAULTDB_DATABASE_HOST", tt, validator)
}

func TestParseDatabase_Port(t *testing.T) {
	yml := `
version: 0.1
database:
  port: %s
`
	tt := []parameterTest{
		{
			name:  "sample",
			value: "5433",
			want:  5433,
		},
		{
			name: "default",
			want: defaultDatabasePort,
		},
	}

	validator := func(t *testing.T, want interface{}, got *Configuration) {
		require.Equal(t, want, got.Database.Port)
	}

	testParameter(t, yml, "VAULTDB_DATABASE_PORT", tt, validator)
}

func TestParseDatabase_User(t *testing.T) {
	yml := `
version: 0.1
database:
  user: %s
`
	tt := []parameterTest{
		{
			name:  "sample",
			value: "vault",
			want:  "vault",
		},
		{
			name: "default",
			want: "",
		},
	}

	validator := func(t *testing.T, want interface{}, got *Configuration) {
		require.Equal(t, want, got.Database.User)
	}

	testParameter(t, yml, "VAULTDB_DATABASE_USER", tt, validator)
}

func TestParseDatabase_Password(t *testing.T) {
	yml := `
version: 0.1
database:
  password: %s
`
	tt := []parameterTest{
		{
			name:  "sample",
			value: "secret",
			want:  "secret",
		},
		{
			name: "default",
			want: "",
		},
	}

	validator := func(t *testing.T, want interface{}, got *Configuration) {
		require.Equal(t, want, got.Database.Password)
	}

	testParameter(t, yml, "VAULTDB_DATABASE_PASSWORD", tt, validator)
}

func TestParseDatabase_DBName(t *testing.T) {
	yml := `
version: 0.1
database:
  dbname: %s
`
	tt := []parameterTest{
		{
			name:  "sample",
			value: "vault_metadata",
			want:  "vault_metadata",
		},
		{
			name: "default",
			want: "",
		},
	}

	validator := func(t *testing.T, want interface{}, got *Configuration) {
		require.Equal(t, want, got.Database.DBName)
	}

	testParameter(t, yml, "VAULTDB_DATABASE_DBNAME", tt, validator)
}

func TestParseDatabase_SSLMode(t *testing.T) {
	yml := `
version: 0.1
database:
  sslmode: %s
`
	tt := []parameterTest{
		{
			name:  "sample",
			value: "require",
			want:  "require",
		},
		{
			name: "default",
			want: defaultDatabaseSSLMode,
		},
	}

	validator := func(t *testing.T, want interface{}, got *Configuration) {
		require.Equal(t, want, got.Database.SSLMode)
	}

	testParameter(t, yml, "VAULTDB_DATABASE_SSLMODE", tt, validator)
}

func TestParseDatabase_ConnectTimeout(t *testing.T) {
	yml := `
version: 0.1
database:
  connecttimeout: %s
`
	tt := []parameterTest{
		{
			name:  "sample",
			value: "5s",
			want:  5 * time.Second,
		},
		{
			name: "default",
			want: time.Duration(0),
		},
	}

	validator := func(t *testing.T, want interface{}, got *Configuration) {
		require.Equal(t, want, got.Database.ConnectTimeout)
	}

	testParameter(t, yml, "VAULTDB_DATABASE_CONNECTTIMEOUT", tt, validator)
}

func TestParseDatabase_Pool_MaxIdle(t *testing.T) {
	yml := `
version: 0.1
database:
  pool:
    maxidle: %s
`
	tt := []parameterTest{
		{
			name:  "sample",
			value: "10",
			want:  10,
		},
		{
			name: "default",
			want: 0,
		},
	}

	validator := func(t *testing.T, want interface{}, got *Configuration) {
		require.Equal(t, want, got.Database.Pool.MaxIdle)
	}

	testParameter(t, yml, "VAULTDB_DATABASE_POOL_MAXIDLE", tt, validator)
}

func TestParseDatabase_Pool_MaxOpen(t *testing.T) {
	yml := `
version: 0.1
database:
  pool:
    maxopen: %s
`
	tt := []parameterTest{
		{
			name:  "sample",
			value: "50",
			want:  50,
		},
		{
			name: "default",
			want: 0,
		},
	}

	validator := func(t *testing.T, want interface{}, got *Configuration) {
		require.Equal(t, want, got.Database.Pool.MaxOpen)
	}

	testParameter(t, yml, "VAULTDB_DATABASE_POOL_MAXOPEN", tt, validator)
}

func TestParseDatabase_Pool_MaxLifetime(t *testing.T) {
	yml := `
version: 0.1
database:
  pool:
    maxlifetime: %s
`
	tt := []parameterTest{
		{
			name:  "sample",
			value: "5m",
			want:  5 * time.Minute,
		},
		{
			name: "default",
			want: time.Duration(0),
		},
	}

	validator := func(t *testing.T, want interface{}, got *Configuration) {
		require.Equal(t, want, got.Database.Pool.MaxLifetime)
	}

	testParameter(t, yml, "VAULTDB_DATABASE_POOL_MAXLIFETIME", tt, validator)
}

func TestParseDatabase_InvalidEnvOverride(t *testing.T) {
	t.Setenv("VAULTDB_DATABASE_PORT", "not-a-number")

	_, err := Parse(strings.NewReader("version: 0.1"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "VAULTDB_DATABASE_PORT")
}
