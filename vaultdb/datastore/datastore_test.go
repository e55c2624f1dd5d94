package datastore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDSN_String(t *testing.T) {
	tt := []struct {
		name string
		dsn  DSN
		want string
	}{
		{
			name: "empty",
			dsn:  DSN{},
			want: "",
		},
		{
			name: "full",
			dsn: DSN{
				Host:           "127.0.0.1",
				Port:           5432,
				User:           "vault",
				Password:       "secret",
				DBName:         "vault_metadata",
				SSLMode:        "require",
				ConnectTimeout: 5 * time.Second,
			},
			want: "host=127.0.0.1 port=5432 user=vault password=secret dbname=vault_metadata sslmode=require connect_timeout=5",
		},
		{
			name: "password with space",
			dsn: DSN{
				Host:     "localhost",
				User:     "vault",
				Password: "top secret",
				DBName:   "vault_metadata",
			},
			want: `host=localhost user=vault password='top secret' dbname=vault_metadata`,
		},
		{
			name: "password with quote",
			dsn: DSN{
				Host:     "localhost",
				User:     "vault",
				Password: `o'clock`,
				DBName:   "vault_metadata",
			},
			want: `host=localhost user=vault password=o\'clock dbname=vault_metadata`,
		},
	}

	for _, test := range tt {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.want, test.dsn.String())
		})
	}
}
