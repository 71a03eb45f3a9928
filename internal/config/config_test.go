package config

import (
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/and161185/cruise-docsync/internal/errs"
)

func lookupFrom(m map[string]string) func(string) (string, bool) {
	return func(n string) (string, bool) { v, ok := m[n]; return v, ok }
}

func TestLoad_ReadsEnv(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://u:p@localhost/db")
	t.Setenv("DRIVE_SHARED_DRIVE_ID", "0AshDrv")
	t.Setenv("DRIVE_FOLDER_PASSPORTS", "fld-pass")
	t.Setenv("DOCSYNC_FOLDER_CACHE_TTL", "30s")

	c := Load(viper.New(), lookupFrom(map[string]string{"GDRIVE_CLIENT_EMAIL": "svc@x"}))

	require.Equal(t, "postgres://u:p@localhost/db", c.DatabaseDSN)
	require.Equal(t, "0AshDrv", c.SharedDriveID)
	require.Equal(t, 30*time.Second, c.FolderCacheTTL)
	require.Equal(t, ":8443", c.ListenAddr)

	id, err := c.Folder(Passports)
	require.NoError(t, err)
	require.Equal(t, "fld-pass", id)

	_, err = c.Folder(Videos)
	require.ErrorIs(t, err, errs.ErrMissingConfig)
	require.Contains(t, err.Error(), "DRIVE_FOLDER_VIDEOS")

	require.Len(t, c.Credentials.Principals, len(PrincipalEnv))
	require.Equal(t, "svc@x", c.Credentials.Principals[2].Value)
}

func TestValidate_ReportsAllMissing(t *testing.T) {
	for _, k := range []string{"DATABASE_DSN", "DATABASE_URL", "DOCSYNC_JWT_KEY"} {
		t.Setenv(k, "")
	}
	c := Load(viper.New(), lookupFrom(nil))

	err := c.Validate(NeedDatabase | NeedRemote | NeedServer)
	require.Error(t, err)

	var me *multierror.Error
	require.ErrorAs(t, err, &me)
	require.Len(t, me.Errors, 4)
	require.ErrorIs(t, err, errs.ErrMissingConfig)
}

func TestValidate_JSONDocumentSatisfiesRemote(t *testing.T) {
	c := Load(viper.New(), lookupFrom(map[string]string{"GOOGLE_CREDENTIALS": `{"client_email":"a","private_key":"b"}`}))
	require.NoError(t, c.Validate(NeedRemote))
}

func TestSheetsRoot_Precedence(t *testing.T) {
	c := &Config{}
	require.Equal(t, "root", c.SheetsRoot())
	c.SharedDriveID = "drive"
	require.Equal(t, "drive", c.SheetsRoot())
	c.SheetsRootID = "sheets"
	require.Equal(t, "sheets", c.SheetsRoot())
}
