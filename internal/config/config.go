// Package config builds the process configuration once at start-up from the
// environment (and an optional config file) and validates it eagerly.
package config

import (
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"

	"github.com/and161185/cruise-docsync/internal/credential"
	"github.com/and161185/cruise-docsync/internal/errs"
)

// Category identifies one document folder target.
type Category string

const (
	Images      Category = "images"
	Profiles    Category = "profiles"
	Reviews     Category = "reviews"
	Audio       Category = "audio"
	Documents   Category = "documents"
	Videos      Category = "videos"
	Contracts   Category = "contracts"
	Signatures  Category = "signatures"
	Passports   Category = "passports"
	CruiseImage Category = "cruise-images"
)

// FolderEnv maps every category to its folder-id variable. Absence of one
// variable disables only that category.
var FolderEnv = map[Category]string{
	Images:      "DRIVE_FOLDER_IMAGES",
	Profiles:    "DRIVE_FOLDER_PROFILES",
	Reviews:     "DRIVE_FOLDER_REVIEWS",
	Audio:       "DRIVE_FOLDER_AUDIO",
	Documents:   "DRIVE_FOLDER_DOCUMENTS",
	Videos:      "DRIVE_FOLDER_VIDEOS",
	Contracts:   "DRIVE_FOLDER_CONTRACTS",
	Signatures:  "DRIVE_FOLDER_SIGNATURES",
	Passports:   "DRIVE_FOLDER_PASSPORTS",
	CruiseImage: "DRIVE_FOLDER_CRUISE_IMAGES",
}

// Credential variable names, highest priority first.
var (
	KeyEnv       = []string{"GOOGLE_PRIVATE_KEY", "GOOGLE_SERVICE_ACCOUNT_PRIVATE_KEY", "GDRIVE_PRIVATE_KEY"}
	PrincipalEnv = []string{"GOOGLE_CLIENT_EMAIL", "GOOGLE_SERVICE_ACCOUNT_EMAIL", "GDRIVE_CLIENT_EMAIL"}
	DocumentEnv  = []string{"GOOGLE_SERVICE_ACCOUNT_JSON", "GOOGLE_CREDENTIALS"}
)

// DefaultScopes are requested for every client.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/drive",
	"https://www.googleapis.com/auth/spreadsheets",
}

// Config is the validated process configuration.
type Config struct {
	DatabaseDSN string

	Credentials credential.Inputs
	Scopes      []string

	SharedDriveID string
	SheetsRootID  string // parent of per-trip folders
	Folders       map[Category]string

	ListenAddr string
	JWTKey     string
	TLSCert    string
	TLSKey     string

	ReportDir      string
	UploadsDir     string // base directory for relative paths stored in the database
	FolderCacheTTL time.Duration
}

// Load reads settings from v (env bound here) and credential candidates from lookup.
// A nil lookup means os.LookupEnv.
func Load(v *viper.Viper, lookup credential.Lookup) *Config {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	bind(v)

	c := &Config{
		DatabaseDSN: v.GetString("database_dsn"),
		Credentials: credential.Inputs{
			Keys:       credential.Collect(lookup, KeyEnv...),
			Principals: credential.Collect(lookup, PrincipalEnv...),
			Documents:  credential.Collect(lookup, DocumentEnv...),
		},
		Scopes:         DefaultScopes,
		SharedDriveID:  v.GetString("shared_drive_id"),
		SheetsRootID:   v.GetString("sheets_root_id"),
		Folders:        make(map[Category]string, len(FolderEnv)),
		ListenAddr:     v.GetString("listen_addr"),
		JWTKey:         v.GetString("jwt_key"),
		TLSCert:        v.GetString("tls_cert"),
		TLSKey:         v.GetString("tls_key"),
		ReportDir:      v.GetString("report_dir"),
		UploadsDir:     v.GetString("uploads_dir"),
		FolderCacheTTL: v.GetDuration("folder_cache_ttl"),
	}
	for cat := range FolderEnv {
		if id := v.GetString(folderKey(cat)); id != "" {
			c.Folders[cat] = id
		}
	}
	return c
}

func bind(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8443")
	v.SetDefault("tls_cert", "cert.pem")
	v.SetDefault("tls_key", "key.pem")
	v.SetDefault("report_dir", ".")
	v.SetDefault("uploads_dir", ".")
	v.SetDefault("folder_cache_ttl", 10*time.Minute)

	_ = v.BindEnv("database_dsn", "DATABASE_DSN", "DATABASE_URL")
	_ = v.BindEnv("shared_drive_id", "DRIVE_SHARED_DRIVE_ID")
	_ = v.BindEnv("sheets_root_id", "DRIVE_FOLDER_SHEETS")
	_ = v.BindEnv("listen_addr", "DOCSYNC_ADDR")
	_ = v.BindEnv("jwt_key", "DOCSYNC_JWT_KEY")
	_ = v.BindEnv("tls_cert", "DOCSYNC_TLS_CERT")
	_ = v.BindEnv("tls_key", "DOCSYNC_TLS_KEY")
	_ = v.BindEnv("report_dir", "DOCSYNC_REPORT_DIR")
	_ = v.BindEnv("uploads_dir", "DOCSYNC_UPLOADS_DIR")
	_ = v.BindEnv("folder_cache_ttl", "DOCSYNC_FOLDER_CACHE_TTL")
	for cat, env := range FolderEnv {
		_ = v.BindEnv(folderKey(cat), env)
	}
}

func folderKey(c Category) string { return "folders." + string(c) }

// Need selects which settings Validate treats as required.
type Need uint8

const (
	NeedDatabase Need = 1 << iota
	NeedRemote
	NeedServer
)

// Validate reports every missing required setting at once.
func (c *Config) Validate(need Need) error {
	var result *multierror.Error
	if need&NeedDatabase != 0 && c.DatabaseDSN == "" {
		result = multierror.Append(result, &errs.ConfigurationError{Key: "DATABASE_DSN"})
	}
	if need&NeedRemote != 0 {
		if _, ok := credential.First(c.Credentials.Keys); !ok {
			if _, ok := credential.First(c.Credentials.Documents); !ok {
				result = multierror.Append(result, &errs.ConfigurationError{Key: "GOOGLE_PRIVATE_KEY", Msg: "no signing key in any known variable"})
			}
		}
		if _, ok := credential.First(c.Credentials.Principals); !ok {
			if _, ok := credential.First(c.Credentials.Documents); !ok {
				result = multierror.Append(result, &errs.ConfigurationError{Key: "GOOGLE_CLIENT_EMAIL", Msg: "no principal in any known variable"})
			}
		}
	}
	if need&NeedServer != 0 && c.JWTKey == "" {
		result = multierror.Append(result, &errs.ConfigurationError{Key: "DOCSYNC_JWT_KEY"})
	}
	return result.ErrorOrNil()
}

// SheetsRoot is the parent folder for per-trip folders: the explicit sheets
// root, else the shared drive, else the owner's root.
func (c *Config) SheetsRoot() string {
	switch {
	case c.SheetsRootID != "":
		return c.SheetsRootID
	case c.SharedDriveID != "":
		return c.SharedDriveID
	default:
		return "root"
	}
}

// Folder returns the configured folder id for a category.
func (c *Config) Folder(cat Category) (string, error) {
	if id, ok := c.Folders[cat]; ok && id != "" {
		return id, nil
	}
	return "", &errs.ConfigurationError{Key: FolderEnv[cat]}
}
