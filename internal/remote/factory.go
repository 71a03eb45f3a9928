package remote

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/and161185/cruise-docsync/internal/credential"
)

// Client bundles authenticated Drive and Sheets handles built from one credential.
type Client struct {
	Drive  *GoogleDrive
	Sheets *GoogleSheets

	tokens oauth2.TokenSource
	diag   keyDiag
}

// Factory builds Clients for a fixed scope list and drive context.
type Factory struct {
	Scopes        []string
	SharedDriveID string
	// TokenURL defaults to the Google OAuth2 token endpoint.
	TokenURL string

	log  *zap.Logger
	opts []option.ClientOption
}

// NewFactory constructs a Factory. Extra client options are appended to every service.
func NewFactory(scopes []string, sharedDriveID string, log *zap.Logger, opts ...option.ClientOption) *Factory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Factory{
		Scopes:        scopes,
		SharedDriveID: sharedDriveID,
		TokenURL:      google.JWTTokenURL,
		log:           log,
		opts:          opts,
	}
}

// New parses the key and builds the API handles. No network call is made;
// use Client.Verify to check the key against the backend.
func (f *Factory) New(ctx context.Context, cred credential.Credential) (*Client, error) {
	d := diagFor(cred.SigningKey)
	if err := parsePrivateKey(cred.SigningKey); err != nil {
		return nil, d.auth("parse", "load key from "+cred.KeySource, err)
	}

	conf := &jwt.Config{
		Email:      cred.PrincipalID,
		PrivateKey: []byte(cred.SigningKey),
		Scopes:     f.Scopes,
		TokenURL:   f.TokenURL,
	}
	opts := append([]option.ClientOption{option.WithHTTPClient(conf.Client(ctx))}, f.opts...)

	ds, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, d.auth("parse", "drive client", err)
	}
	ss, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, d.auth("parse", "sheets client", err)
	}

	f.log.Debug("remote client built",
		zap.String("principal_source", cred.PrincipalSource),
		zap.String("key_source", cred.KeySource),
		zap.Int("key_len", len(cred.SigningKey)),
		zap.Bool("shared_drive", f.SharedDriveID != ""),
	)

	return &Client{
		Drive:  &GoogleDrive{svc: ds, driveID: f.SharedDriveID, diag: d},
		Sheets: &GoogleSheets{svc: ss, diag: d},
		tokens: conf.TokenSource(ctx),
		diag:   d,
	}, nil
}

// Verify fetches an access token so a rejected key surfaces before any work starts.
func (c *Client) Verify(ctx context.Context) error {
	if _, err := c.tokens.Token(); err != nil {
		return c.diag.auth("token", "fetch access token", err)
	}
	return nil
}

// parsePrivateKey accepts PKCS#8 and PKCS#1 RSA keys, as the token signer does.
func parsePrivateKey(key string) error {
	block, _ := pem.Decode([]byte(key))
	if block == nil {
		return errors.New("no PEM block found")
	}
	if _, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		return nil
	}
	if _, err := x509.ParsePKCS1PrivateKey(block.Bytes); err != nil {
		return errors.New("key is neither PKCS#8 nor PKCS#1: " + err.Error())
	}
	return nil
}
