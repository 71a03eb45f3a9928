package remote

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/and161185/cruise-docsync/internal/errs"
)

// keyDiag carries non-secret facts about the signing key for error messages.
type keyDiag struct {
	length int
	hint   string
}

func diagFor(key string) keyDiag {
	return keyDiag{length: len(key), hint: errs.Preview(key)}
}

func (d keyDiag) auth(stage, op string, err error) error {
	return &errs.AuthenticationError{Stage: stage, Op: op, KeyLen: d.length, KeyHint: d.hint, Err: err}
}

// authMarkers are fragments of token-endpoint and API responses that mean the
// signed request itself was refused.
var authMarkers = []string{
	"invalid_grant",
	"invalid_client",
	"unauthorized_client",
	"invalid jwt signature",
	"cannot fetch token",
}

// authReasons are 403 reasons that mean the credential, not the resource, was refused.
var authReasons = map[string]bool{
	"authError":               true,
	"accessNotConfigured":     true,
	"insufficientPermissions": true,
	"unregisteredCallers":     true,
}

// classify maps a remote failure onto the error taxonomy.
func (d keyDiag) classify(op, kind, id string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound:
			return &errs.NotFoundError{Kind: kind, ID: id, Err: err}
		case http.StatusUnauthorized:
			return d.auth("backend", op, err)
		case http.StatusForbidden:
			for _, item := range gerr.Errors {
				if authReasons[item.Reason] {
					return d.auth("backend", op, err)
				}
			}
		}
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return d.auth("backend", op, err)
	}
	msg := strings.ToLower(err.Error())
	for _, m := range authMarkers {
		if strings.Contains(msg, m) {
			return d.auth("backend", op, err)
		}
	}
	return &errs.UploadError{Op: op, Name: id, Err: err}
}
