// Package credential resolves a service-account signing key and principal from
// prioritized configuration sources and normalizes the key to canonical PEM.
package credential

import (
	"errors"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/and161185/cruise-docsync/internal/errs"
)

// Source is one configuration candidate, e.g. an env variable and its value.
type Source struct {
	Name  string
	Value string
}

// Inputs lists candidates per field in priority order. Documents are
// service-account JSON blobs consulted when no direct source is set.
type Inputs struct {
	Keys       []Source
	Principals []Source
	Documents  []Source
}

// Credential is a resolved key pair. The *Source fields keep the winning
// variable names for diagnostics.
type Credential struct {
	PrincipalID     string
	SigningKey      string
	PrincipalSource string
	KeySource       string
}

var (
	beginLine = regexp.MustCompile(`^-----BEGIN [A-Z0-9 ]+-----$`)
	endLine   = regexp.MustCompile(`^-----END [A-Z0-9 ]+-----$`)
)

// unescapes are tried in order; each step is applied on top of the previous ones.
var unescapes = []string{
	`\\n`,
	`\\r\\n`,
	`\\r`,
	`\n`,
	`\r\n`,
	`\r`,
}

// Lookup reads one named value; os.LookupEnv fits.
type Lookup func(name string) (string, bool)

// Collect turns a list of variable names into sources using lookup.
// Unset variables are kept with an empty value so the order stays visible.
func Collect(lookup Lookup, names ...string) []Source {
	out := make([]Source, 0, len(names))
	for _, n := range names {
		v, _ := lookup(n)
		out = append(out, Source{Name: n, Value: v})
	}
	return out
}

// First returns the first source with a non-blank value.
func First(srcs []Source) (Source, bool) {
	for _, s := range srcs {
		if strings.TrimSpace(s.Value) != "" {
			return s, true
		}
	}
	return Source{}, false
}

// Resolve picks the winning key and principal and normalizes the key.
func Resolve(in Inputs) (Credential, error) {
	var cred Credential

	doc, hasDoc := First(in.Documents)

	if src, ok := First(in.Keys); ok {
		cred.KeySource = src.Name
		cred.SigningKey = src.Value
	} else if hasDoc {
		if v := gjson.Get(doc.Value, "private_key"); v.Exists() && v.String() != "" {
			cred.KeySource = doc.Name + ".private_key"
			cred.SigningKey = v.String()
		}
	}
	if cred.KeySource == "" {
		return Credential{}, &errs.ConfigurationError{Key: names(in.Keys, in.Documents), Msg: "no signing key configured"}
	}

	if src, ok := First(in.Principals); ok {
		cred.PrincipalSource = src.Name
		cred.PrincipalID = strings.Trim(strings.TrimSpace(src.Value), `"'`)
	} else if hasDoc {
		if v := gjson.Get(doc.Value, "client_email"); v.Exists() && v.String() != "" {
			cred.PrincipalSource = doc.Name + ".client_email"
			cred.PrincipalID = v.String()
		}
	}
	if cred.PrincipalID == "" {
		return Credential{}, &errs.ConfigurationError{Key: names(in.Principals, in.Documents), Msg: "no principal configured"}
	}

	key, err := NormalizeKey(cred.SigningKey)
	if err != nil {
		var fe *errs.CredentialFormatError
		if errors.As(err, &fe) {
			fe.Source = cred.KeySource
		}
		return Credential{}, err
	}
	cred.SigningKey = key
	return cred, nil
}

// NormalizeKey turns a key in any supported escaping into canonical PEM:
// LF line endings, no blank lines, trailing newline.
func NormalizeKey(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, `"'`)
	s = strings.TrimSpace(s)

	if !strings.Contains(s, "\n") {
		for _, esc := range unescapes {
			if hasMarkers(s) {
				break
			}
			s = strings.ReplaceAll(s, esc, "\n")
		}
	}

	begin, end := markers(s)
	if !begin || !end {
		return "", &errs.CredentialFormatError{Missing: missing(begin, end), Preview: errs.Preview(raw)}
	}
	return canonical(s), nil
}

func hasMarkers(s string) bool {
	b, e := markers(s)
	return b && e
}

func markers(s string) (begin, end bool) {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case beginLine.MatchString(line):
			begin = true
		case endLine.MatchString(line):
			end = true
		}
	}
	return begin, end
}

func missing(begin, end bool) string {
	switch {
	case !begin && !end:
		return "BEGIN and END"
	case !begin:
		return "BEGIN"
	default:
		return "END"
	}
}

func canonical(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n") + "\n"
}

func names(lists ...[]Source) string {
	var ns []string
	for _, l := range lists {
		for _, s := range l {
			ns = append(ns, s.Name)
		}
	}
	return strings.Join(ns, "|")
}
