// Package digestauth computes RFC 2617 HTTP Digest Authentication
// responses for SIP REGISTER/INVITE challenges, with and without
// qop=auth.
package digestauth

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// Challenge is the parsed content of a WWW-Authenticate or
// Proxy-Authenticate header.
type Challenge struct {
	Realm     string
	Nonce     string
	Algorithm string // defaults to MD5 when empty
	QOP       string // "auth" or empty
	Opaque    string
}

// ParseChallenge parses the parameter list of a Digest challenge
// header value, e.g. `Digest realm="x", nonce="abc", qop="auth"`.
func ParseChallenge(header string) (Challenge, error) {
	header = strings.TrimSpace(header)
	const prefix = "Digest "
	if !strings.HasPrefix(header, prefix) {
		return Challenge{}, fmt.Errorf("digestauth: not a Digest challenge: %q", header)
	}
	params := parseParams(header[len(prefix):])

	c := Challenge{
		Realm:     params["realm"],
		Nonce:     params["nonce"],
		Algorithm: params["algorithm"],
		QOP:       firstQOP(params["qop"]),
		Opaque:    params["opaque"],
	}
	if c.Algorithm == "" {
		c.Algorithm = "MD5"
	}
	if c.Realm == "" || c.Nonce == "" {
		return Challenge{}, fmt.Errorf("digestauth: challenge missing realm or nonce")
	}
	return c, nil
}

// firstQOP picks "auth" out of a possibly comma/quote-separated list
// such as `"auth,auth-int"`, preferring auth when both are offered.
func firstQOP(raw string) string {
	raw = strings.Trim(raw, `"`)
	if raw == "" {
		return ""
	}
	for _, opt := range strings.Split(raw, ",") {
		opt = strings.TrimSpace(opt)
		if opt == "auth" {
			return "auth"
		}
	}
	parts := strings.Split(raw, ",")
	return strings.TrimSpace(parts[0])
}

func parseParams(s string) map[string]string {
	out := make(map[string]string)
	for _, field := range splitParams(s) {
		field = strings.TrimSpace(field)
		eq := strings.IndexByte(field, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(field[:eq])
		val := strings.TrimSpace(field[eq+1:])
		val = strings.Trim(val, `"`)
		out[strings.ToLower(key)] = val
	}
	return out
}

// splitParams splits on commas that are not inside a quoted string.
func splitParams(s string) []string {
	var parts []string
	inQuotes := false
	start := 0
	for i, r := range s {
		switch r {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// Credentials is a computed response ready to render into an
// Authorization/Proxy-Authorization header.
type Credentials struct {
	Username  string
	Realm     string
	Nonce     string
	URI       string
	Response  string
	Algorithm string
	QOP       string
	CNonce    string
	NC        string
	Opaque    string
}

// NC00000001 is the nonce-count this implementation always uses: the
// Dialog Engine only ever performs a single authenticated retry per
// challenge (see SPEC_FULL.md §9), so a fresh nonce never sees more
// than one use and per-nonce count tracking would be unreachable.
const NC00000001 = "00000001"

// Compute derives the Authorization credentials for method/uri against
// chal, using username/password. method and uri must match the request
// line exactly (e.g. "REGISTER", "sip:pbx.example.com").
func Compute(chal Challenge, method, uri, username, password string) (Credentials, error) {
	ha1 := md5hex(username + ":" + chal.Realm + ":" + password)
	ha2 := md5hex(method + ":" + uri)

	cred := Credentials{
		Username:  username,
		Realm:     chal.Realm,
		Nonce:     chal.Nonce,
		URI:       uri,
		Algorithm: chal.Algorithm,
		Opaque:    chal.Opaque,
	}

	if chal.QOP == "auth" {
		cnonce, err := randomHex(16)
		if err != nil {
			return Credentials{}, fmt.Errorf("digestauth: generating cnonce: %w", err)
		}
		cred.QOP = "auth"
		cred.CNonce = cnonce
		cred.NC = NC00000001
		cred.Response = md5hex(strings.Join([]string{ha1, chal.Nonce, cred.NC, cred.CNonce, "auth", ha2}, ":"))
	} else {
		cred.Response = md5hex(strings.Join([]string{ha1, chal.Nonce, ha2}, ":"))
	}

	return cred, nil
}

// String renders the Authorization header value (without the leading
// header name) with parameters in a conventional order.
func (c Credentials) String() string {
	var b strings.Builder
	b.WriteString("Digest ")
	fmt.Fprintf(&b, `username="%s", realm="%s", nonce="%s", uri="%s"`, c.Username, c.Realm, c.Nonce, c.URI)
	if c.QOP != "" {
		fmt.Fprintf(&b, `, qop=%s, nc=%s, cnonce="%s"`, c.QOP, c.NC, c.CNonce)
	}
	fmt.Fprintf(&b, `, response="%s"`, c.Response)
	if c.Algorithm != "" {
		fmt.Fprintf(&b, `, algorithm=%s`, strings.ToUpper(c.Algorithm))
	}
	if c.Opaque != "" {
		fmt.Fprintf(&b, `, opaque="%s"`, c.Opaque)
	}
	return b.String()
}

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
