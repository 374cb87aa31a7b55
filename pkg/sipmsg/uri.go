// Package sipmsg implements the SIP (RFC 3261) message model used by
// the transaction/dialog engine: URIs, addresses, headers, requests,
// responses, and their wire serialization/parsing.
package sipmsg

import (
	"fmt"
	"strconv"
	"strings"
)

// URI is a sip: or sips: URI as used in request lines, Contact, From
// and To headers.
type URI struct {
	Scheme string // "sip" or "sips"
	User   string
	Host   string
	Port   int // 0 means "not specified"
}

// ParseURI parses a bare SIP URI such as "sip:alice@example.com:5060".
func ParseURI(raw string) (URI, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "<>")

	colon := strings.IndexByte(raw, ':')
	if colon < 0 {
		return URI{}, fmt.Errorf("sipmsg: invalid URI %q: missing scheme", raw)
	}
	scheme := raw[:colon]
	if scheme != "sip" && scheme != "sips" {
		return URI{}, fmt.Errorf("sipmsg: unsupported URI scheme %q", scheme)
	}
	rest := raw[colon+1:]

	// Strip any header/parameter tail we do not model.
	if semi := strings.IndexByte(rest, ';'); semi >= 0 {
		rest = rest[:semi]
	}
	if q := strings.IndexByte(rest, '?'); q >= 0 {
		rest = rest[:q]
	}

	var user, hostport string
	if at := strings.IndexByte(rest, '@'); at >= 0 {
		user = rest[:at]
		hostport = rest[at+1:]
	} else {
		hostport = rest
	}

	host, port, err := splitHostPort(hostport)
	if err != nil {
		return URI{}, err
	}

	return URI{Scheme: scheme, User: user, Host: host, Port: port}, nil
}

func splitHostPort(hostport string) (string, int, error) {
	if strings.HasPrefix(hostport, "[") {
		end := strings.IndexByte(hostport, ']')
		if end < 0 {
			return "", 0, fmt.Errorf("sipmsg: unterminated IPv6 literal in %q", hostport)
		}
		host := hostport[:end+1]
		rem := hostport[end+1:]
		if strings.HasPrefix(rem, ":") {
			p, err := strconv.Atoi(rem[1:])
			if err != nil {
				return "", 0, fmt.Errorf("sipmsg: invalid port in %q: %w", hostport, err)
			}
			return host, p, nil
		}
		return host, 0, nil
	}

	if colon := strings.LastIndexByte(hostport, ':'); colon >= 0 {
		host := hostport[:colon]
		p, err := strconv.Atoi(hostport[colon+1:])
		if err != nil {
			return "", 0, fmt.Errorf("sipmsg: invalid port in %q: %w", hostport, err)
		}
		return host, p, nil
	}
	return hostport, 0, nil
}

// String renders the URI in canonical form.
func (u URI) String() string {
	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteByte(':')
	if u.User != "" {
		b.WriteString(u.User)
		b.WriteByte('@')
	}
	b.WriteString(u.Host)
	if u.Port != 0 {
		fmt.Fprintf(&b, ":%d", u.Port)
	}
	return b.String()
}
