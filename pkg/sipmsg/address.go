package sipmsg

import (
	"fmt"
	"strings"
)

// Address models a From/To/Contact header value: an optional display
// name, a URI, and header parameters (most importantly `tag`).
type Address struct {
	DisplayName string
	URI         URI
	Tag         string
}

// String renders the address in the form used on the wire:
// `"Display" <sip:user@host>;tag=xxx`.
func (a Address) String() string {
	var b strings.Builder
	if a.DisplayName != "" {
		fmt.Fprintf(&b, `"%s" `, a.DisplayName)
	}
	fmt.Fprintf(&b, "<%s>", a.URI.String())
	if a.Tag != "" {
		fmt.Fprintf(&b, ";tag=%s", a.Tag)
	}
	return b.String()
}

// ParseAddress parses a From/To header value, extracting the URI and
// the tag parameter if present. Display names and other parameters are
// tolerated but not otherwise modeled.
func ParseAddress(raw string) (Address, error) {
	raw = strings.TrimSpace(raw)

	var displayName string
	uriPart := raw
	if lt := strings.IndexByte(raw, '<'); lt >= 0 {
		displayName = strings.Trim(strings.TrimSpace(raw[:lt]), `"`)
		gt := strings.IndexByte(raw, '>')
		if gt < 0 {
			return Address{}, fmt.Errorf("sipmsg: unterminated URI in address %q", raw)
		}
		uriPart = raw[lt+1 : gt]
		raw = raw[gt+1:]
	} else {
		// No angle brackets: the URI runs up to the first ';' and the
		// rest of raw holds params directly.
		if semi := strings.IndexByte(raw, ';'); semi >= 0 {
			uriPart = raw[:semi]
			raw = raw[semi:]
		} else {
			raw = ""
		}
	}

	uri, err := ParseURI(uriPart)
	if err != nil {
		return Address{}, err
	}

	tag := extractParam(raw, "tag")

	return Address{DisplayName: displayName, URI: uri, Tag: tag}, nil
}

// extractParam finds `;name=value` in a parameter string (which may
// start with ';' or be empty) and returns value, or "" if absent.
func extractParam(params string, name string) string {
	for _, part := range strings.Split(params, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 && strings.EqualFold(strings.TrimSpace(kv[0]), name) {
			return strings.TrimSpace(kv[1])
		}
	}
	return ""
}
