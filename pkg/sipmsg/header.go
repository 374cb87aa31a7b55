package sipmsg

import "strings"

// Header is a single name/value pair as it appeared on the wire.
type Header struct {
	Name  string
	Value string
}

// HeaderList is an ordered collection of headers with case-insensitive
// lookup, used for the headers this package does not model as typed
// struct fields (WWW-Authenticate, Authorization, Content-Type, ...).
type HeaderList []Header

// Get returns the value of the first header matching name
// case-insensitively, and whether one was found.
func (h HeaderList) Get(name string) (string, bool) {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			return hdr.Value, true
		}
	}
	return "", false
}

// GetAll returns every header value matching name case-insensitively,
// in wire order.
func (h HeaderList) GetAll(name string) []string {
	var out []string
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			out = append(out, hdr.Value)
		}
	}
	return out
}

// Set replaces all occurrences of name with a single header carrying
// value, appending it if name was not present.
func (h HeaderList) Set(name, value string) HeaderList {
	out := make(HeaderList, 0, len(h)+1)
	replaced := false
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			if !replaced {
				out = append(out, Header{Name: name, Value: value})
				replaced = true
			}
			continue
		}
		out = append(out, hdr)
	}
	if !replaced {
		out = append(out, Header{Name: name, Value: value})
	}
	return out
}

// Add appends a header without removing existing ones of the same name.
func (h HeaderList) Add(name, value string) HeaderList {
	return append(h, Header{Name: name, Value: value})
}
