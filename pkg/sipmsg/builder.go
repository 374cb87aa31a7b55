package sipmsg

import "fmt"

// RequestParams carries the dialog-level fields the transaction engine
// already knows when it asks this package to build a new request; it
// does not decide CSeq numbers, branches, or tags — those are policy
// owned by the dialog engine (see pkg/dialogstate and pkg/useragent)
// so this package stays a pure message-formatting layer.
type RequestParams struct {
	Method      string
	RequestURI  URI
	LocalHost   string
	LocalPort   int
	Branch      string
	From        Address
	To          Address
	CallID      string
	CSeq        CSeq
	MaxForwards int
	Contact     *Address
	ExtraHeaders HeaderList
	Body        []byte
	ContentType string
}

// NewRequest builds a Request from p, attaching Content-Type only when
// a body is present.
func NewRequest(p RequestParams) *Request {
	maxFwd := p.MaxForwards
	if maxFwd == 0 {
		maxFwd = 70
	}

	headers := append(HeaderList{}, p.ExtraHeaders...)
	if len(p.Body) > 0 && p.ContentType != "" {
		headers = headers.Set("Content-Type", p.ContentType)
	}

	return &Request{
		Method:     p.Method,
		RequestURI: p.RequestURI,
		Via: Via{
			Host:   p.LocalHost,
			Port:   p.LocalPort,
			Branch: p.Branch,
		},
		From:        p.From,
		To:          p.To,
		CallID:      p.CallID,
		CSeq:        p.CSeq,
		MaxForwards: maxFwd,
		Contact:     p.Contact,
		Headers:     headers,
		Body:        p.Body,
	}
}

// ContactURI builds the Contact URI this user agent advertises, given
// its locally discovered address.
func ContactURI(user, host string, port int) URI {
	return URI{Scheme: "sip", User: user, Host: host, Port: port}
}

// RequestURIFromNumber builds a request-URI for dialing `number` at
// the registrar's domain, e.g. "sip:18005551234@pbx.example.com".
func RequestURIFromNumber(number, domain string) URI {
	return URI{Scheme: "sip", User: number, Host: domain}
}

// summaryString is a convenience for logging a request in a single line.
func (r *Request) summaryString() string {
	return fmt.Sprintf("%s %s (Call-ID: %s, CSeq: %s)", r.Method, r.RequestURI, r.CallID, r.CSeq)
}
