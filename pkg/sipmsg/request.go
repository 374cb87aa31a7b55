package sipmsg

import (
	"fmt"
	"strconv"
	"strings"
)

// Request is an outbound or parsed SIP request.
type Request struct {
	Method      string
	RequestURI  URI
	Via         Via
	From        Address
	To          Address
	CallID      string
	CSeq        CSeq
	MaxForwards int
	Contact     *Address
	Headers     HeaderList // Authorization, Content-Type, Expires, User-Agent, ...
	Body        []byte
}

// Marshal renders the request as wire-format bytes, terminated CRLF
// per line, with Content-Length computed from Body.
func (r *Request) Marshal() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s SIP/2.0\r\n", r.Method, r.RequestURI.String())
	fmt.Fprintf(&b, "Via: %s\r\n", r.Via.String())
	fmt.Fprintf(&b, "From: %s\r\n", r.From.String())
	fmt.Fprintf(&b, "To: %s\r\n", r.To.String())
	fmt.Fprintf(&b, "Call-ID: %s\r\n", r.CallID)
	fmt.Fprintf(&b, "CSeq: %s\r\n", r.CSeq.String())
	fmt.Fprintf(&b, "Max-Forwards: %d\r\n", r.MaxForwards)
	if r.Contact != nil {
		fmt.Fprintf(&b, "Contact: %s\r\n", r.Contact.String())
	}
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, "Content-Length") {
			continue // recomputed below
		}
		fmt.Fprintf(&b, "%s: %s\r\n", h.Name, h.Value)
	}
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(r.Body))
	b.WriteString("\r\n")
	b.Write(r.Body)
	return []byte(b.String())
}

// ParseRequest parses a complete raw SIP request message.
func ParseRequest(raw []byte) (*Request, error) {
	msg, err := parseMessage(raw)
	if err != nil {
		return nil, err
	}
	if msg.isResponse {
		return nil, fmt.Errorf("sipmsg: expected request, got response")
	}

	req := &Request{
		Method:  msg.method,
		Headers: msg.headers,
		Body:    msg.body,
	}

	uri, err := ParseURI(msg.requestURI)
	if err != nil {
		return nil, fmt.Errorf("sipmsg: parsing Request-URI: %w", err)
	}
	req.RequestURI = uri

	if err := fillCommonFields(&req.Via, &req.From, &req.To, &req.CallID, &req.CSeq, &req.MaxForwards, &req.Contact, msg.headers); err != nil {
		return nil, err
	}
	req.Headers = stripCommonHeaders(msg.headers)

	return req, nil
}

func fillCommonFields(via *Via, from, to *Address, callID *string, cseq *CSeq, maxFwd *int, contact **Address, headers HeaderList) error {
	viaRaw, ok := headers.Get("Via")
	if !ok {
		return fmt.Errorf("sipmsg: missing Via header")
	}
	v, err := ParseVia(viaRaw)
	if err != nil {
		return err
	}
	*via = v

	fromRaw, ok := headers.Get("From")
	if !ok {
		return fmt.Errorf("sipmsg: missing From header")
	}
	f, err := ParseAddress(fromRaw)
	if err != nil {
		return fmt.Errorf("sipmsg: parsing From: %w", err)
	}
	*from = f

	toRaw, ok := headers.Get("To")
	if !ok {
		return fmt.Errorf("sipmsg: missing To header")
	}
	t, err := ParseAddress(toRaw)
	if err != nil {
		return fmt.Errorf("sipmsg: parsing To: %w", err)
	}
	*to = t

	cid, ok := headers.Get("Call-ID")
	if !ok {
		return fmt.Errorf("sipmsg: missing Call-ID header")
	}
	*callID = cid

	cseqRaw, ok := headers.Get("CSeq")
	if !ok {
		return fmt.Errorf("sipmsg: missing CSeq header")
	}
	cs, err := ParseCSeq(cseqRaw)
	if err != nil {
		return err
	}
	*cseq = cs

	if mf, ok := headers.Get("Max-Forwards"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(mf))
		if err == nil {
			*maxFwd = n
		}
	}

	if c, ok := headers.Get("Contact"); ok {
		addr, err := ParseAddress(c)
		if err == nil {
			*contact = &addr
		}
	}

	return nil
}

func stripCommonHeaders(headers HeaderList) HeaderList {
	drop := map[string]bool{
		"via": true, "from": true, "to": true, "call-id": true,
		"cseq": true, "max-forwards": true, "contact": true,
		"content-length": true,
	}
	out := make(HeaderList, 0, len(headers))
	for _, h := range headers {
		if drop[strings.ToLower(h.Name)] {
			continue
		}
		out = append(out, h)
	}
	return out
}
