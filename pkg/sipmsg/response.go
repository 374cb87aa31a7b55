package sipmsg

import "fmt"

// Response is a parsed SIP response.
type Response struct {
	StatusCode   int
	ReasonPhrase string
	Via          Via
	From         Address
	To           Address
	CallID       string
	CSeq         CSeq
	MaxForwards  int
	Contact      *Address
	Headers      HeaderList // WWW-Authenticate, Proxy-Authenticate, Content-Type, ...
	Body         []byte
}

// IsProvisional reports whether this is a 1xx informational response,
// which the transaction layer must never treat as final.
func (r *Response) IsProvisional() bool {
	return r.StatusCode >= 100 && r.StatusCode < 200
}

// IsSuccess reports a 2xx final response.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsChallenge reports a 401 or 407 authentication challenge.
func (r *Response) IsChallenge() bool {
	return r.StatusCode == 401 || r.StatusCode == 407
}

// ParseResponse parses a complete raw SIP response message.
func ParseResponse(raw []byte) (*Response, error) {
	msg, err := parseMessage(raw)
	if err != nil {
		return nil, err
	}
	if !msg.isResponse {
		return nil, fmt.Errorf("sipmsg: expected response, got request")
	}

	resp := &Response{
		StatusCode:   msg.statusCode,
		ReasonPhrase: msg.reasonPhrase,
		Body:         msg.body,
	}

	if err := fillCommonFields(&resp.Via, &resp.From, &resp.To, &resp.CallID, &resp.CSeq, &resp.MaxForwards, &resp.Contact, msg.headers); err != nil {
		return nil, err
	}
	resp.Headers = stripCommonHeaders(msg.headers)

	return resp, nil
}
