package client

import "github.com/ilNikk/Apple-Music-Discord-Presence/internal/codec"

const (
	cmdDispatch    = "DISPATCH"
	cmdSetActivity = "SET_ACTIVITY"
	evtReady       = "READY"
	evtError       = "ERROR"
)

// Response is the part of a reply the link acts on. Missing or mistyped
// fields come back as zero values.
type Response struct {
	Cmd     string
	Evt     string
	Nonce   string
	Code    int
	Message string
}

func parseResponse(doc map[string]any) Response {
	r := Response{
		Cmd:   codec.String(doc, "cmd"),
		Evt:   codec.String(doc, "evt"),
		Nonce: codec.String(doc, "nonce"),
	}
	if data := codec.Object(doc, "data"); data != nil {
		r.Code = codec.Int(data, "code")
		r.Message = codec.String(data, "message")
	}
	return r
}

func (r Response) isReady() bool {
	return r.Cmd == cmdDispatch && r.Evt == evtReady
}

func (r Response) err() error {
	if r.Evt != evtError {
		return nil
	}
	return &ResponseError{Code: r.Code, Message: r.Message}
}
