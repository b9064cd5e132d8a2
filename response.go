package itemapprove

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
)

// Response is the normalized payload every backend endpoint returns:
//
//	{"code": 200, "inside_code": 0, "msg": "ok", "data": ..., "success": true}
//
// Each envelope field is read on its own, so one field of an unexpected type
// leaves the others intact. Bodies that are not a JSON object are kept in
// Raw with the envelope fields left zero.
type Response struct {
	Code       int             `json:"code"`
	InsideCode int             `json:"inside_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data,omitempty"`
	Success    *bool           `json:"success,omitempty"`

	StatusCode int         `json:"-"`
	Header     http.Header `json:"-"`
	Raw        []byte      `json:"-"`

	// envelope is set when the body carried at least one envelope field.
	envelope bool
}

type rawEnvelope struct {
	Code       json.RawMessage `json:"code"`
	InsideCode json.RawMessage `json:"inside_code"`
	Msg        json.RawMessage `json:"msg"`
	Data       json.RawMessage `json:"data"`
	Success    json.RawMessage `json:"success"`
}

func parseResponse(statusCode int, header http.Header, body []byte) *Response {
	resp := &Response{StatusCode: statusCode, Header: header, Raw: body}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return resp
	}
	var raw rawEnvelope
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return resp
	}

	resp.Code = lenientInt(raw.Code)
	resp.InsideCode = lenientInt(raw.InsideCode)
	resp.Msg = lenientString(raw.Msg)
	resp.Success = lenientBool(raw.Success)
	if len(raw.Data) > 0 {
		resp.Data = raw.Data
	}
	resp.envelope = raw.Code != nil || raw.InsideCode != nil || raw.Msg != nil || raw.Data != nil || raw.Success != nil
	return resp
}

// lenientInt accepts a number or a numeric string; anything else is zero.
func lenientInt(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n
		}
	}
	return 0
}

// lenientString returns strings as is and any other JSON value verbatim.
func lenientString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// lenientBool accepts true/false, "true"/"false" and 1/0. Anything else
// counts as absent.
func lenientBool(raw json.RawMessage) *bool {
	if len(raw) == 0 {
		return nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return &b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return &b
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil && (f == 0 || f == 1) {
		b = f == 1
		return &b
	}
	return nil
}

// DefaultBusinessFailure treats success=false or a non-zero inside_code as a
// logical failure.
func DefaultBusinessFailure(resp *Response) bool {
	if resp == nil {
		return false
	}
	if resp.Success != nil && !*resp.Success {
		return true
	}
	return resp.InsideCode != 0
}

func businessCode(resp *Response) int {
	if resp.InsideCode != 0 {
		return resp.InsideCode
	}
	return resp.Code
}

// Decode unmarshals the data field into v. A body that is not an envelope
// decodes as a whole; an envelope without data is an error.
func (r *Response) Decode(v any) error {
	if r == nil {
		return errors.New("itemapprove: decode of nil response")
	}
	data := r.Data
	if len(data) == 0 && !r.envelope {
		data = r.Raw
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return errors.New("itemapprove: response has no data")
	}
	return json.Unmarshal(data, v)
}

// Decode unmarshals resp's data field into a T.
func Decode[T any](resp *Response) (T, error) {
	var v T
	err := resp.Decode(&v)
	return v, err
}
