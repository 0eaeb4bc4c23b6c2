// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Handlers accept both JSON bodies (API clients) and form-encoded bodies
// (HTMX and plain HTML forms) through the same parser.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"saldo/internal/core"
)

// maxBodyBytes bounds request bodies read by RequestBodyParser.
const maxBodyBytes = 64 << 10

// maxHistoryDays caps the days query parameter.
const maxHistoryDays = 3660

var errBodyTooLarge = errors.New("request body too large")

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads at most maxBodyBytes of the body once and keeps
// it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = errBodyTooLarge
	}
	return p
}

// Parse decodes the body as JSON when the content type says so or the body
// looks like an object, and as form data otherwise. JSON numbers keep their
// exact text.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.declaresJSON() || trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]interface{})
		if err := dec.Decode(&p.jsonData); err != nil {
			p.jsonData = nil
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	return p.err
}

func (p *RequestBodyParser) declaresJSON() bool {
	mediaType, _, err := mime.ParseMediaType(p.contentType)
	return err == nil && (mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"))
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
		return ""
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string. Objects, arrays and
// null become "".
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseSubmitRequest extracts number, comment and operation from a JSON or
// form body.
func ParseSubmitRequest(r *http.Request) (core.SubmitRequest, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return core.SubmitRequest{}, err
	}
	return core.SubmitRequest{
		Number:    p.Get("number"),
		Comment:   p.Get("comment"),
		Operation: p.Get("operation"),
	}, nil
}

// Credentials is a login attempt.
type Credentials struct {
	Username string
	Password string
}

// ParseCredentials reads username and password from a JSON or form body.
// The password is not trimmed.
func ParseCredentials(r *http.Request) (Credentials, bool, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return Credentials{}, false, err
	}
	c := Credentials{Username: p.Get("username")}
	if p.jsonData != nil {
		c.Password = stringValue(p.jsonData["password"])
	} else {
		c.Password = p.formData.Get("password")
	}
	return c, p.IsJSON(), nil
}

// ParseDays reads a positive days query parameter. Missing or invalid
// values yield 0, which means the default page size.
func ParseDays(query url.Values) int {
	v := strings.TrimSpace(query.Get("days"))
	if v == "" {
		return 0
	}
	d, err := strconv.Atoi(v)
	if err != nil || d < 1 {
		return 0
	}
	if d > maxHistoryDays {
		return maxHistoryDays
	}
	return d
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequireGET allows GET and HEAD.
func RequireGET(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodGet, http.MethodHead)
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}
