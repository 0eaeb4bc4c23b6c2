// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing HTMX responses
// plus the JSON writers used by the API endpoints.

package http

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
	applog "saldo/internal/log"
	"saldo/internal/store"
)

// HTMXResponseBuilder provides a fluent API for building HTMX responses.
// It encapsulates the construction of HX-Trigger headers and response bodies.
type HTMXResponseBuilder struct {
	triggers   map[string]interface{}
	statusCode int
	body       []byte
	headers    map[string]string
}

// NewHTMXResponse creates a new response builder with default 200 status.
func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		triggers:   make(map[string]interface{}),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named trigger with optional data to the HX-Trigger header.
func (b *HTMXResponseBuilder) Trigger(name string, data interface{}) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerEntryRecorded tells the page to refetch the ledger views.
func (b *HTMXResponseBuilder) TriggerEntryRecorded(total decimal.Decimal) *HTMXResponseBuilder {
	return b.Trigger("entry:recorded", map[string]string{"total": total.String()})
}

// TriggerFormReset adds the form:reset trigger.
func (b *HTMXResponseBuilder) TriggerFormReset() *HTMXResponseBuilder {
	return b.Trigger("form:reset", struct{}{})
}

// NotificationType represents the type of notification to display.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
)

// TriggerNotification adds a show-notification trigger with the specified parameters.
func (b *HTMXResponseBuilder) TriggerNotification(notifType NotificationType, message string, durationMs int) *HTMXResponseBuilder {
	return b.Trigger("show-notification", map[string]interface{}{
		"type":     string(notifType),
		"message":  message,
		"duration": durationMs,
	})
}

func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationSuccess, message, 3000)
}

func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationError, message, 5000)
}

// Header adds a custom header to the response.
func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.headers[name] = value
	return b
}

// BodyHTML sets the response body as HTML content.
func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = []byte(html)
	return b
}

// BodyJSON sets the response body to the JSON encoding of v.
func (b *HTMXResponseBuilder) BodyJSON(v interface{}) *HTMXResponseBuilder {
	data, err := json.Marshal(v)
	if err != nil {
		b.statusCode = http.StatusInternalServerError
		data = []byte(`{"message":"Internal server error"}`)
	}
	b.headers["Content-Type"] = "application/json"
	b.body = append(data, '\n')
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if len(b.triggers) > 0 {
		triggerJSON, err := json.Marshal(b.triggers)
		if err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}

	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse creates a standard error response with HTML formatting.
// The message is HTML-escaped for safety.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	escapedMsg := template.HTMLEscapeString(message)
	return NewHTMXResponse().
		Status(statusCode).
		TriggerErrorNotification(message).
		BodyHTML(`<div class="error">` + escapedMsg + `</div>`)
}

// MessageResponse is the {"message": ...} body used by every JSON error.
func MessageResponse(statusCode int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(statusCode).
		BodyJSON(map[string]string{"message": message})
}

// MethodNotAllowedError creates a 405 response listing the allowed methods.
func MethodNotAllowedError(allowedMethods string) *HTMXResponseBuilder {
	return MessageResponse(http.StatusMethodNotAllowed, "Method not allowed").
		Header("Allow", allowedMethods)
}

// writeJSON writes v with status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	NewHTMXResponse().Status(status).BodyJSON(v).Write(w)
}

// writeMessage writes {"message": message} with status, or an HTML error
// fragment for HTMX requests.
func writeMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	if isHTMX(r) {
		ErrorResponse(status, message).Write(w)
		return
	}
	MessageResponse(status, message).Write(w)
}

// writeServiceError maps service errors to responses: validation problems
// are 422 with the reason, everything else is a 500 with fallback.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		writeMessage(w, r, http.StatusUnprocessableEntity, ve.Error())
		return
	}

	logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentHTTP)
	if store.IsPersistence(err) {
		logger.ErrorContext(r.Context(), "Store failure", applog.FieldError, err, applog.FieldPath, r.URL.Path)
	} else {
		logger.ErrorContext(r.Context(), "Request failed", applog.FieldError, err, applog.FieldPath, r.URL.Path)
	}
	writeMessage(w, r, http.StatusInternalServerError, fallback)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// jsonAmount renders d as a JSON number with its exact decimal text.
func jsonAmount(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
