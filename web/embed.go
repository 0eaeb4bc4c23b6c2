// Package web holds the embedded ledger page, its HTMX fragments and assets.
package web

import "embed"

// TemplatesFS holds the page and fragment templates, keyed by base name.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS is served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
