// Package httputil provides HTTP method and media type helpers shared by the
// index, the validator and the client.
package httputil

import (
	"mime"
	"strings"
)

// HTTP Method Constants
const (
	MethodGet     = "GET"
	MethodPut     = "PUT"
	MethodPost    = "POST"
	MethodDelete  = "DELETE"
	MethodOptions = "OPTIONS"
	MethodHead    = "HEAD"
	MethodPatch   = "PATCH"
	MethodTrace   = "TRACE"
)

// Media type constants
const (
	MediaTypeJSON     = "application/json"
	HeaderContentType = "Content-Type"
	HeaderAllow       = "Allow"
)

var supportedMethods = map[string]bool{
	MethodGet:     true,
	MethodPut:     true,
	MethodPost:    true,
	MethodDelete:  true,
	MethodOptions: true,
	MethodHead:    true,
	MethodPatch:   true,
	MethodTrace:   true,
}

// IsSupportedMethod reports whether method (any case) may be declared by an
// operation.
func IsSupportedMethod(method string) bool {
	return supportedMethods[strings.ToUpper(method)]
}

// CarriesBody reports whether requests with this method have their media
// type and body validated: POST, PUT and PATCH.
func CarriesBody(method string) bool {
	switch strings.ToUpper(method) {
	case MethodPost, MethodPut, MethodPatch:
		return true
	}
	return false
}

// BaseMediaType returns the lower-cased media type of a Content-Type value
// without parameters. ok is false when the value does not parse.
func BaseMediaType(contentType string) (string, bool) {
	if strings.TrimSpace(contentType) == "" {
		return "", false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", false
	}
	return strings.ToLower(mediaType), true
}

// MatchMediaType reports whether a concrete media type is accepted by pattern.
// Patterns may be exact ("application/json"), a type wildcard ("text/*") or
// "*/*". Parameters are ignored and comparison is case-insensitive.
func MatchMediaType(pattern, mediaType string) bool {
	p, ok := BaseMediaType(pattern)
	if !ok {
		p = strings.ToLower(strings.TrimSpace(pattern))
	}
	m, ok := BaseMediaType(mediaType)
	if !ok {
		return false
	}

	if p == "*/*" {
		return true
	}
	if prefix, found := strings.CutSuffix(p, "/*"); found {
		return strings.HasPrefix(m, prefix+"/")
	}
	return p == m
}

// MatchAnyMediaType reports whether mediaType is accepted by any of patterns.
func MatchAnyMediaType(patterns []string, mediaType string) bool {
	for _, p := range patterns {
		if MatchMediaType(p, mediaType) {
			return true
		}
	}
	return false
}

// IsValidMediaType validates a media type string according to RFC 2045/2046.
// Handles wildcards (*/* and type/*) and prevents invalid combinations (*/subtype).
func IsValidMediaType(mediaType string) bool {
	if mediaType == "*/*" {
		return true
	}

	if strings.HasSuffix(mediaType, "/*") {
		parts := strings.Split(mediaType, "/")
		return len(parts) == 2 && parts[0] != "" && parts[0] != "*"
	}

	_, _, err := mime.ParseMediaType(mediaType)
	return err == nil
}
