// Copyright (c) 2024 - 2026 Wardsec. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.wardsec.io/terms.html

// Package scan implements the inspectable request surface extraction and the
// attack scanner running it against a signature set.

package scan

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strconv"

	"github.com/wardsec/go-ward/internal/config"
	"github.com/wardsec/go-ward/internal/pattern"
)

// Target is the ephemeral, per-request scan surface: the header values worth
// inspecting, the query parameters and the decoded body. It lives within a
// single request's lifetime and is never persisted.
type Target struct {
	// Headers maps a header name to its values joined request content,
	// excluding the headers of config.SkippedScanHeaders.
	Headers map[string]string
	// Query maps a query parameter name to its values.
	Query map[string][]string
	// BodyFields holds the string leaves of a structured (JSON object) body,
	// keyed by their dotted path. Non-string leaves are skipped.
	BodyFields map[string]string
	// Body is the raw body string when the body could not be decoded as
	// structured data. Decode failure is not an error condition, just a
	// degraded scan surface.
	Body string
	// Truncated is true when the body was larger than the scan size bound
	// and only its prefix was extracted.
	Truncated bool
}

var skippedHeaders = func() map[string]struct{} {
	m := make(map[string]struct{}, len(config.SkippedScanHeaders))
	for _, h := range config.SkippedScanHeaders {
		m[textproto.CanonicalMIMEHeaderKey(h)] = struct{}{}
	}
	return m
}()

// Extract pulls the inspectable surface out of the request. It never fails:
// an unreadable or undecodable body degrades to a smaller surface. The
// request body is left readable for the application handler; at most
// maxBodySize bytes are included in the surface, larger bodies are scanned
// truncated.
func Extract(r *http.Request, maxBodySize int64) *Target {
	target := &Target{
		Headers: make(map[string]string, len(r.Header)),
		Query:   url.Values(nil),
	}

	for name, values := range r.Header {
		if _, skipped := skippedHeaders[name]; skipped {
			continue
		}
		if len(values) == 0 {
			continue
		}
		target.Headers[name] = values[0]
		for _, v := range values[1:] {
			target.Headers[name] += "\n" + v
		}
	}

	// Query parameters are parsed from the raw query string; a malformed
	// query string yields the parameters decoded up to the error.
	query, _ := url.ParseQuery(r.URL.RawQuery)
	target.Query = query

	extractBody(r, target, maxBodySize)
	return target
}

func extractBody(r *http.Request, target *Target, maxBodySize int64) {
	if r.Body == nil || r.Body == http.NoBody {
		return
	}

	// One byte past the bound distinguishes a body of exactly the bound
	// size from a larger, actually truncated one.
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		// Nothing more to read; scan whatever was extracted so far.
		r.Body = io.NopCloser(bytes.NewReader(raw))
		target.Body = string(raw)
		return
	}
	surface := raw
	if int64(len(raw)) > maxBodySize {
		surface = raw[:maxBodySize]
		target.Truncated = true
	}

	// Leave the body readable for the application handler, including the
	// bytes past the scan bound.
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), r.Body))

	if len(surface) == 0 {
		return
	}

	// Structured decoding first, raw string fallback.
	var decoded interface{}
	if err := json.Unmarshal(surface, &decoded); err != nil {
		target.Body = string(surface)
		return
	}
	if obj, ok := decoded.(map[string]interface{}); ok {
		target.BodyFields = make(map[string]string)
		flattenJSON("", obj, target.BodyFields)
		return
	}
	// Non-object JSON (string, array, number): scan the raw text.
	target.Body = string(surface)
}

// flattenJSON collects the string leaves of a decoded JSON object into
// `into`, keyed by their dotted path. Number, boolean and null leaves carry
// no scannable content and are skipped.
func flattenJSON(prefix string, value interface{}, into map[string]string) {
	switch actual := value.(type) {
	case map[string]interface{}:
		for k, v := range actual {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flattenJSON(key, v, into)
		}
	case []interface{}:
		for i, v := range actual {
			flattenJSON(prefix+"."+strconv.Itoa(i), v, into)
		}
	case string:
		into[prefix] = actual
	}
}

// Map iteration order is randomized in Go; surfaces are walked in sorted key
// order so that scanning is deterministic (required for reproducibility).
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedQueryKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Result is the scan outcome: either clean, or the first attack match with
// the surface it was found on.
type Result struct {
	Attack bool
	Type   pattern.AttackType
	// Fragment is the matched substring, carried for security event
	// reporting only.
	Fragment string
	// Surface names where the match was found: `header:<name>`,
	// `query:<name>`, `body` or `body:<field path>`.
	Surface string
}

// Scan runs the extracted surface against the signature set: headers first,
// then query values, then body. It returns on the first match; given
// identical target and set the result is always identical.
func Scan(target *Target, set *pattern.Set) Result {
	for _, name := range sortedKeys(target.Headers) {
		if m, found := set.MatchString(target.Headers[name]); found {
			return Result{Attack: true, Type: m.Type, Fragment: m.Fragment, Surface: "header:" + name}
		}
	}

	for _, name := range sortedQueryKeys(target.Query) {
		for _, value := range target.Query[name] {
			if m, found := set.MatchString(value); found {
				return Result{Attack: true, Type: m.Type, Fragment: m.Fragment, Surface: "query:" + name}
			}
		}
	}

	if target.BodyFields != nil {
		for _, name := range sortedKeys(target.BodyFields) {
			if m, found := set.MatchString(target.BodyFields[name]); found {
				return Result{Attack: true, Type: m.Type, Fragment: m.Fragment, Surface: "body:" + name}
			}
		}
		return Result{}
	}

	if target.Body != "" {
		if m, found := set.MatchString(target.Body); found {
			return Result{Attack: true, Type: m.Type, Fragment: m.Fragment, Surface: "body"}
		}
	}

	return Result{}
}
