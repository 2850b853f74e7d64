// Copyright (c) 2024 - 2026 Wardsec. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.wardsec.io/terms.html

// Package wardhttp provides the `net/http` middleware running every received
// request through the defense pipeline before the wrapped handler sees it.
package wardhttp

import (
	"encoding/json"
	"net/http"

	"github.com/wardsec/go-ward/internal/protection"
)

// PrincipalFunc extracts the authenticated principal of the request, nil for
// anonymous requests. It is called before the pipeline runs.
type PrincipalFunc func(*http.Request) *protection.Principal

// Middleware wraps the handler with the defense pipeline: blocked IPs and
// detected attacks are rejected with a 403 JSON response, over-quota clients
// with a 429, and everything else is passed through with the rate-limit
// headers attached.
//
// Usage example:
//
//	p, err := ward.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//	http.Handle("/", wardhttp.Middleware(p, mux))
//
func Middleware(p *protection.Protector, next http.Handler) http.Handler {
	return MiddlewareWithPrincipal(p, nil, next)
}

// MiddlewareWithPrincipal is Middleware with a principal extractor, so that
// superuser and exempt-user checks and user-based rate-limiting identities
// apply.
func MiddlewareWithPrincipal(p *protection.Protector, principalOf PrincipalFunc, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var principal *protection.Principal
		if principalOf != nil {
			principal = principalOf(r)
		}

		verdict := p.Evaluate(r, principal)
		for name, values := range verdict.Headers {
			for _, value := range values {
				w.Header().Add(name, value)
			}
		}
		if !verdict.Allowed {
			WriteRejection(w, verdict)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WriteRejection writes the rejection response of a verdict. The verdict
// headers are expected to be already set on the response writer.
func WriteRejection(w http.ResponseWriter, verdict protection.Verdict) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(verdict.Status)
	if verdict.Body == nil {
		return
	}
	// A failed body write cannot be recovered at this point, the status
	// line is gone already.
	_ = json.NewEncoder(w).Encode(verdict.Body)
}
