// Copyright (c) 2024 - 2026 Wardsec. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.wardsec.io/terms.html

// Package wardgin provides the Gin middleware running every received request
// through the defense pipeline before the route handler sees it.
package wardgin

import (
	gingonic "github.com/gin-gonic/gin"

	"github.com/wardsec/go-ward/internal/protection"
)

// PrincipalFunc extracts the authenticated principal of the request, nil for
// anonymous requests.
type PrincipalFunc func(*gingonic.Context) *protection.Principal

// Middleware runs requests through the defense pipeline. Rejections are
// written as JSON responses and the handler chain is aborted.
//
// Usage example:
//
//	p, err := ward.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//	router := gin.Default()
//	router.Use(wardgin.Middleware(p, nil))
//
func Middleware(p *protection.Protector, principalOf PrincipalFunc) gingonic.HandlerFunc {
	return func(c *gingonic.Context) {
		var principal *protection.Principal
		if principalOf != nil {
			principal = principalOf(c)
		}

		verdict := p.Evaluate(c.Request, principal)
		for name, values := range verdict.Headers {
			for _, value := range values {
				c.Writer.Header().Add(name, value)
			}
		}
		if !verdict.Allowed {
			c.AbortWithStatusJSON(verdict.Status, verdict.Body)
			return
		}
		c.Next()
	}
}
