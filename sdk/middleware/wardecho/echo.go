// Copyright (c) 2024 - 2026 Wardsec. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.wardsec.io/terms.html

// Package wardecho provides the Echo middleware running every received
// request through the defense pipeline before the route handler sees it.
package wardecho

import (
	"github.com/labstack/echo/v4"

	"github.com/wardsec/go-ward/internal/protection"
)

// PrincipalFunc extracts the authenticated principal of the request, nil for
// anonymous requests.
type PrincipalFunc func(echo.Context) *protection.Principal

// Middleware runs requests through the defense pipeline. Rejections are
// written as JSON responses and the route handler is not called.
//
// Usage example:
//
//	p, err := ward.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//	e := echo.New()
//	e.Use(wardecho.Middleware(p, nil))
//
func Middleware(p *protection.Protector, principalOf PrincipalFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var principal *protection.Principal
			if principalOf != nil {
				principal = principalOf(c)
			}

			verdict := p.Evaluate(c.Request(), principal)
			responseHeader := c.Response().Header()
			for name, values := range verdict.Headers {
				for _, value := range values {
					responseHeader.Add(name, value)
				}
			}
			if !verdict.Allowed {
				return c.JSON(verdict.Status, verdict.Body)
			}
			return next(c)
		}
	}
}
