package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequestIDHeader carries the request id on both request and response.
const RequestIDHeader = "X-Request-ID"

// contextKeyRequestID is the echo context key shared by the middleware set.
// Callers read it through RequestIDFrom, never the raw key.
const contextKeyRequestID = "request_id"

// RequestID assigns each request an identifier, preserving one supplied by
// the client, and echoes it back on the response.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" {
				rid = uuid.New().String()
			}
			c.Set(contextKeyRequestID, rid)
			c.Response().Header().Set(RequestIDHeader, rid)
			return next(c)
		}
	}
}

// RequestIDFrom returns the id assigned by RequestID, or "" when the
// middleware did not run.
func RequestIDFrom(c echo.Context) string {
	rid, _ := c.Get(contextKeyRequestID).(string)
	return rid
}
