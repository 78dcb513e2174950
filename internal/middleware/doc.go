// Package middleware provides HTTP middleware for the clipstream intake
// service.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics
//   - Uploader identity from HS256 bearer tokens
package middleware
