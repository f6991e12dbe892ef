// Package middleware provides HTTP middleware for the media converter API.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Response compression (gzip), bypassed for Server-Sent Events
//   - Prometheus request metrics labelled by route template
package middleware
