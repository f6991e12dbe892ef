// Package handlers provides the HTTP API of the media converter.
//
// It includes handlers for:
//   - Submitting, listing, inspecting and cancelling conversion jobs
//   - Streaming job progress as Server-Sent Events
//   - Probing media files and reporting hardware encoder support
//   - Bearer token authentication for /api routes
//   - Health checks and version information
package handlers
