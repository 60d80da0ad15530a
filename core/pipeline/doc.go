// Package pipeline drives the forecast, dispatch and compliance stages over
// newline-delimited JSON input streams.
package pipeline
