// Package generation produces operator advisories and anomaly reports with
// a chat-completion provider. Providers are chosen once at startup; a failed
// call degrades to a short placeholder and is never retried.
package generation
