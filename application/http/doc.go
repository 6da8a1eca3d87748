// Package http implements the HTTP/1.1 message format spoken by the client:
// building and encoding requests, and reading response header blocks.
//
// Reference:
//
// - https://datatracker.ietf.org/doc/html/rfc9110
//
// - https://datatracker.ietf.org/doc/html/rfc9112
package http
