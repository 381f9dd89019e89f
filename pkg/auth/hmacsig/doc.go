// Package hmacsig implements the two request-signing schemes.
//
// The hmac-signed scheme (Strategy) expects an Authorization header of the
// form
//
//	Hawk id="dh37fgj492je", ts="1353832234", nonce="j4h3g2", hash="...", ext="...", mac="..."
//
// where mac is an HMAC over a normalized description of the request. It
// rejects stale timestamps and reused nonces, verifies the payload hash
// when the route asks for it, and signs successful responses with a
// Server-Authorization header.
//
// The uri-signed scheme (Bewit) carries a time-limited signature in the
// bewit query parameter, for links that cannot set headers. It accepts only
// GET and HEAD.
//
// Client and Bewit build the corresponding client-side material and are
// used by tests and tooling.
package hmacsig
