// Package auth dispatches inbound requests across named authentication
// strategies.
//
// Strategies are registered once in a Registry before traffic starts. Each
// route carries a Policy naming an ordered list of strategies and a mode.
// The Dispatcher consults the strategies in order: a strategy that finds no
// credentials of its kind returns a missing-credentials challenge and the next
// strategy is tried; any other error stops the chain. When a strategy returns
// a session the policy's scope, terms-of-service and entity checks are applied.
//
// After authentication, routes that demand it can have the request body
// verified by the strategy that produced the session, and the outgoing
// response signed by it.
//
// The fallback protocol itself is a pure function (Transition) so it can be
// tested without performing any strategy I/O.
package auth
