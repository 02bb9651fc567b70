// Package handlers mounts the relay modes on net/http.
//
//   - NewClientHandler relays requests under a path prefix to a broker
//     inside envelopes.
//   - NewServerHandler accepts envelope posts on one method and path and
//     hands them to a relay server.
//   - NewRouterHandler forwards requests using the path-rewrite table and
//     falls through to the next handler when nothing matches.
//
// Every handler decodes the inbound body with the codec package, removes
// spooled uploads once the response is written and writes failures as the
// JSON error body described in package proxy.
package handlers
