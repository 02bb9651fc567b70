// Package proxy adapts net/http to the relay's logical requests.
//
// FromHTTPRequest turns an inbound *http.Request into a *gateway.Request:
// header names are lower-cased, the path keeps its query string and the
// body is decoded with the codec package, spooling multipart uploads to
// disk. WriteResponse and WriteError go the other way.
//
// The handlers subpackage mounts the three modes (client, server and
// router) on top of these conversions, and the middleware subpackage
// carries the request id, logging, recovery and CORS concerns shared by
// every mode.
//
// # Error Bodies
//
// Failures are written as JSON:
//
//	{
//	  "status": 404,
//	  "message": "None Matched",
//	  "method": "GET",
//	  "path": "/unknown"
//	}
//
// The method and path fields are omitted when the failure does not name a
// request.
package proxy
