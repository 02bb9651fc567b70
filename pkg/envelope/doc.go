// Package envelope defines the wire contract between a relay client and a
// relay server.
//
// An envelope carries a real request (method, path, headers and body) inside
// the body of a POST to the broker, together with an attributes block that
// authorizes it:
//
//	{
//	  "attributes": {"handshake": {...}, "target": "..."},
//	  "values":     {"method": "...", "path": "...", "headers": {...}, "body": ...},
//	  "timestamps": 1700000000000
//	}
//
// Attributes are authored by the client only and hold the handshake and the
// optional dynamic target. Per-request payload belongs in Values.
//
// When the wrapped request is multipart, the envelope travels as a single
// form field so it can share the multipart framing with uploaded files:
//
//	{"formData": "<json-encoded envelope>"}
//
// Parse accepts both shapes.
package envelope
