// Package codec converts logical request bodies to and from their wire
// encodings.
//
// A logical body is the JSON document a caller hands to the gateway. On the
// way out it is re-encoded for the negotiated content type:
//
//   - absent body, or a GET/HEAD request: no wire body
//   - application/x-www-form-urlencoded: the JSON object is flattened into a
//     query string (nested objects use bracket keys, arrays repeat the key)
//   - multipart/form-data: every JSON field becomes a form field and every
//     declared FileRef is streamed from disk as a file part; the payload
//     carries its own Content-Type with the generated boundary
//   - anything else: forwarded verbatim
//
// Decode is the mirror: it parses an inbound wire body back into a logical
// JSON body, spooling uploaded files to temporary files.
package codec
