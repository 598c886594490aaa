// Package envelope encodes and decodes the JSON messages exchanged with the
// monitor daemon.
//
// Every message on the wire is a single JSON object with a type tag, an
// ISO-8601 timestamp and an object payload:
//
//	{"type": "SYN", "datetime": "2024-05-01T10:00:00Z", "data": {}}
//
// Only the type is mandatory when decoding. The package also names the
// message vocabulary so callers never spell tags inline.
package envelope
