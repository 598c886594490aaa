// Package registry stores the callables modules publish for each other.
//
// A capability is a named func value filed under a Category. Its reflect
// type is captured at registration and compared again when another module
// resolves it, so a signature drift between publisher and consumer shows up
// as ErrSignatureMismatch instead of a bad type assertion. Each category may
// name one default capability.
//
// The registry is built once by the module host and handed to modules by
// pointer. Registration belongs to the wiring phase; resolving is safe from
// any goroutine afterwards.
package registry
