// Package httputil provides HTTP handler helpers shared by folio's route
// packages: JSON encoding, request parsing and the mapping from domain error
// kinds to status codes.
package httputil
