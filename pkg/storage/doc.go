// Package storage holds manuscript files for folio.
//
// Submissions only carry an opaque reference string; this package turns
// uploads into references and references back into readers. Two backends
// are provided:
//
//   - FilesystemStore keeps files under a root directory.
//   - S3Store keeps files in an S3-compatible bucket (AWS or MinIO).
//
// References have the form "<uuid>_<sanitized-name>" so that two uploads
// with the same name never collide and the original name survives for
// downloads.
package storage
