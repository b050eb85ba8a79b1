// Package cli implements folio-admin, the bootstrap tool for a folio
// deployment.
//
// Commands run directly against the database, without an acting user, so
// they can create the first tenant and administrator:
//
//	folio-admin migrate
//	folio-admin create-tenant -name "Acme Press"
//	folio-admin create-user -email admin@acme.org -password ... -tenant 1 -role admin
//	folio-admin create-token -email admin@acme.org
//
// The connection comes from -database-url (default $DATABASE_URL). With
// -sqlite PATH the same commands run against a local SQLite file.
package cli
