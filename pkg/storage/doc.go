// Package storage defines the read-only credential lookup used by the
// built-in strategies, and the sentinel errors shared by its adapters.
//
// Adapters (memory, postgres) implement CredentialStore. The dispatcher
// never writes credentials: they are provisioned out of band (config file
// entries for memory, SQL for postgres).
package storage
