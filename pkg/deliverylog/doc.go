// Package deliverylog persists the per-recipient outcome of dispatch runs.
//
// The log is append-only from the dispatcher's point of view: one record per
// send attempt, never mutated after creation. A SENT record for an
// (accountOwnerID, recipientID) or (accountOwnerID, recipientEmail) pair
// marks that pair as delivered; future runs skip it until the record is
// purged by a maintenance operation.
//
// Repo is the Postgres implementation over pgx. Reporting queries (List,
// Stats) and maintenance operations (Purge, Delete) live here too since they
// operate on the same rows.
package deliverylog
