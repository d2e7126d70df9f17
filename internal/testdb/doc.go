// Package testdb provides helpers for integration tests that need a real
// PostgreSQL database.
//
// Tests obtain a connection with GetTestDBWithT, which skips the test when
// neither DATABASE_URL nor QAGEN_TEST_DB_URL is set, and migrate it with
// SetupTestDatabaseSchema, which applies the embedded goose migrations.
//
// Most tests should run inside WithTx so their writes are rolled back.
// Tests that exercise cross-transaction behavior (row locks, SKIP LOCKED,
// unique races) must commit; they call ResetTables first to start from an
// empty schema.
package testdb
