// Package database provides SQLite connectivity for the lutronbond journal.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations read from an fs.FS (the migrations package embeds them)
//   - Connection pooling and lifecycle management
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.Source()); err != nil {
//	    return err
//	}
//
// Migrations are additive-only: new columns must be NULLABLE or have a
// DEFAULT. Each .up.sql ships with a .down.sql for manual rollback; only the
// up files are ever run. SchemaStatus reports the applied version for
// /api/v1/status.
package database
