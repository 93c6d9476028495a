package storage

import "database/sql"

// migrateV002 indexes task period bounds, which visit and rating alignment
// filter on.
func migrateV002(tx *sql.Tx) error {
	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_task_periods_start ON task_periods(start)`,
		`CREATE INDEX IF NOT EXISTS idx_task_periods_end   ON task_periods("end")`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
