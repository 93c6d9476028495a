package storage

import "database/sql"

// migrateV003 adds the hand_aligned flag to location_ratings. Ratings written
// before this migration were all aligned by time window, so the default is 0.
func migrateV003(tx *sql.Tx) error {
	exists, err := columnExists(tx, "location_ratings", "hand_aligned")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = tx.Exec(`ALTER TABLE location_ratings ADD COLUMN hand_aligned BOOLEAN NOT NULL DEFAULT 0`)
	return err
}

// columnExists reports whether table has a column named column.
func columnExists(tx *sql.Tx, table, column string) (bool, error) {
	var count int
	err := tx.QueryRow(
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
