package database

import (
	"fmt"

	"pulse/internal/models"

	"gorm.io/gorm"
)

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Forum{},
		&models.Post{},
		&models.Comment{},
		&models.VoteRecord{},
	}
}

// AutoMigrate creates or updates every table, index and check constraint.
// The unique (subject_type, subject_id, voter_id) index on votes is what
// keeps one record per voter per subject under concurrent first votes.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// TableStatus reports whether a model's table and its required indexes exist.
type TableStatus struct {
	Table   string
	Exists  bool
	Missing []string
}

// requiredIndexes lists indexes the vote ledger relies on for correctness.
var requiredIndexes = map[string][]string{
	"votes": {"idx_vote_subject_voter"},
}

// SchemaStatus inspects the live schema.
func SchemaStatus(db *gorm.DB) ([]TableStatus, error) {
	migrator := db.Migrator()
	var out []TableStatus
	for _, m := range PersistentModels() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			return nil, fmt.Errorf("parse model: %w", err)
		}
		st := TableStatus{Table: stmt.Schema.Table, Exists: migrator.HasTable(m)}
		if st.Exists {
			for _, idx := range requiredIndexes[st.Table] {
				if !migrator.HasIndex(m, idx) {
					st.Missing = append(st.Missing, idx)
				}
			}
		}
		out = append(out, st)
	}
	return out, nil
}
