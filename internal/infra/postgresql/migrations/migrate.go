package migrations

import (
	"github.com/DouglasAntonni/serverwpp/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createMessagesTable(),
		addBulkJobIndex(),
	})

	return m.Migrate()
}

func createMessagesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_messages",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.MessageModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_transport_id ON messages (transport_message_id) WHERE transport_message_id IS NOT NULL AND outgoing`,
				`CREATE INDEX IF NOT EXISTS idx_messages_status_created ON messages (status, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_messages_recipient_address ON messages (recipient_address)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.MessageModel{})
		},
	}
}

func addBulkJobIndex() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_add_bulk_job_index",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_messages_bulk_job_id ON messages (bulk_job_id) WHERE bulk_job_id IS NOT NULL`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`DROP INDEX IF EXISTS idx_messages_bulk_job_id`).Error
		},
	}
}
