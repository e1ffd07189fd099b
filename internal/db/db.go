package db

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/danlang422/here-app/internal/logger"
	"github.com/danlang422/here-app/internal/models"
)

var conn *gorm.DB

func Init(path string) error {
	var err error
	conn, err = gorm.Open(sqlite.Open(path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"), &gorm.Config{})
	if err != nil {
		return err
	}

	// SQLite works best with a single writer; cap the pool accordingly.
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := Migrate(conn); err != nil {
		return err
	}

	logger.Log.Info("database ready (sqlite)")
	return nil
}

// Migrate creates tables and indexes. Exposed so tests can run it against
// their own temp databases.
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&models.User{},
		&models.Section{},
		&models.Enrollment{},
		&models.CalendarDay{},
		&models.AttendanceEvent{},
		&models.Interaction{},
		&models.AttendanceRecord{},
	); err != nil {
		return err
	}

	// Composite indexes that GORM doesn't auto-create from struct tags. The
	// unique attendance index from the model tags is what closes the duplicate
	// check-in race: the friendly existence check runs first, but two
	// concurrent submits can both pass it and the later insert must fail.
	gdb.Exec("CREATE INDEX IF NOT EXISTS idx_interactions_section_date ON interactions(section_id, event_date, type)")
	gdb.Exec("CREATE INDEX IF NOT EXISTS idx_enrollments_student ON enrollments(student_id, active)")
	return nil
}

func Conn() *gorm.DB {
	return conn
}
