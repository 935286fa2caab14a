// Package auditlog persists every emitted pool.Event as a durable row via
// GORM, independent of the structured-logging audit trail pool.AuditLogger
// keeps for admin-capability attempts specifically.
package auditlog

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bockstake/stakepool/pool"
)

// EventRecord is the database model for one recorded pool.Event.
type EventRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	EventName string    `gorm:"index;not null"`
	Payload   string    `gorm:"type:text;not null;comment:JSON-encoded event fields"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (EventRecord) TableName() string {
	return "pool_events"
}

// Recorder implements pool.Emitter, persisting every event to MySQL.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder opens a MySQL connection and migrates the event table.
// dsn format: "user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
func NewRecorder(dsn string) (*Recorder, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("auditlog: connect to mysql: %w", err)
	}
	return NewRecorderWithDB(db)
}

// NewRecorderWithDB wraps an existing GORM connection, migrating the event
// table onto it.
func NewRecorderWithDB(db *gorm.DB) (*Recorder, error) {
	if err := db.AutoMigrate(&EventRecord{}); err != nil {
		return nil, fmt.Errorf("auditlog: migrate schema: %w", err)
	}
	return &Recorder{db: db}, nil
}

// Emit implements pool.Emitter. A marshal or write failure is swallowed
// rather than propagated: by the time an event is emitted, its originating
// operation has already succeeded, and the audit trail must never be able
// to roll back engine state.
func (r *Recorder) Emit(ev pool.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	record := EventRecord{EventName: ev.EventName(), Payload: string(payload)}
	r.db.Create(&record)
}

// Close releases the underlying database connection.
func (r *Recorder) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("auditlog: underlying db: %w", err)
	}
	return sqlDB.Close()
}

// RecentEvents returns the most recently recorded events, newest first.
func (r *Recorder) RecentEvents(limit int) ([]EventRecord, error) {
	var records []EventRecord
	result := r.db.Order("created_at DESC").Limit(limit).Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("auditlog: query recent events: %w", result.Error)
	}
	return records, nil
}

// EventsByName returns every recorded event with the given name, oldest
// first.
func (r *Recorder) EventsByName(name string) ([]EventRecord, error) {
	var records []EventRecord
	result := r.db.Where("event_name = ?", name).Order("created_at ASC").Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("auditlog: query events by name: %w", result.Error)
	}
	return records, nil
}
