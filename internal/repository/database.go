package repository

import (
	"time"

	"github.com/noteduco342/chatsync/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(dsn string) (*gorm.DB, error) {
	// TranslateError turns unique violations into gorm.ErrDuplicatedKey.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates every table the engine persists.
func Migrate(db *gorm.DB) error {
	if err := rehashParticipantKeys(db); err != nil {
		return err
	}
	return db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.GroupMember{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.Message{},
		&models.File{},
		&models.MessageRead{},
	)
}

// rehashParticipantKeys converts keys stored as plain id lists to the hashed
// form before the column is narrowed.
func rehashParticipantKeys(db *gorm.DB) error {
	if !db.Migrator().HasTable(&models.Conversation{}) {
		return nil
	}
	return db.Exec(`UPDATE conversations
		SET participant_key = encode(sha256(convert_to(participant_key, 'UTF8')), 'hex')
		WHERE participant_key IS NOT NULL AND participant_key !~ '^[0-9a-f]{64}$'`).Error
}
