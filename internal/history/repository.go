package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"livelyclient/internal/eventlog"
)

type Repository interface {
	Create(ctx context.Context, msg *SentMessage) error
	Recent(ctx context.Context, limit int) ([]SentMessage, error)
	ByRoom(ctx context.Context, room string, limit int) ([]SentMessage, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Open connects to Postgres and migrates the sent_messages table.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.AutoMigrate(&SentMessage{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sent_messages: %w", err)
	}
	return db, nil
}

func (r *repository) Create(ctx context.Context, msg *SentMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// Recent returns the latest messages, newest first.
func (r *repository) Recent(ctx context.Context, limit int) ([]SentMessage, error) {
	var messages []SentMessage
	err := r.db.WithContext(ctx).
		Order("sent_at DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *repository) ByRoom(ctx context.Context, room string, limit int) ([]SentMessage, error) {
	var messages []SentMessage
	err := r.db.WithContext(ctx).
		Where("room = ?", room).
		Order("sent_at DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

// recorder archives sent events and ignores every other kind.
type recorder struct {
	repo    Repository
	logger  *slog.Logger
	timeout time.Duration
}

// NewRecorder adapts repo to the event trail. Archive failures are logged only.
func NewRecorder(repo Repository, log *slog.Logger) eventlog.Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &recorder{repo: repo, logger: log, timeout: 5 * time.Second}
}

func (r *recorder) Record(ev eventlog.Event) {
	if ev.Kind != eventlog.KindSent {
		return
	}
	msg, err := FromEvent(ev)
	if err != nil {
		r.logger.Warn("Failed to convert sent event", "event_id", ev.ID.String(), "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.repo.Create(ctx, msg); err != nil {
		r.logger.Warn("Failed to archive sent message", "room", msg.Room, "error", err)
	}
}
