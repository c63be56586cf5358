// Package store implements the Persistence Adapter named in spec.md §2.2 and
// §6: a durable table of undeliverable queue messages, consulted only
// through two operations, Insert and FetchForDestination.
package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// QueuedMessage is the durable row shape: one spilled queue message, keyed
// by destination, ordered by (priority, timestamp) on read (spec.md §3,
// §6). Grounded on the pack's gorm.io/gorm model conventions
// (other_examples/manifests/madcok-co-unicorn's gorm.io/driver/sqlite
// pairing), with an explicit dispatch-ordering index rather than relying on
// row insertion order.
type QueuedMessage struct {
	ID          string `gorm:"primaryKey;size:64"`
	Priority    int32  `gorm:"index:idx_dest_priority_ts"`
	Destination string `gorm:"index:idx_dest_priority_ts;size:255"`
	Timestamp   time.Time `gorm:"index:idx_dest_priority_ts"`
	Body        []byte
}

func (QueuedMessage) TableName() string { return "queued_messages" }

// Store is the Persistence Adapter contract the dispatch engine consumes.
type Store interface {
	Insert(ctx context.Context, msg QueuedMessage) error
	FetchForDestination(ctx context.Context, destination string, limit int) ([]QueuedMessage, error)
}

// Config names the MySQL connection the CLI surface (spec.md §6) describes:
// host, port, database, a unix socket path, user and password as six
// independently-settable fields — unlike the source's reported bug
// (spec.md §9.5), dbpassword and dbsockdir are distinct fields here.
type Config struct {
	Host     string
	Port     int
	Database string
	SockDir  string
	User     string
	Password string
}

func (c Config) dsn() string {
	if c.SockDir != "" {
		return fmt.Sprintf("%s:%s@unix(%s)/%s?parseTime=true", c.User, c.Password, c.SockDir, c.Database)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", c.User, c.Password, c.Host, c.Port, c.Database)
}

type gormStore struct {
	db *gorm.DB
}

// Open connects to the configured MySQL backend and ensures the
// queued_messages table exists.
func Open(cfg Config, logger *zap.Logger) (Store, error) {
	db, err := gorm.Open(mysql.Open(cfg.dsn()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := db.AutoMigrate(&QueuedMessage{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	logger.Info("persistence adapter connected", zap.String("database", cfg.Database))
	return &gormStore{db: db}, nil
}

// Insert adds a row (id, priority, destination, timestamp, body), per
// spec.md §4.5.
func (s *gormStore) Insert(ctx context.Context, msg QueuedMessage) error {
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return fmt.Errorf("store: insert: %w", err)
	}
	return nil
}

// FetchForDestination returns up to limit rows for destination, ordered by
// (priority ASC, timestamp ASC) as spec.md §4.4/§6 require for replay, and
// deletes them so they are not replayed twice.
func (s *gormStore) FetchForDestination(ctx context.Context, destination string, limit int) ([]QueuedMessage, error) {
	if limit <= 0 {
		return nil, nil
	}
	var rows []QueuedMessage
	err := s.db.WithContext(ctx).
		Where("destination = ?", destination).
		Order("priority ASC, timestamp ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: fetch: %w", err)
	}
	if len(rows) > 0 {
		ids := make([]string, len(rows))
		for i, r := range rows {
			ids[i] = r.ID
		}
		if err := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&QueuedMessage{}).Error; err != nil {
			return nil, fmt.Errorf("store: delete replayed: %w", err)
		}
	}
	return rows, nil
}
