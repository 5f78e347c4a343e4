// Package revoke реализует denylist отозванных сессионных токенов.
//
// Сессионные токены self-contained и живут до истечения exp, поэтому
// чтобы logout действовал немедленно, jti отозванного токена кладется
// в BoltDB bucket вместе со временем истечения. Запись нужна только
// пока токен еще мог бы пройти валидацию - фоновый sweep удаляет
// записи после exp
package revoke

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"
)

// DefaultSweepInterval - период фоновой чистки истекших записей
const DefaultSweepInterval = 10 * time.Minute

var bucketRevoked = []byte("revoked")

// Denylist хранит jti отозванных токенов до их естественного истечения
type Denylist struct {
	db     *bbolt.DB
	logger *slog.Logger
	clock  func() time.Time
	stopC  chan struct{}
	doneC  chan struct{}
}

// Open открывает (или создает) denylist по указанному пути
// и запускает фоновый sweep
func Open(path string, sweepInterval time.Duration, logger *slog.Logger) (*Denylist, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open denylist db: %w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRevoked)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create revoked bucket: %w", err)
	}

	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}

	d := &Denylist{
		db:     db,
		logger: logger,
		clock:  time.Now,
		stopC:  make(chan struct{}),
		doneC:  make(chan struct{}),
	}

	go d.sweepLoop(sweepInterval)

	return d, nil
}

// Close останавливает sweep и закрывает базу
func (d *Denylist) Close() error {
	close(d.stopC)
	<-d.doneC
	return d.db.Close()
}

// Revoke помечает токен отозванным до момента expiresAt
func (d *Denylist) Revoke(tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return fmt.Errorf("token id cannot be empty")
	}

	// Храним exp как unix секунды, чтобы sweep знал когда запись не нужна
	value := make([]byte, 8)
	binary.BigEndian.PutUint64(value, uint64(expiresAt.Unix()))

	err := d.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRevoked)
		if bucket == nil {
			return fmt.Errorf("revoked bucket not found")
		}
		return bucket.Put([]byte(tokenID), value)
	})
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	return nil
}

// IsRevoked проверяет, отозван ли токен с данным jti
func (d *Denylist) IsRevoked(tokenID string) (bool, error) {
	var revoked bool
	err := d.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRevoked)
		if bucket == nil {
			return fmt.Errorf("revoked bucket not found")
		}
		revoked = bucket.Get([]byte(tokenID)) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}
	return revoked, nil
}

// sweepLoop периодически удаляет записи истекших токенов
func (d *Denylist) sweepLoop(interval time.Duration) {
	defer close(d.doneC)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed, err := d.Sweep()
			if err != nil {
				d.logger.Error("denylist sweep failed", slog.Any("error", err))
				continue
			}
			if removed > 0 {
				d.logger.Debug("denylist sweep done", slog.Int("removed", removed))
			}
		case <-d.stopC:
			return
		}
	}
}

// Sweep удаляет записи токенов, у которых exp уже в прошлом.
// Возвращает количество удаленных записей
func (d *Denylist) Sweep() (int, error) {
	now := d.clock().Unix()
	removed := 0

	err := d.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRevoked)
		if bucket == nil {
			return fmt.Errorf("revoked bucket not found")
		}

		cursor := bucket.Cursor()
		for key, value := cursor.First(); key != nil; key, value = cursor.Next() {
			if len(value) != 8 {
				// Битая запись - выкидываем
				if err := cursor.Delete(); err != nil {
					return err
				}
				removed++
				continue
			}
			expiresAt := int64(binary.BigEndian.Uint64(value))
			if expiresAt < now {
				if err := cursor.Delete(); err != nil {
					return err
				}
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to sweep denylist: %w", err)
	}

	return removed, nil
}
