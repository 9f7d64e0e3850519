// internal/store/notify.go
package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
)

// notifyChannel is the Postgres NOTIFY channel shared by all tasksync
// processes. Payloads are hub keys ("tasks:<owner>" / "profile:<owner>").
const notifyChannel = "tasksync_changes"

func (s *SQLTaskStore) notifyTasks(ctx context.Context, owner string) {
	s.notify(ctx, taskKey(owner))
}

func (s *SQLTaskStore) notifyProfile(ctx context.Context, owner string) {
	s.notify(ctx, profileKey(owner))
}

func (s *SQLTaskStore) notify(ctx context.Context, key string) {
	s.hub.publish(key)

	// Cross-process fan-out; duplicates with the local publish coalesce
	// in the hub.
	if s.db.DriverName() == "postgres" {
		if _, err := s.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", notifyChannel, key); err != nil {
			log.Printf("pg_notify failed: %v", err)
		}
	}
}

// ListenRemote attaches a Postgres listener so that writes from other
// processes and devices reach this process's subscriptions. Only valid
// for the postgres driver; the guest/local mode has a single writer and
// needs no cross-process feed.
func (s *SQLTaskStore) ListenRemote(dsn string) error {
	if s.db.DriverName() != "postgres" {
		return fmt.Errorf("remote listen requires the postgres driver, have %s", s.db.DriverName())
	}
	if s.listener != nil {
		return fmt.Errorf("remote listener already attached")
	}

	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("postgres listener event %d: %v", ev, err)
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		listener.Close()
		return fmt.Errorf("listen %s: %w", notifyChannel, err)
	}

	s.listener = listener
	go func() {
		for n := range listener.Notify {
			if n == nil {
				continue // reconnect marker
			}
			s.hub.publish(n.Extra)
		}
	}()

	return nil
}

// Close releases the remote listener, if any.
func (s *SQLTaskStore) Close() error {
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
