// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/diffeo/go-restconf/store"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Watch subscribes to changes under path.  The first call starts a
// single LISTEN connection for the whole store; every committed batch
// is read back from the change table and fanned out to subscribers.
func (s *pgStore) Watch(ctx context.Context, path string) (<-chan store.Change, error) {
	if err := store.CheckPath(path); err != nil {
		return nil, err
	}
	s.listenOnce.Do(func() {
		s.listenErr = s.listen()
	})
	if s.listenErr != nil {
		return nil, s.listenErr
	}
	return s.notifier.Subscribe(ctx, path), nil
}

// listen opens the LISTEN connection and starts the goroutine that
// publishes changes.
func (s *pgStore) listen() error {
	ctx := context.Background()
	s.listener = pq.NewListener(s.connStr, 10*time.Second, time.Minute,
		func(event pq.ListenerEventType, err error) {
			if err != nil {
				logrus.WithError(err).Warn("PostgreSQL change listener")
			}
		})
	if err := s.listener.Listen(notifyChannel); err != nil {
		s.listener.Close()
		return err
	}

	// Anything committed from here on will be published
	var last int64
	err := withTx(ctx, s.db, true, func(tx *sql.Tx) error {
		return tx.QueryRow(buildSelect(
			[]string{versionVersion},
			[]string{versionTable},
			nil,
		)).Scan(&last)
	})
	if err != nil {
		s.listener.Close()
		return err
	}

	go s.publish(last)
	return nil
}

// publish runs forever, catching up on the change table whenever a
// notification arrives or the listener reconnects.
func (s *pgStore) publish(last int64) {
	ctx := context.Background()
	for {
		select {
		case _, ok := <-s.listener.Notify:
			if !ok {
				return
			}
			// A nil notification means the connection was
			// re-established; either way, catch up
		case <-time.After(90 * time.Second):
			go func() {
				_ = s.listener.Ping()
			}()
			continue
		}

		var changes []store.Change
		err := withTx(ctx, s.db, true, func(tx *sql.Tx) (err error) {
			changes, err = changesSince(tx, last)
			return
		})
		if err != nil {
			logrus.WithError(err).Error("Reading PostgreSQL change history")
			continue
		}
		for _, change := range changes {
			s.notifier.Publish(change)
			last = int64(change.Revision.Version)
		}
	}
}
