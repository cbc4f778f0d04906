// Package syncactivity tails the room lifecycle stream and persists every
// record into the room_sessions table.
package syncactivity

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"canvasroom/internal/activity"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	batch   = 100
	block   = 2000 * time.Millisecond
	backoff = time.Second
)

// Run tails the stream in its own goroutine until ctx is cancelled. Upserts
// are idempotent, so starting from the beginning of the stream is safe.
func Run(ctx context.Context, rdc *redis.Client, db *sql.DB) {
	go func() {
		lastID := "0-0"
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			// block up to 2 s for new entries
			res, err := rdc.XRead(ctx, &redis.XReadArgs{
				Streams: []string{activity.Stream, lastID},
				Count:   batch,
				Block:   block,
			}).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				if ctx.Err() != nil {
					return
				}
				zap.L().Warn("syncactivity.xread", zap.Error(err))
				sleep(ctx, backoff)
				continue
			}
			if len(res) == 0 || len(res[0].Messages) == 0 {
				continue
			}
			entries := res[0].Messages
			if err := persist(ctx, db, entries); err != nil {
				zap.L().Error("syncactivity.persist", zap.Int("entries", len(entries)), zap.Error(err))
				sleep(ctx, backoff)
				continue
			}
			lastID = entries[len(entries)-1].ID
		}
	}()
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

const (
	insOpened = `INSERT INTO room_sessions (session_id, room_id, opened_at)
	             VALUES ($1, $2, $3)
	             ON CONFLICT (session_id) DO NOTHING`

	upsertClosed = `
	  INSERT INTO room_sessions (session_id, room_id, opened_at, closed_at,
	                             peak_participants, strokes, undos, redos, clears)
	       VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	  ON CONFLICT (session_id) DO UPDATE
	        SET closed_at         = EXCLUDED.closed_at,
	            peak_participants = EXCLUDED.peak_participants,
	            strokes           = EXCLUDED.strokes,
	            undos             = EXCLUDED.undos,
	            redos             = EXCLUDED.redos,
	            clears            = EXCLUDED.clears`
)

// persist writes one batch in a single transaction. Malformed entries are
// skipped so one bad record cannot wedge the tailer.
func persist(ctx context.Context, db *sql.DB, msgs []redis.XMessage) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, m := range msgs {
		rec, err := activity.Parse(m.Values)
		if err != nil {
			zap.L().Warn("syncactivity.skip", zap.String("id", m.ID), zap.Error(err))
			continue
		}
		switch rec.Kind {
		case activity.Opened:
			_, err = tx.ExecContext(ctx, insOpened, rec.SessionID, rec.RoomID, rec.OpenedAt)
		case activity.Closed:
			_, err = tx.ExecContext(ctx, upsertClosed,
				rec.SessionID, rec.RoomID, rec.OpenedAt, rec.At,
				rec.Peak, rec.Strokes, rec.Undos, rec.Redos, rec.Clears,
			)
		}
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}
