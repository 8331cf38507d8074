// cmd/auditor/main.go is an asynchronous audit service that pops room event
// records from a Redis queue and persists them to a PostgreSQL database.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/parlorgames/trivia/internal/database"
	"github.com/redis/go-redis/v9"
)

// RoomEventRecord mirrors the queue payload published by the session engine.
type RoomEventRecord struct {
	RoomCode    string                 `json:"room_code"`
	ActorUserID uuid.UUID              `json:"actor_user_id"`
	EventType   string                 `json:"event_type"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	Timestamp   int64                  `json:"timestamp"`
}

// AuditorService encapsulates the Redis + DB logic for capturing room events.
// Events are accumulated in memory and flushed in batches.
type AuditorService struct {
	redisClient *redis.Client
	batchSize   int
	flushDelay  time.Duration

	batchMu  sync.Mutex
	batch    []RoomEventRecord
	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewAuditorService constructs an AuditorService from environment variables or defaults.
func NewAuditorService() *AuditorService {
	batchSize := getEnvInt("AUDITOR_BATCH_SIZE", 20)
	flushMs := getEnvInt("AUDITOR_FLUSH_MS", 500)

	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &AuditorService{
		redisClient: rdb,
		batchSize:   batchSize,
		flushDelay:  time.Duration(flushMs) * time.Millisecond,
		batch:       make([]RoomEventRecord, 0, batchSize),
		ctx:         ctx,
		cancelFn:    cancel,
	}
}

// Run connects to the database and starts the queue-draining loop.
func (as *AuditorService) Run() {
	database.ConnectDB()

	go as.readRedisLoop()

	log.Println("trivia-auditor service started.")
	<-as.ctx.Done()
	log.Println("trivia-auditor shutting down.")
}

// readRedisLoop continuously uses BLPop to retrieve records from the Redis queue.
func (as *AuditorService) readRedisLoop() {
	ticker := time.NewTicker(as.flushDelay)
	defer ticker.Stop()

	queueName := getEnv("EVENT_QUEUE_NAME", "trivia_room_events")

	for {
		select {
		case <-as.ctx.Done():
			as.flushBatchToDB()
			return

		case <-ticker.C:
			as.flushBatchToDB()

		default:
			// BLPop with a 3-second timeout so context cancellation is handled.
			res, err := as.redisClient.BLPop(as.ctx, 3*time.Second, queueName).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				log.Printf("[ERROR] BLPop: %v\n", err)
				continue
			}
			if len(res) < 2 {
				continue
			}

			// res[0] is the queue name and res[1] the payload.
			var record RoomEventRecord
			if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
				log.Printf("invalid room event record: %v\n", err)
				continue
			}
			as.appendToBatch(record)
		}
	}
}

// appendToBatch adds a record to the in-memory batch and flushes at the threshold.
func (as *AuditorService) appendToBatch(record RoomEventRecord) {
	as.batchMu.Lock()
	defer as.batchMu.Unlock()

	as.batch = append(as.batch, record)
	if len(as.batch) >= as.batchSize {
		as.flushBatchLocked()
	}
}

// flushBatchToDB flushes the current batch to the database in a single transaction.
func (as *AuditorService) flushBatchToDB() {
	as.batchMu.Lock()
	defer as.batchMu.Unlock()
	as.flushBatchLocked()
}

func (as *AuditorService) flushBatchLocked() {
	if len(as.batch) == 0 {
		return
	}
	batchCopy := make([]RoomEventRecord, len(as.batch))
	copy(batchCopy, as.batch)
	as.batch = as.batch[:0]

	ctx := context.Background()
	err := beginTxFunc(ctx, database.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range batchCopy {
			if err := insertRoomEventTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insertRoomEventTx: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("[ERROR] flushBatchToDB: %v\n", err)
	} else {
		log.Printf("Flushed %d room events to DB.\n", len(batchCopy))
	}
}

// insertRoomEventTx inserts a single event record into the room_events table.
//
// Schema:
//
//	CREATE TABLE room_events (
//	    id            BIGSERIAL PRIMARY KEY,
//	    room_code     TEXT NOT NULL,
//	    actor_user_id UUID,
//	    event_type    TEXT NOT NULL,
//	    payload       JSONB,
//	    occurred_at   TIMESTAMPTZ NOT NULL
//	);
func insertRoomEventTx(ctx context.Context, tx pgx.Tx, rec RoomEventRecord) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return err
	}
	q := `
		INSERT INTO room_events (room_code, actor_user_id, event_type, payload, occurred_at)
		VALUES ($1, $2, $3, $4, to_timestamp($5 / 1000.0))
	`
	_, err = tx.Exec(ctx, q, rec.RoomCode, rec.ActorUserID, rec.EventType, payload, rec.Timestamp)
	return err
}

// beginTxFunc starts a transaction on the pool, calls f, and commits or rolls
// back as needed.
func beginTxFunc(ctx context.Context, pool *pgxpool.Pool, txOptions pgx.TxOptions, f func(tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx rollback error: %v; original error: %w", rbErr, err)
		}
		return err
	}
	return tx.Commit(ctx)
}

// Stop gracefully stops the auditor service.
func (as *AuditorService) Stop() {
	as.cancelFn()
}

func main() {
	as := NewAuditorService()
	go as.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	<-sigChan
	as.Stop()
	log.Println("Auditor shutdown complete.")
}

// getEnv retrieves an environment variable's value or returns a default.
func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

// getEnvInt retrieves an integer from an environment variable or returns a default.
func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}
