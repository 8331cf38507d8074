// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/parlorgames/trivia/internal/auth"
	"github.com/parlorgames/trivia/internal/cache"
	"github.com/parlorgames/trivia/internal/database"
	"github.com/parlorgames/trivia/internal/handlers"
	"github.com/parlorgames/trivia/internal/middleware"
	"github.com/parlorgames/trivia/internal/oracle"
	"github.com/parlorgames/trivia/internal/room"
)

func main() {
	auth.Init()
	database.ConnectDB()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	if err := cache.ConnectRedis(); err != nil {
		// the audit queue is best-effort; the session engine runs without it
		logger.Warnf("redis unavailable, room event audit disabled: %v", err)
		cache.Rdb = nil
	}

	var oracleClient room.OracleClient
	if url := os.Getenv("ORACLE_URL"); url != "" {
		oracleClient = oracle.New(url, os.Getenv("ORACLE_API_KEY"))
	} else {
		logger.Info("ORACLE_URL not set, running on the local verdict heuristic only")
	}

	engine := room.NewEngine(
		database.NewRoomStore(),
		database.NewQuestionSource(),
		oracleClient,
		database.NewGuessLog(),
		oracle.LocalVerdict,
	)
	if ms := envInt("ORACLE_TIMEOUT_MS", 3000); ms > 0 {
		engine.OracleTimeout = time.Duration(ms) * time.Millisecond
	}

	sweepMin := envInt("ROOM_IDLE_SWEEP_MIN", 30)
	engine.StartInactivitySweep(context.Background(), time.Duration(sweepMin)*time.Minute, 5*time.Minute)

	rs := handlers.NewRoomServer(engine)

	mux := http.NewServeMux()
	mux.HandleFunc("/", handlers.PingHandler)

	mux.Handle("/room/create", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.CreateRoomHandler(rs),
	)))
	mux.Handle("/room/join", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.JoinRoomHandler(rs),
	)))
	mux.Handle("/room/list", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.ListRoomsHandler(rs),
	)))

	mux.Handle("/room/ws/", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.RoomWSHandler(logger, rs),
	)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func envInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
