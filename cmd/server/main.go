package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/worklink/messaging/internal/config"
	"github.com/worklink/messaging/internal/database"
	"github.com/worklink/messaging/internal/directory"
	"github.com/worklink/messaging/internal/notify"
	"github.com/worklink/messaging/internal/realtime"
	postgresrepo "github.com/worklink/messaging/internal/repository/postgres"
	"github.com/worklink/messaging/internal/service"
	"github.com/worklink/messaging/internal/transport/broker"
	"github.com/worklink/messaging/internal/transport/ws"
	"github.com/worklink/messaging/pkg/apperrors"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		logger.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	convRepo := postgresrepo.NewConversationRepo(pool)
	msgRepo := postgresrepo.NewMessageRepo(pool)

	// The platform injects its own profile/job lookup in production; the
	// standalone server runs against the in-memory directory.
	dir := directory.NewStaticDirectory()

	svc := service.NewConversationService(convRepo, msgRepo, dir, logger.With("component", "service"))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})

	// Live transports are optional: with REALTIME_DRIVER=none the fanout
	// stays empty and every publish is a silent no-op.
	var publishers []realtime.Publisher

	if cfg.Realtime == config.RealtimeWS || cfg.Realtime == config.RealtimeBoth {
		hub := ws.NewHub(ws.NewPresence(), logger.With("component", "ws"))
		go hub.Run()
		publishers = append(publishers, ws.NewHubPublisher(hub))
		mux.HandleFunc("GET /ws", ws.ServeWS(hub, cfg.JWTSecret))
	}

	if cfg.Realtime == config.RealtimeRedis || cfg.Realtime == config.RealtimeBoth {
		brk, err := broker.New(cfg.RedisURL, cfg.BrokerAppKey, cfg.BrokerAppSecret, logger.With("component", "broker"))
		if err != nil {
			logger.Error("broker connect failed", "error", err)
			os.Exit(1)
		}
		defer brk.Close()
		publishers = append(publishers, brk)
	}

	fanout := realtime.NewFanout(logger.With("component", "realtime"), publishers...)
	svc.SetTransport(fanout)

	if cfg.NotifyDriver == "asynq" {
		notifier, err := notify.NewAsynqNotifier(cfg.RedisURL, cfg.NotifyQueue)
		if err != nil {
			logger.Error("notifier setup failed", "error", err)
			os.Exit(1)
		}
		defer notifier.Close()
		svc.SetNotifier(notifier)
	}

	mux.HandleFunc("POST /realtime/auth", channelAuthHandler(fanout, cfg.JWTSecret))

	addr := ":" + cfg.ServerPort
	logger.Info("starting server", "addr", addr, "realtime", string(cfg.Realtime))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// channelAuthHandler is the HTTP boundary for broker channel
// authorization: it authenticates the caller, then delegates entitlement
// checks to the transport.
func channelAuthHandler(fanout *realtime.Fanout, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := bearerUserID(r, jwtSecret)
		if err != nil {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}

		var input struct {
			ConnectionID string `json:"connection_id"`
			ChannelName  string `json:"channel_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			http.Error(w, `{"error":"invalid body"}`, http.StatusBadRequest)
			return
		}

		auth, err := fanout.AuthorizeChannel(r.Context(), input.ConnectionID, input.ChannelName, userID, nil)
		if err != nil {
			status := http.StatusForbidden
			if apperrors.CodeOf(err) == apperrors.CodeUnauthorized {
				status = http.StatusUnauthorized
			}
			http.Error(w, `{"error":"channel authorization denied"}`, status)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(auth)
	}
}

func bearerUserID(r *http.Request, secret string) (uuid.UUID, error) {
	header := r.Header.Get("Authorization")
	tokenStr := strings.TrimPrefix(header, "Bearer ")
	if tokenStr == "" || tokenStr == header {
		return uuid.Nil, jwt.ErrTokenMalformed
	}
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	if !token.Valid {
		return uuid.Nil, jwt.ErrTokenUnverifiable
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, jwt.ErrTokenInvalidClaims
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(sub)
}
