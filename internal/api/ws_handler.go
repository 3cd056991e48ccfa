package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"adBuilder/internal/notify"
)

type redisSubscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// WsHandler 负责把广告通知（导出结果、价格变化、状态流转）转发给浏览器。
type WsHandler struct {
	redisClient    redisSubscriber
	logger         *slog.Logger
	upgrader       websocket.Upgrader
	allowedOrigins []string
}

// NewWsHandler 构造 WebSocket 处理器。
func NewWsHandler(redisClient redisSubscriber, logger *slog.Logger, allowedOrigins []string) *WsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &WsHandler{
		redisClient:    redisClient,
		logger:         logger,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if len(h.allowedOrigins) == 0 {
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}
	return h
}

type wsSubscribeMessage struct {
	Type string `json:"type"`
	AdID string `json:"ad_id"`
}

// HandleConnection 负责升级连接并启动读写循环。
// 客户端的第一条消息必须是 {"type":"subscribe","ad_id":"..."}。
func (h *WsHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	baseLog := h.logger.With(
		slog.String("client_ip", c.ClientIP()),
	)

	adIDCh := make(chan string, 1)
	errCh := make(chan error, 2)

	go h.readLoop(ctx, conn, adIDCh, errCh, cancel)

	var adID string
	select {
	case <-ctx.Done():
		return
	case err := <-errCh:
		if err != nil {
			baseLog.Warn("websocket subscribe failed", slog.Any("error", err))
		}
		return
	case adID = <-adIDCh:
	}

	adLog := baseLog.With(slog.String("ad_id", adID))
	go h.subscribeLoop(ctx, conn, adID, errCh, cancel, adLog)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			adLog.Info("websocket connection closed", slog.Any("error", err))
		} else {
			adLog.Info("websocket connection closed")
		}
	}
}

func (h *WsHandler) readLoop(
	ctx context.Context,
	conn *websocket.Conn,
	adIDCh chan<- string,
	errCh chan<- error,
	cancel context.CancelFunc,
) {
	subscribed := false

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			writeClose(conn, websocket.CloseAbnormalClosure, "read error")
			errCh <- fmt.Errorf("read message: %w", err)
			cancel()
			return
		}

		if !subscribed {
			var msg wsSubscribeMessage
			if err := json.Unmarshal(message, &msg); err != nil {
				writeClose(conn, websocket.ClosePolicyViolation, "invalid subscribe payload")
				errCh <- fmt.Errorf("decode subscribe payload: %w", err)
				cancel()
				return
			}
			adID := strings.TrimSpace(msg.AdID)
			if msg.Type != "subscribe" || adID == "" || len(adID) > 64 {
				writeClose(conn, websocket.ClosePolicyViolation, "subscribe required")
				errCh <- fmt.Errorf("invalid subscribe message")
				cancel()
				return
			}
			subscribed = true
			adIDCh <- adID
			continue
		}

		// 订阅后客户端消息被忽略，循环只用于检测断开。
	}
}

func writeClose(conn *websocket.Conn, code int, text string) {
	deadline := time.Now().Add(5 * time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
}

func (h *WsHandler) subscribeLoop(
	ctx context.Context,
	conn *websocket.Conn,
	adID string,
	errCh chan<- error,
	cancel context.CancelFunc,
	log *slog.Logger,
) {
	channel := notify.Channel(adID)
	pubsub := h.redisClient.Subscribe(ctx, channel)
	defer pubsub.Close()

	log.Info("subscribed to redis channel", slog.String("channel", channel))

	ch := pubsub.Channel()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				errCh <- fmt.Errorf("pubsub channel closed")
				cancel()
				return
			}

			log.Debug("forwarding message to client", slog.String("channel", channel))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				errCh <- fmt.Errorf("write message: %w", err)
				cancel()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				errCh <- fmt.Errorf("write ping: %w", err)
				cancel()
				return
			}
		}
	}
}
