package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/xhad/docqa/internal/logger"
	"github.com/xhad/docqa/pkg/pipeline"
	"github.com/xhad/docqa/pkg/scraper"
)

const (
	MessageQuery    = "query"
	MessageCrawl    = "crawl"
	MessageStatus   = "status"
	MessageProgress = "progress"
	MessageStream   = "stream"
	MessageSources  = "sources"
	MessageResponse = "response"
	MessageError    = "error"
)

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

type Message struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	SessionID string `json:"session_id,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
	log  *slog.Logger
}

func (w *wsConn) send(ctx context.Context, msg Message) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteJSON(msg); err != nil {
		w.log.WarnContext(ctx, "ws_send_failed", slog.String("type", msg.Type), slog.String("error", err.Error()))
	}
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(s.config.AllowedOrigins) == 0 {
				return true
			}
			for _, allowed := range s.config.AllowedOrigins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			return false
		},
	}
}

// handleWebSocket answers queries with streamed tokens and runs crawls with
// progress updates. Messages on one connection are handled in order.
func (s *Server) handleWebSocket(c echo.Context) error {
	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Warn("ws_upgrade_failed", slog.String("error", err.Error()))
		return nil
	}
	defer conn.Close()

	ctx := c.Request().Context()
	defaultSession := uuid.NewString()
	ws := &wsConn{conn: conn, log: s.log}

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				s.log.DebugContext(ctx, "ws_read_failed", slog.String("error", err.Error()))
			}
			return nil
		}

		if msg.SessionID == "" {
			msg.SessionID = defaultSession
		}
		msgCtx := logger.WithSessionID(ctx, msg.SessionID)

		switch msg.Type {
		case MessageQuery, "":
			s.wsQuery(msgCtx, ws, msg)
		case MessageCrawl:
			s.wsCrawl(msgCtx, ws, msg)
		default:
			ws.send(msgCtx, Message{Type: MessageError, Content: fmt.Sprintf("unknown message type %q", msg.Type)})
		}
	}
}

func (s *Server) wsQuery(ctx context.Context, ws *wsConn, msg Message) {
	ws.send(ctx, Message{Type: MessageStatus, Content: "Searching documents...", SessionID: msg.SessionID})

	result, err := s.querier.Stream(ctx, pipeline.QueryRequest{
		Question:  msg.Content,
		SessionID: msg.SessionID,
	}, func(token string) {
		ws.send(ctx, Message{Type: MessageStream, Content: token})
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyQuestion) {
			ws.send(ctx, Message{Type: MessageError, Content: err.Error()})
			return
		}
		s.log.ErrorContext(ctx, "ws_query_failed", slog.String("error", err.Error()))
		ws.send(ctx, Message{Type: MessageError, Content: "failed to answer question"})
		return
	}

	ws.send(ctx, Message{Type: MessageSources, Data: result.Sources})
	ws.send(ctx, Message{Type: MessageResponse, Content: result.Answer, SessionID: msg.SessionID})
}

// wsCrawl scrapes the first URL in the message and ingests every page.
func (s *Server) wsCrawl(ctx context.Context, ws *wsConn, msg Message) {
	target := urlPattern.FindString(msg.Content)
	if target == "" {
		ws.send(ctx, Message{Type: MessageError, Content: "crawl needs an http(s) URL"})
		return
	}
	ws.send(ctx, Message{Type: MessageStatus, Content: fmt.Sprintf("Processing URL: %s", target)})

	cfg := s.config.Crawl
	cfg.BaseURL = target
	cfg.Logger = s.log
	processed := 0
	cfg.OnProgress = func(string) {
		processed++
		ws.send(ctx, Message{Type: MessageProgress, Content: fmt.Sprintf("Scraped %d pages", processed)})
	}

	sc, err := scraper.NewWithConfig(cfg)
	if err != nil {
		ws.send(ctx, Message{Type: MessageError, Content: fmt.Sprintf("Failed to initialize scraper: %v", err)})
		return
	}

	docs, err := sc.Scrape(ctx)
	if err != nil {
		ws.send(ctx, Message{Type: MessageError, Content: fmt.Sprintf("Failed to scrape URL: %v", err)})
		return
	}

	chunks := 0
	for _, doc := range docs {
		res, err := s.ingester.IngestDocument(ctx, doc)
		if err != nil {
			s.log.WarnContext(ctx, "crawl_ingest_failed", slog.String("source", doc.Source), slog.String("error", err.Error()))
			continue
		}
		chunks += res.ChunksIndexed
	}

	ws.send(ctx, Message{
		Type:    MessageStatus,
		Content: fmt.Sprintf("Indexed %d chunks from %d documents", chunks, len(docs)),
		Data:    map[string]int{"documents": len(docs), "chunks_indexed": chunks},
	})
}
