package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tinytelemetry/hookwatch/internal/github"
	"github.com/tinytelemetry/hookwatch/internal/metrics"
	"github.com/tinytelemetry/hookwatch/internal/model"
)

const (
	defaultAddr         = "0.0.0.0:5000"
	defaultEventsLimit  = 10
	defaultMaxLimit     = 100
	maxWebhookBodyBytes = 25 << 20 // GitHub caps payloads at 25 MB
)

// Config holds HTTP API options.
type Config struct {
	Addr          string
	WebhookSecret string   // empty = signatures are not checked
	DefaultLimit  int      // /events page size when no limit is given
	MaxLimit      int      // upper bound for ?limit
	CORSOrigins   []string // "*" allows any origin
	MaxBodyBytes  int64    // webhook payload cap, larger bodies get 413
	Metrics       *metrics.Metrics
}

// Server receives GitHub webhooks and serves the stored events.
type Server struct {
	cfg       Config
	store     model.EventStore
	metrics   *metrics.Metrics
	startTime time.Time
	now       func() time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(store model.EventStore, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = defaultMaxLimit
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = defaultEventsLimit
	}
	if cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = cfg.MaxLimit
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = maxWebhookBodyBytes
	}
	return &Server{
		cfg:       cfg,
		store:     store,
		metrics:   cfg.Metrics,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// Handler builds the gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery(), s.observe(), s.cors())

	r.GET("/", s.handleHealth)
	r.POST("/webhook", s.handleWebhook)
	r.GET("/events", s.handleEvents)
	r.GET("/events/detail", s.handleEventsDetail)
	r.GET("/events/summary", s.handleSummary)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})
	return r
}

// Listen binds the configured address.
func (s *Server) Listen() (net.Listener, error) {
	return net.Listen("tcp", s.cfg.Addr)
}

// Serve handles requests on ln until ctx is done, then shuts down
// gracefully and returns nil. Any other serve failure is returned.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
	s.startTime = time.Now()

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("httpserver: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	<-errc
	if err != nil {
		return fmt.Errorf("httpserver: shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	count, err := s.store.TotalEventCount()
	if err != nil {
		log.Printf("httpserver: health: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read health metrics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "running",
		"message":     "Webhook server is running!",
		"timestamp":   s.now().UTC().Format(time.RFC3339),
		"uptime":      time.Since(s.startTime).Round(time.Second).String(),
		"event_count": count,
	})
}

func (s *Server) handleWebhook(c *gin.Context) {
	eventName := c.GetHeader(github.HeaderEvent)

	if !isJSON(c.GetHeader("Content-Type")) {
		s.reject(c, eventName, http.StatusBadRequest, "Content-Type must be application/json")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.reject(c, eventName, http.StatusRequestEntityTooLarge, "Payload too large")
			return
		}
		s.reject(c, eventName, http.StatusBadRequest, "failed to read request body")
		return
	}
	if emptyJSON(body) {
		s.reject(c, eventName, http.StatusBadRequest, "No JSON data received")
		return
	}
	if eventName == "" {
		s.reject(c, eventName, http.StatusBadRequest, "Missing X-GitHub-Event header")
		return
	}
	if s.cfg.WebhookSecret != "" {
		if err := github.VerifySignature(s.cfg.WebhookSecret, body, c.GetHeader(github.HeaderSignature)); err != nil {
			s.metrics.ObserveWebhook(eventName, metrics.StatusRejected)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
			return
		}
	}

	ev, err := github.Translate(eventName, body, s.now())
	switch {
	case errors.Is(err, github.ErrUnsupportedEvent):
		log.Printf("webhook: unhandled event type: %s", eventName)
		s.metrics.ObserveWebhook(eventName, metrics.StatusIgnored)
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": "Unhandled event type: " + eventName})
		return
	case err != nil:
		log.Printf("webhook: %s delivery ignored: %v", eventName, err)
		s.metrics.ObserveWebhook(eventName, metrics.StatusIgnored)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	ev.DeliveryID = c.GetHeader(github.HeaderDelivery)
	if ev.DeliveryID == "" {
		ev.DeliveryID = uuid.NewString()
	}

	inserted, err := s.store.InsertEvents([]*model.Event{ev})
	if err != nil {
		log.Printf("webhook: error processing webhook: %v", err)
		s.metrics.ObserveWebhook(eventName, metrics.StatusFailed)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if inserted == 0 {
		log.Printf("webhook: duplicate delivery %s skipped", ev.DeliveryID)
		s.metrics.ObserveWebhook(eventName, metrics.StatusDuplicate)
	} else {
		log.Printf("webhook: stored event: %s", ev.Type)
		s.metrics.ObserveWebhook(eventName, metrics.StatusStored)
		s.metrics.ObserveStored(ev.Type)
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *Server) reject(c *gin.Context, eventName string, code int, msg string) {
	s.metrics.ObserveWebhook(eventName, metrics.StatusRejected)
	c.JSON(code, gin.H{"error": msg})
}

// handleEvents serves the feed contract: a JSON array of message strings,
// newest first.
func (s *Server) handleEvents(c *gin.Context) {
	q, ok := s.parseQuery(c)
	if !ok {
		return
	}
	events, err := s.store.RecentEvents(q)
	if err != nil {
		log.Printf("httpserver: error retrieving events: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve events"})
		return
	}

	messages := make([]string, 0, len(events))
	for _, ev := range events {
		messages = append(messages, ev.Message)
	}
	c.JSON(http.StatusOK, messages)
}

func (s *Server) handleEventsDetail(c *gin.Context) {
	q, ok := s.parseQuery(c)
	if !ok {
		return
	}
	events, err := s.store.RecentEvents(q)
	if err != nil {
		log.Printf("httpserver: error retrieving events: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
		"limit":  q.Limit,
	})
}

func (s *Server) handleSummary(c *gin.Context) {
	summary, err := s.store.EventSummary()
	if err != nil {
		log.Printf("httpserver: error getting summary: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get summary"})
		return
	}

	var total int64
	for _, tc := range summary {
		total += tc.Count
	}
	c.JSON(http.StatusOK, gin.H{
		"total_events": total,
		"event_types":  summary,
	})
}

// parseQuery reads ?limit and ?type. Limits above MaxLimit are clamped;
// non-numeric or negative limits are rejected.
func (s *Server) parseQuery(c *gin.Context) (model.EventQuery, bool) {
	q := model.EventQuery{
		Limit: s.cfg.DefaultLimit,
		Type:  strings.TrimSpace(c.Query("type")),
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return q, false
		}
		q.Limit = n
	}
	if q.Limit > s.cfg.MaxLimit {
		q.Limit = s.cfg.MaxLimit
	}
	return q, true
}

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.metrics == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveRequest(route, c.Request.Method, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// cors lets the configured browser origins read the API.
func (s *Server) cors() gin.HandlerFunc {
	allowAny := false
	allowed := make(map[string]bool, len(s.cfg.CORSOrigins))
	for _, o := range s.cfg.CORSOrigins {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAny = true
		}
		if o != "" {
			allowed[o] = true
		}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" || (!allowAny && !allowed[origin]) {
			c.Next()
			return
		}

		h := c.Writer.Header()
		if allowAny {
			h.Set("Access-Control-Allow-Origin", "*")
		} else {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Set("Access-Control-Max-Age", "600")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// emptyJSON reports whether body carries no usable data: nothing at all, or
// a falsy JSON value such as null, false, 0, "", {} or [].
func emptyJSON(body []byte) bool {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return true
	}
	if len(body) > 64 {
		return false
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return false
	}
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return !x
	case float64:
		return x == 0
	case string:
		return x == ""
	case map[string]any:
		return len(x) == 0
	case []any:
		return len(x) == 0
	}
	return false
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
