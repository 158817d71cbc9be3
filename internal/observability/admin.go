package observability

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const defaultSessionHistory = 64

// SessionRecord is the admin view of one finished mock session.
type SessionRecord struct {
	ID       string        `json:"id"`
	Port     int           `json:"port"`
	State    string        `json:"state"`
	Received int           `json:"received"`
	Sent     int           `json:"sent"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// SessionBook keeps the most recent session records, oldest first.
type SessionBook struct {
	mu      sync.Mutex
	limit   int
	records []SessionRecord
}

func NewSessionBook(limit int) *SessionBook {
	if limit <= 0 {
		limit = defaultSessionHistory
	}
	return &SessionBook{limit: limit}
}

func (b *SessionBook) Add(rec SessionRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, rec)
	if over := len(b.records) - b.limit; over > 0 {
		b.records = append([]SessionRecord(nil), b.records[over:]...)
	}
}

func (b *SessionBook) List() []SessionRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]SessionRecord, len(b.records))
	copy(out, b.records)
	return out
}

// AdminConfig configures the optional HTTP admin surface.
type AdminConfig struct {
	Node        string
	CORSOrigins []string
}

// NewAdminRouter serves /health, /metrics and /sessions.
func NewAdminRouter(cfg AdminConfig, book *SessionBook) *gin.Engine {
	RegisterMetrics()
	if cfg.Node == "" {
		cfg.Node = "tcpbmock"
	}
	if book == nil {
		book = NewSessionBook(0)
	}
	started := time.Now()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log.Logger))
	r.Use(RequestMetricsMiddleware(cfg.Node))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CORSOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(started).String(),
			"service": cfg.Node,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": book.List()})
	})
	return r
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost", "http://127.0.0.1"}
	}
	return out
}
