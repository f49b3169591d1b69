package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	appinstruments "main/internal/application/service/instruments"
	domain "main/internal/domain/entity/instruments"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const tickersBasePath = "/api/v1/tickers"

type Handler struct {
	router      *gin.Engine
	instruments *appinstruments.Service
	cache       *redis.Client
	cacheTTL    time.Duration
}

func NewHandler(inst *appinstruments.Service, cache *redis.Client, cacheTTL time.Duration) *Handler {
	router := gin.New()
	router.Use(gin.Recovery())

	h := &Handler{
		router:      router,
		instruments: inst,
		cache:       cache,
		cacheTTL:    cacheTTL,
	}
	h.registerRoutes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	tickers := h.router.Group(tickersBasePath)
	if h.cache != nil {
		tickers.Use(h.cacheMiddleware())
	}
	{
		tickers.GET("", h.listTickers)
	}
}

type tickerResponse struct {
	Ticker    string    `json:"ticker"`
	Name      *string   `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toTickerResponse(instrument domain.Instrument) tickerResponse {
	return tickerResponse{
		Ticker:    instrument.Ticker,
		Name:      instrument.Name,
		IsActive:  instrument.IsActive,
		CreatedAt: instrument.CreatedAt,
		UpdatedAt: instrument.UpdatedAt,
	}
}

// listTickers returns every registered ticker, active or not. Pure
// pass-through over the registry.
func (h *Handler) listTickers(c *gin.Context) {
	all, err := h.instruments.ListAll(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	response := make([]tickerResponse, 0, len(all))
	for _, instrument := range all {
		response = append(response, toTickerResponse(instrument))
	}
	c.JSON(http.StatusOK, response)
}

func (h *Handler) cacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.cache == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := h.cacheKey(c)
		ctx := c.Request.Context()

		if cached, err := h.cache.Get(ctx, key).Result(); err == nil {
			c.Data(http.StatusOK, "application/json", []byte(cached))
			c.Abort()
			return
		}

		recorder := &responseRecorder{
			ResponseWriter: c.Writer,
			status:         http.StatusOK,
			body:           &bytes.Buffer{},
		}
		c.Writer = recorder

		c.Next()

		if recorder.status >= 200 && recorder.status < 300 && recorder.body.Len() > 0 {
			_ = h.cache.Set(ctx, key, recorder.body.Bytes(), h.cacheTTL).Err()
		}
	}
}

type responseRecorder struct {
	gin.ResponseWriter
	body   *bytes.Buffer
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	if len(data) > 0 {
		r.body.Write(data)
	}
	return r.ResponseWriter.Write(data)
}

func (h *Handler) cacheKey(c *gin.Context) string {
	return fmt.Sprintf("cache:%s:%s?%s", c.Request.Method, c.FullPath(), c.Request.URL.RawQuery)
}

func writeError(c *gin.Context, status int, err error) {
	if err == nil {
		status = http.StatusInternalServerError
		err = errors.New("unknown error")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
