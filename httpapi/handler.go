// Package httpapi 暴露 Feed 排序的 HTTP 接口。
//
//	GET  /v0/feed?userId=&limit=&offset=&ignoreContractIds=a,b&blockedUserIds=&blockedGroupIds=&blockedContractIds=
//	POST /v0/feed   body: core.FeedRequest
//	GET  /v0/trending/status
//	GET  /healthz
//	GET  /metrics
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/pkg/conv"
)

// 请求参数默认值。
const (
	DefaultLimit   = 5
	MaxLimit       = 50
	DefaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// Ranker 是 feed.Engine 的最小接口。
type Ranker interface {
	Rank(ctx context.Context, req *core.FeedRequest) (*core.FeedResult, error)
}

// TrendingStatusReader 读取热门话题快照元数据，由 topic.StoreTrending 实现。
type TrendingStatusReader interface {
	Status(ctx context.Context) (*core.TrendingStatus, error)
}

// Options 是 Handler 的参数，零值使用默认值。
type Options struct {
	DefaultLimit int
	MaxLimit     int
	Timeout      time.Duration

	// RateLimit 是每个客户端 IP 每分钟允许的 Feed 请求数，0 表示不限流
	RateLimit int

	// Trending 非 nil 时挂载 /v0/trending/status
	Trending TrendingStatusReader

	// Gatherer 为 nil 时 /metrics 使用 prometheus.DefaultGatherer
	Gatherer prometheus.Gatherer
}

// Handler 处理 Feed 请求。
type Handler struct {
	ranker Ranker
	opts   Options
	logger zerolog.Logger
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHandler(ranker Ranker, opts Options, logger zerolog.Logger) *Handler {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = MaxLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Handler{
		ranker: ranker,
		opts:   opts,
		logger: logger.With().Str("component", "httpapi").Logger(),
	}
}

// Router 返回挂载了全部路由的 chi Router。
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok")
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.opts.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/v0", func(r chi.Router) {
		if h.opts.RateLimit > 0 {
			r.Use(httprate.LimitByIP(h.opts.RateLimit, time.Minute))
		}
		r.Get("/feed", h.getFeed)
		r.Post("/feed", h.postFeed)
		if h.opts.Trending != nil {
			r.Get("/trending/status", h.trendingStatus)
		}
	})
	return r
}

func (h *Handler) getFeed(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseQuery(r)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "INVALID_INPUT", err)
		return
	}
	h.rank(w, r, req)
}

func (h *Handler) postFeed(w http.ResponseWriter, r *http.Request) {
	req := &core.FeedRequest{}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "INVALID_INPUT", fmt.Errorf("decode body: %w", err))
		return
	}
	if req.Limit == 0 {
		req.Limit = h.opts.DefaultLimit
	}
	if err := h.checkWindow(req.Limit, req.Offset); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "INVALID_INPUT", err)
		return
	}
	h.rank(w, r, req)
}

func (h *Handler) rank(w http.ResponseWriter, r *http.Request, req *core.FeedRequest) {
	if req.RequestID == "" {
		req.RequestID = middleware.GetReqID(r.Context())
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.Timeout)
	defer cancel()

	res, err := h.ranker.Rank(ctx, req)
	if err != nil {
		if core.IsInvalidInput(err) {
			h.respondError(w, r, http.StatusBadRequest, "INVALID_INPUT", err)
			return
		}
		if core.IsUnavailable(err) {
			h.respondError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", err)
			return
		}
		h.respondError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handler) trendingStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.opts.Trending.Status(r.Context())
	if err != nil {
		if core.IsStoreNotFound(err) {
			h.respondError(w, r, http.StatusNotFound, "NOT_FOUND", errors.New("trending topics not refreshed yet"))
			return
		}
		h.respondError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// parseQuery 解析 GET 参数。列表参数以逗号分隔。
func (h *Handler) parseQuery(r *http.Request) (*core.FeedRequest, error) {
	q := r.URL.Query()
	req := &core.FeedRequest{
		UserID:             q.Get("userId"),
		Limit:              h.opts.DefaultLimit,
		IgnoreContractIDs:  conv.Strings(q.Get("ignoreContractIds")),
		BlockedUserIDs:     conv.Strings(q.Get("blockedUserIds")),
		BlockedGroupIDs:    conv.Strings(q.Get("blockedGroupIds")),
		BlockedContractIDs: conv.Strings(q.Get("blockedContractIds")),
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("limit: %w", err)
		}
		req.Limit = n
	}
	if s := q.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("offset: %w", err)
		}
		req.Offset = n
	}
	if err := h.checkWindow(req.Limit, req.Offset); err != nil {
		return nil, err
	}
	return req, nil
}

func (h *Handler) checkWindow(limit, offset int) error {
	if limit <= 0 || limit > h.opts.MaxLimit {
		return fmt.Errorf("limit must be in (0, %d], got %d", h.opts.MaxLimit, limit)
	}
	if offset < 0 {
		return fmt.Errorf("offset must be non-negative, got %d", offset)
	}
	return nil
}

type errorBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId,omitempty"`
	} `json:"error"`
}

// respondError 写错误响应。5xx 只返回通用消息，细节写日志。
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, status int, code string, err error) {
	var body errorBody
	body.Error.Code = code
	body.Error.RequestID = middleware.GetReqID(r.Context())
	if status >= http.StatusInternalServerError {
		body.Error.Message = "internal error"
		h.logger.Error().Err(err).Str("request_id", body.Error.RequestID).Str("path", r.URL.Path).Msg("request failed")
	} else {
		body.Error.Message = err.Error()
		var de *core.DomainError
		if errors.As(err, &de) {
			body.Error.Message = de.Message
		}
	}
	respondJSON(w, status, &body)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
