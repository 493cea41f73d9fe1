package server

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/utils"
)

// MaxBodySize is the largest request body accepted. Run triggers are small JSON documents.
const MaxBodySize = 1 << 20

// Authorization evaluates every request with the auth policy before routing. The body is read for the policy input and restored for the handler.
func Authorization(uc interfaces.UseCase) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					utils.CtxLogger(ctx).Warn("request body is too large", "limit", humanize.Bytes(MaxBodySize))
					http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
					return
				}
				utils.HandleError(ctx, "failed to read body", goerr.Wrap(err, "failed to read request body"))
				http.Error(w, "Data read error", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			input := &model.AuthPolicyInput{
				Method: r.Method,
				Path:   r.URL.Path,
				Remote: r.RemoteAddr,
				Query:  r.URL.Query(),
				Header: r.Header,
				Body:   string(body),
			}

			if err := uc.Authorize(ctx, input); err != nil {
				utils.CtxLogger(ctx).Warn("request is denied", utils.ErrLog(err), "path", r.URL.Path)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type accessRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *accessRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *accessRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(p)
	r.size += n
	return n, err
}

// Logging binds a request scoped logger to the context and writes one access log per request. A run can take minutes, so the elapsed time is logged too.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		reqID, ctx := utils.CtxRequestID(r.Context())
		logger := utils.CtxLogger(ctx).With(
			slog.Any("request_id", reqID),
			slog.Group("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			),
		)
		ctx = utils.CtxWithLogger(ctx, logger)

		rec := &accessRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(ctx))

		level := slog.LevelInfo
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "http access",
			slog.Int("status", rec.status),
			slog.Int("size", rec.size),
			slog.Duration("elapsed", time.Since(started)),
			slog.String("remote", r.RemoteAddr),
			slog.String("user_agent", r.UserAgent()),
		)
	})
}

type ReadMemStatsFn func(m *runtime.MemStats)

// retryAfter is the value of Retry-After header sent with 429 by MemoryLimit.
const retryAfter = 30 * time.Second

// MemoryLimit rejects a run request with 429 while heap allocation exceeds limit, because one run holds every extracted entity in memory. Pub/Sub redelivers rejected messages.
func MemoryLimit(limit uint64, read ReadMemStatsFn) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var m runtime.MemStats
			read(&m)
			if m.HeapAlloc > limit {
				utils.CtxLogger(r.Context()).Warn("memory limit exceeded, run request is rejected",
					"limit", humanize.Bytes(limit),
					"heap_alloc", humanize.Bytes(m.HeapAlloc),
				)
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
				http.Error(w, "Memory limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
