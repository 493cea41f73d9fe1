package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"runtime"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/utils"
)

type Server struct {
	mux *chi.Mux
}

type serverCfg struct {
	memoryLimit uint64
	readMem     ReadMemStatsFn
}

type Option func(*serverCfg)

func WithMemoryLimit(limit uint64) Option {
	return func(cfg *serverCfg) {
		cfg.memoryLimit = limit
	}
}

func WithReadMemStats(fn ReadMemStatsFn) Option {
	return func(cfg *serverCfg) {
		cfg.readMem = fn
	}
}

// runner allows only one run at a time in the process.
type runner struct {
	uc    interfaces.UseCase
	mutex sync.Mutex
}

func New(uc interfaces.UseCase, options ...Option) *Server {
	cfg := &serverCfg{
		memoryLimit: 0,
		readMem:     runtime.ReadMemStats,
	}
	for _, opt := range options {
		opt(cfg)
	}

	rn := &runner{uc: uc}

	route := chi.NewRouter()

	route.Use(Logging)
	route.Use(Authorization(uc))

	route.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		utils.SafeWrite(r.Context(), w, []byte("OK"))
	})

	route.Group(func(r chi.Router) {
		if cfg.memoryLimit > 0 {
			r.Use(MemoryLimit(cfg.memoryLimit, cfg.readMem))
		}

		r.Post("/run", rn.handleRun)
		r.Route("/event", func(r chi.Router) {
			r.Route("/pubsub", func(r chi.Router) {
				r.Post("/run", rn.handlePubSubRun)
			})
		})
	})

	return &Server{
		mux: route,
	}
}

// run executes the pipeline with trigger applied to the base configuration. It returns types.ErrRunInProgress if another run is not finished.
func (x *runner) run(r *http.Request, trigger *model.RunTrigger) (*model.IngestionResult, error) {
	base := x.uc.RunConfig()
	if base == nil {
		return nil, goerr.Wrap(types.ErrInvalidOption, "run config is not set")
	}
	cfg, err := trigger.Apply(base)
	if err != nil {
		return nil, err
	}

	if !x.mutex.TryLock() {
		return nil, goerr.Wrap(types.ErrRunInProgress, "run is rejected")
	}
	defer x.mutex.Unlock()

	return x.uc.Run(r.Context(), cfg)
}

func (x *runner) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var trigger model.RunTrigger
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, r, goerr.Wrap(types.ErrInvalidRequest, "failed to read body", goerr.V("error", err.Error())))
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &trigger); err != nil {
			writeError(w, r, goerr.Wrap(types.ErrInvalidRequest, "failed to unmarshal run trigger", goerr.V("error", err.Error())))
			return
		}
	}

	result, err := x.run(r, &trigger)
	if result == nil {
		writeError(w, r, err)
		return
	}
	if err != nil {
		utils.HandleError(ctx, "run is aborted", err)
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, r, status, result)
}

// handlePubSubRun handles a run trigger pushed by Cloud Pub/Sub. A message is processed at most once until it completes. Redelivered messages are skipped if completed, or rejected with 429 while the run is in progress.
func (x *runner) handlePubSubRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var msg model.PubSubBody
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, r, goerr.Wrap(types.ErrInvalidRequest, "failed to read body", goerr.V("error", err.Error())))
		return
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		writeError(w, r, goerr.Wrap(types.ErrInvalidRequest, "failed to unmarshal body", goerr.V("body", string(body))))
		return
	}
	utils.CtxLogger(ctx).Info("Received pubsub message", "pubsub_msg", msg)

	trigger, err := msg.Message.DecodeTrigger()
	if err != nil {
		writeError(w, r, err)
		return
	}

	_, ctx = utils.CtxRunID(ctx)
	r = r.WithContext(ctx)

	msgID := msg.Message.MessageID
	state, acquired, err := x.uc.GetOrCreateState(ctx, types.MsgPubSub, msgID)
	if err != nil {
		writeError(w, r, goerr.Wrap(err, "failed to get or create state for pubsub"))
		return
	}
	if !acquired {
		if state.State == types.MsgCompleted {
			utils.CtxLogger(ctx).Info("skip pubsub message because it's already completed", "pubsub_msg", msg)
			w.WriteHeader(http.StatusOK)
			utils.SafeWrite(ctx, w, []byte("OK"))
			return
		}

		writeError(w, r, goerr.Wrap(types.ErrRunInProgress, "pubsub message is being processed", goerr.V("message_id", msgID), goerr.V("run_id", state.RunID)))
		return
	}

	utils.CtxLogger(ctx).Info("start run for pubsub message", "message_id", msgID, "run_id", state.RunID, "attempts", state.Attempts)

	msgState := types.MsgFailed
	defer func() {
		if err := x.uc.UpdateState(ctx, types.MsgPubSub, msgID, msgState); err != nil {
			utils.HandleError(ctx, "failed to update state", err)
		}
	}()

	result, err := x.run(r, trigger)
	if result == nil {
		writeError(w, r, err)
		return
	}
	if err != nil {
		utils.HandleError(ctx, "run is aborted", err)
	}

	status := http.StatusOK
	if result.Success {
		msgState = types.MsgCompleted
	} else {
		status = http.StatusInternalServerError
	}
	writeJSON(w, r, status, result)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		writeError(w, r, goerr.Wrap(err, "failed to marshal response"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	utils.SafeWrite(r.Context(), w, raw)
}

// writeError writes an error response. Requests rejected by a running pipeline get 409 on /run and 429 on Pub/Sub push so that Pub/Sub redelivers the message later.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, types.ErrRunInProgress):
		status := http.StatusConflict
		if r.URL.Path != "/run" {
			status = http.StatusTooManyRequests
		}
		utils.CtxLogger(r.Context()).Warn("run is in progress", utils.ErrLog(err))
		http.Error(w, err.Error(), status)

	case errors.Is(err, types.ErrInvalidRequest):
		utils.CtxLogger(r.Context()).Warn("invalid request", utils.ErrLog(err))
		http.Error(w, err.Error(), http.StatusBadRequest)

	default:
		utils.HandleError(r.Context(), "failed to handle request", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (x *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	x.mux.ServeHTTP(w, r)
}
