package server_test

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/catalogsync/pkg/controller/server"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/usecase"
)

//go:embed testdata/http/pubsub_run.json
var pubsubBody []byte

func baseRunConfig() *model.RunConfig {
	return model.NewRunConfig("snowflake")
}

func TestHealth(t *testing.T) {
	srv := server.New(&usecase.Mock{})
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)

	gt.Equal(t, w.Code, http.StatusOK)
	gt.Equal(t, w.Body.String(), "OK")
}

func TestRun(t *testing.T) {
	testCases := map[string]struct {
		method     string
		path       string
		body       string
		success    bool
		runErr     error
		expect     int
		calledRun  int
		structural bool
		access     bool
	}{
		"run with base config": {
			method:     http.MethodPost,
			path:       "/run",
			success:    true,
			expect:     http.StatusOK,
			calledRun:  1,
			structural: true,
			access:     true,
		},
		"run with trigger": {
			method:     http.MethodPost,
			path:       "/run",
			body:       `{"categories":["access_control"]}`,
			success:    true,
			expect:     http.StatusOK,
			calledRun:  1,
			structural: false,
			access:     true,
		},
		"run with failures": {
			method:     http.MethodPost,
			path:       "/run",
			success:    false,
			expect:     http.StatusInternalServerError,
			calledRun:  1,
			structural: true,
			access:     true,
		},
		"run aborted": {
			method:     http.MethodPost,
			path:       "/run",
			success:    false,
			runErr:     errors.New("warehouse is unreachable"),
			expect:     http.StatusInternalServerError,
			calledRun:  1,
			structural: true,
			access:     true,
		},
		"invalid trigger": {
			method: http.MethodPost,
			path:   "/run",
			body:   `{"categories":["lineage"]}`,
			expect: http.StatusBadRequest,
		},
		"broken json": {
			method: http.MethodPost,
			path:   "/run",
			body:   `{`,
			expect: http.StatusBadRequest,
		},
		"invalid method": {
			method: http.MethodGet,
			path:   "/run",
			expect: http.StatusMethodNotAllowed,
		},
		"invalid path": {
			method: http.MethodPost,
			path:   "/invalid",
			expect: http.StatusNotFound,
		},
	}

	for label, tc := range testCases {
		t.Run(label, func(t *testing.T) {
			var calledRun int
			mock := &usecase.Mock{
				MockRunConfig: baseRunConfig,
				MockRun: func(ctx context.Context, cfg *model.RunConfig) (*model.IngestionResult, error) {
					calledRun++
					gt.Equal(t, cfg.Structural, tc.structural)
					gt.Equal(t, cfg.AccessControl, tc.access)
					return &model.IngestionResult{RunID: "run-1", Success: tc.success}, tc.runErr
				},
			}

			srv := server.New(mock)
			r := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, r)

			gt.Equal(t, w.Code, tc.expect)
			gt.Equal(t, calledRun, tc.calledRun)

			if tc.calledRun > 0 {
				var result model.IngestionResult
				gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
				gt.Equal(t, result.RunID, types.RunID("run-1"))
				gt.Equal(t, result.Success, tc.success)
			}
		})
	}
}

func TestRunNotConfigured(t *testing.T) {
	srv := server.New(&usecase.Mock{})
	r := httptest.NewRequest(http.MethodPost, "/run", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)

	gt.Equal(t, w.Code, http.StatusInternalServerError)
}

func TestRunConflict(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	mock := &usecase.Mock{
		MockRunConfig: baseRunConfig,
		MockRun: func(ctx context.Context, cfg *model.RunConfig) (*model.IngestionResult, error) {
			close(started)
			<-release
			return &model.IngestionResult{Success: true}, nil
		},
	}
	srv := server.New(mock)

	var wg sync.WaitGroup
	first := httptest.NewRecorder()
	wg.Add(1)
	go func() {
		defer wg.Done()
		srv.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/run", nil))
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first run is not started")
	}

	second := httptest.NewRecorder()
	srv.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/run", nil))
	gt.Equal(t, second.Code, http.StatusConflict)

	pubsub := httptest.NewRecorder()
	srv.ServeHTTP(pubsub, httptest.NewRequest(http.MethodPost, "/event/pubsub/run", bytes.NewReader(pubsubBody)))
	gt.Equal(t, pubsub.Code, http.StatusTooManyRequests)

	close(release)
	wg.Wait()
	gt.Equal(t, first.Code, http.StatusOK)
}

func TestPubSubRun(t *testing.T) {
	testCases := map[string]struct {
		body                   []byte
		calledRun              int
		calledUpdateState      int
		calledGetOrCreateState int
		acquired               bool
		returnState            types.MsgState
		updateState            types.MsgState
		success                bool
		expectCode             int
		getOrCreateStateError  error
	}{
		"normal case": {
			body:                   pubsubBody,
			calledRun:              1,
			calledUpdateState:      1,
			calledGetOrCreateState: 1,
			acquired:               true,
			returnState:            types.MsgRunning,
			updateState:            types.MsgCompleted,
			success:                true,
			expectCode:             http.StatusOK,
		},
		"already completed": {
			body:                   pubsubBody,
			calledGetOrCreateState: 1,
			acquired:               false,
			returnState:            types.MsgCompleted,
			expectCode:             http.StatusOK,
		},
		"already running": {
			body:                   pubsubBody,
			calledGetOrCreateState: 1,
			acquired:               false,
			returnState:            types.MsgRunning,
			expectCode:             http.StatusTooManyRequests,
		},
		"error on get or create state": {
			body:                   pubsubBody,
			calledGetOrCreateState: 1,
			getOrCreateStateError:  errors.New("some error"),
			expectCode:             http.StatusInternalServerError,
		},
		"run with failures": {
			body:                   pubsubBody,
			calledRun:              1,
			calledUpdateState:      1,
			calledGetOrCreateState: 1,
			acquired:               true,
			returnState:            types.MsgRunning,
			updateState:            types.MsgFailed,
			success:                false,
			expectCode:             http.StatusInternalServerError,
		},
		"invalid body": {
			body:       []byte("invalid"),
			expectCode: http.StatusBadRequest,
		},
	}

	for label, tc := range testCases {
		t.Run(label, func(t *testing.T) {
			var calledGetOrCreateState, calledUpdateState, calledRun int
			now := time.Now()
			msgID := "10509751019207081"
			mock := &usecase.Mock{
				MockRunConfig: baseRunConfig,
				MockRun: func(ctx context.Context, cfg *model.RunConfig) (*model.IngestionResult, error) {
					calledRun++
					// trigger in the message selects structural only with fail-fast
					gt.True(t, cfg.Structural)
					gt.False(t, cfg.AccessControl)
					gt.True(t, cfg.FailFast)
					return &model.IngestionResult{Success: tc.success}, nil
				},
				MockGetOrCreateState: func(ctx context.Context, msgType types.MsgType, id string) (*model.State, bool, error) {
					calledGetOrCreateState++
					gt.Equal(t, types.MsgPubSub, msgType)
					gt.Equal(t, id, msgID)
					return &model.State{
						ID:        id,
						State:     tc.returnState,
						RequestID: types.NewRequestID(),
						CreatedAt: now,
						UpdatedAt: now,
						ExpiresAt: now.Add(1 * time.Second),
					}, tc.acquired, tc.getOrCreateStateError
				},
				MockUpdateState: func(ctx context.Context, msgType types.MsgType, id string, state types.MsgState) error {
					calledUpdateState++
					gt.Equal(t, id, msgID)
					gt.Equal(t, tc.updateState, state)
					return nil
				},
			}

			srv := server.New(mock)
			r := httptest.NewRequest(http.MethodPost, "/event/pubsub/run", bytes.NewReader(tc.body))
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, r)

			gt.Equal(t, w.Code, tc.expectCode)
			gt.Equal(t, calledRun, tc.calledRun)
			gt.Equal(t, calledGetOrCreateState, tc.calledGetOrCreateState)
			gt.Equal(t, calledUpdateState, tc.calledUpdateState)
		})
	}
}
