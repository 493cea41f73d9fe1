package usecase_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/infra"
	"github.com/secmon-lab/catalogsync/pkg/infra/datahub"
	"github.com/secmon-lab/catalogsync/pkg/usecase"
	"github.com/secmon-lab/catalogsync/pkg/utils"
)

func TestRunRetryTransientOverHTTP(t *testing.T) {
	var calls atomic.Int32
	var mutex sync.Mutex
	delivered := map[string]struct{}{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}

		gt.Equal(t, r.Method, http.MethodPost)
		gt.Equal(t, r.URL.Path, "/entities")
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		var req model.IngestRequest
		body, err := io.ReadAll(r.Body)
		gt.NoError(t, err)
		gt.NoError(t, json.Unmarshal(body, &req))
		mutex.Lock()
		for _, e := range req.Elements {
			delivered[string(e.EntityURN)] = struct{}{}
		}
		mutex.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	catalog, err := datahub.New(srv.URL, datahub.WithRateLimit(0))
	gt.NoError(t, err)

	clients := infra.New(
		infra.WithWarehouse(usersWarehouse(userRows(50))),
		infra.WithCatalog(catalog),
	)
	uc := usecase.New(clients, usecase.WithBackoff(noBackoff))

	result := gt.R1(uc.Run(context.Background(), accessControlConfig())).NoError(t)

	users := result.Kind(types.KindUser)
	gt.Equal(t, calls.Load(), int32(3))
	gt.Equal(t, users.Attempted, 50)
	gt.Equal(t, users.Succeeded, 50)
	gt.Equal(t, users.Failed, 0)
	gt.Equal(t, users.Retries, 2)
	gt.Equal(t, len(delivered), 50)
	gt.True(t, result.Success)
}

type syncBuffer struct {
	mutex sync.Mutex
	buf   bytes.Buffer
}

func (x *syncBuffer) Write(p []byte) (int, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return x.buf.Write(p)
}

func (x *syncBuffer) String() string {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return x.buf.String()
}

func TestRunLogsCategoryOnce(t *testing.T) {
	var out syncBuffer
	logger := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := utils.CtxWithLogger(context.Background(), logger)

	uc := newUseCase(usersWarehouse(userRows(3), "admin"), &datahub.Mock{})
	result := gt.R1(uc.Run(ctx, accessControlConfig())).NoError(t)
	gt.True(t, result.Success)

	var found int
	for _, line := range strings.Split(out.String(), "\n") {
		if !strings.Contains(line, `msg="ingesting entities"`) {
			continue
		}
		found++
		gt.Equal(t, strings.Count(line, "category="), 1)
	}
	gt.True(t, found > 0)
}
