package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/lesson-reconciler/api"
	"github.com/warp/lesson-reconciler/notify"
	"github.com/warp/lesson-reconciler/reconcile"
	"github.com/warp/lesson-reconciler/store/sqlite"
)

// newTestAPI wires a router over an in-memory store and a driver with an
// empty staff roster (the gateway is never reached).
func newTestAPI(t *testing.T) (*chiRouterWrapper, *sqlite.Store, *api.DailyScheduler) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	driver := &reconcile.Driver{
		Notifier: &notify.ConsoleNotifier{Log: zap.NewNop()},
		Log:      zap.NewNop(),
	}
	scheduler := api.NewDailyScheduler(driver, store, zap.NewNop())
	handler := api.NewHandler(store, scheduler, zap.NewNop())
	return &chiRouterWrapper{handler: api.NewRouter(handler)}, store, scheduler
}

type chiRouterWrapper struct{ handler http.Handler }

func (w *chiRouterWrapper) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	w.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func (w *chiRouterWrapper) post(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	w.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	router, _, _ := newTestAPI(t)

	rec := router.get(t, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestListRuns(t *testing.T) {
	router, store, _ := newTestAPI(t)

	completed := time.Date(2026, time.January, 15, 6, 3, 0, 0, time.UTC)
	require.NoError(t, store.SaveRun(context.Background(), sqlite.RunRecord{
		ID:               "run-1",
		Status:           sqlite.RunCompleted,
		StartedAt:        time.Date(2026, time.January, 15, 6, 0, 0, 0, time.UTC),
		CompletedAt:      &completed,
		ClientsProcessed: 8,
		LessonsPaid:      3,
	}))

	rec := router.get(t, "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0]["id"])
	assert.Equal(t, "completed", runs[0]["status"])
	assert.Equal(t, float64(3), runs[0]["lessonsPaid"])
}

func TestListRuns_BadLimit(t *testing.T) {
	router, _, _ := newTestAPI(t)

	rec := router.get(t, "/api/runs?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerRun_Accepted(t *testing.T) {
	router, _, _ := newTestAPI(t)

	rec := router.post(t, "/api/runs/trigger")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"status": "triggered"}`, rec.Body.String())
}

func TestSchedulerExecute_PersistsRunRecord(t *testing.T) {
	// GIVEN: A driver with no staff (trivially successful run)
	// WHEN: Executing via the scheduler
	// THEN: A completed run record exists and the day reads as done

	_, store, scheduler := newTestAPI(t)

	require.NoError(t, scheduler.Execute(context.Background()))

	runs, err := store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, sqlite.RunCompleted, runs[0].Status)
	require.NotNil(t, runs[0].CompletedAt)

	done, err := store.HasCompletedRunOn(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, done)
}
