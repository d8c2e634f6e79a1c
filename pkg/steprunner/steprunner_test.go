package steprunner

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/conduit/pkg/models"
)

func TestHTTPRunner_Run(t *testing.T) {
	t.Parallel()

	input := &models.ExecutionInput{
		ExecutionID: "ex_01TEST",
		WorkflowID:  "wf-1",
		Workflow: &models.Workflow{
			ID:      "wf-1",
			Name:    "Runner Test",
			Enabled: true,
			Trigger: models.Trigger{Kind: models.TriggerManual},
		},
		Context: models.ExecutionContext{
			Trigger: map[string]any{"source": "test"},
			Steps:   map[string]map[string]any{},
			Secrets: map[string]string{"token": "t"},
		},
	}

	t.Run("decodes a successful run", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var received models.ExecutionInput
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			assert.Equal(t, "ex_01TEST", received.ExecutionID)

			_ = json.NewEncoder(w).Encode(Result{
				Status: "success",
				Context: models.ExecutionContext{
					Steps: map[string]map[string]any{
						"fetch": {"status": float64(200)},
					},
				},
			})
		}))
		defer server.Close()

		runner := NewHTTPRunner(server.URL, 5*time.Second)

		result, err := runner.Run(t.Context(), input)
		require.NoError(t, err)
		assert.True(t, result.Succeeded())
		assert.Equal(t, float64(200), result.Context.Steps["fetch"]["status"])
	})

	t.Run("decodes a reported failure", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			idx := 1
			_ = json.NewEncoder(w).Encode(Result{
				Status:          "failed",
				Error:           "States.TaskFailed",
				Cause:           "connection refused",
				FailedStepIndex: &idx,
			})
		}))
		defer server.Close()

		runner := NewHTTPRunner(server.URL, 5*time.Second)

		result, err := runner.Run(t.Context(), input)
		require.NoError(t, err)
		assert.False(t, result.Succeeded())
		assert.Equal(t, "States.TaskFailed: connection refused", result.ErrorMessage())
		require.NotNil(t, result.FailedStepIndex)
		assert.Equal(t, 1, *result.FailedStepIndex)
	})

	t.Run("non-2xx is a hard invocation failure", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer server.Close()

		runner := NewHTTPRunner(server.URL, 5*time.Second)

		_, err := runner.Run(t.Context(), input)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "500")
	})

	t.Run("unreachable endpoint is a hard invocation failure", func(t *testing.T) {
		t.Parallel()

		runner := NewHTTPRunner("http://127.0.0.1:1", 500*time.Millisecond)

		_, err := runner.Run(t.Context(), input)
		require.Error(t, err)
	})
}

func TestResult_ErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "boom", (&Result{Error: "boom"}).ErrorMessage())
	assert.Equal(t, "cause only", (&Result{Cause: "cause only"}).ErrorMessage())
	assert.Equal(t, "", (&Result{}).ErrorMessage())
}
