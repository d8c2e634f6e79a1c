// Package steprunner is the client side of the external step orchestrator: the
// synchronous collaborator that sequences a workflow's steps and reports the
// aggregated outcome. Step sequencing itself lives outside this repository.
package steprunner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dukex/conduit/pkg/models"
)

// Result is the orchestrator's terminal response for one execution.
type Result struct {
	Status string `json:"status"`
	// Context is the final execution context; Steps holds per-step outputs
	// keyed by step id.
	Context models.ExecutionContext `json:"context"`
	Error   string                  `json:"error,omitempty"`
	Cause   string                  `json:"cause,omitempty"`
	// FailedStepIndex is the index of the failing step in the workflow's step
	// order, when the orchestrator could determine it.
	FailedStepIndex *int `json:"failed_step_index,omitempty"`
}

// Succeeded reports whether the orchestrator ran every step to completion.
func (r *Result) Succeeded() bool {
	return r.Status == "success"
}

// ErrorMessage combines error and cause into the message recorded on the
// execution.
func (r *Result) ErrorMessage() string {
	if r.Cause == "" {
		return r.Error
	}

	if r.Error == "" {
		return r.Cause
	}

	return r.Error + ": " + r.Cause
}

// Runner invokes the external step orchestrator synchronously. A returned
// error is a hard invocation failure; a reported failed run comes back as a
// Result with a non-success status.
type Runner interface {
	Run(ctx context.Context, input *models.ExecutionInput) (*Result, error)
}

// HTTPRunner posts the execution input to a configured orchestrator endpoint.
type HTTPRunner struct {
	url    string
	client *http.Client
}

// NewHTTPRunner creates a runner for the given endpoint. The timeout bounds
// the whole synchronous run.
func NewHTTPRunner(url string, timeout time.Duration) *HTTPRunner {
	return &HTTPRunner{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (r *HTTPRunner) Run(ctx context.Context, input *models.ExecutionInput) (*Result, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal execution input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build orchestrator request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to invoke step orchestrator: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("step orchestrator returned status %d", resp.StatusCode)
	}

	var result Result

	err = json.NewDecoder(resp.Body).Decode(&result)
	if err != nil {
		return nil, fmt.Errorf("failed to decode orchestrator response: %w", err)
	}

	return &result, nil
}
