// Package service exposes the orchestration API over HTTP: starting a bulk
// transformation and polling its status.
package service

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	enums "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"

	"go.stacforge.org/infra/go/sflog"
	"go.stacforge.org/infra/stacforge/go/workflows"
)

// temporalClient is the slice of client.Client the service uses, split out so
// tests can fake it.
type temporalClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	DescribeWorkflowExecution(ctx context.Context, workflowID, runID string) (*workflowservice.DescribeWorkflowExecutionResponse, error)
	QueryWorkflow(ctx context.Context, workflowID, runID, queryType string, args ...interface{}) (converter.EncodedValue, error)
	GetWorkflow(ctx context.Context, workflowID, runID string) client.WorkflowRun
}

// Service routes orchestration requests to Temporal.
type Service struct {
	temporal  temporalClient
	taskQueue string
}

// New returns a Service starting workflows on the given task queue.
func New(temporal client.Client, taskQueue string) *Service {
	return newService(temporal, taskQueue)
}

func newService(temporal temporalClient, taskQueue string) *Service {
	return &Service{
		temporal:  temporal,
		taskQueue: taskQueue,
	}
}

// Router returns the HTTP routes of the service.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/orchestrations/{name}", s.startOrchestration)
	r.Get("/orchestrations/{id}", s.orchestrationStatus)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return r
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		sflog.Errorf("Error encoding response: %s", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// startOrchestration validates the input and starts a workflow run. The
// response carries the orchestration id and the status polling URI.
func (s *Service) startOrchestration(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name != workflows.OrchestrationName {
		respondError(w, http.StatusNotFound, "Unknown orchestration "+name)
		return
	}

	var input workflows.OrchestrationInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	if err := input.CheckCrawlingOptions(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	options := client.StartWorkflowOptions{
		ID:        uuid.New().String(),
		TaskQueue: s.taskQueue,
	}
	run, err := s.temporal.ExecuteWorkflow(r.Context(), options, workflows.OrchestrationName, &input)
	if err != nil {
		sflog.Errorf("Error starting orchestration %s: %s", name, err)
		respondError(w, http.StatusInternalServerError, "Error starting orchestration")
		return
	}
	id := run.GetID()
	sflog.Infof("Started orchestration %s with ID %s", name, id)
	respondJSON(w, http.StatusAccepted, map[string]string{
		"id":                id,
		"statusQueryGetUri": "/orchestrations/" + id,
	})
}

// orchestrationStatus reports the runtime status, the custom status and, once
// the run has completed, its output.
func (s *Service) orchestrationStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	describe, err := s.temporal.DescribeWorkflowExecution(r.Context(), id, "")
	if err != nil {
		respondError(w, http.StatusNotFound, "Unknown orchestration ID "+id)
		return
	}
	status := describe.GetWorkflowExecutionInfo().GetStatus()

	body := map[string]interface{}{
		"runtimeStatus": runtimeStatus(status),
	}

	if value, err := s.temporal.QueryWorkflow(r.Context(), id, "", workflows.CustomStatusQuery); err == nil {
		var customStatus string
		if err := value.Get(&customStatus); err == nil {
			body["customStatus"] = customStatus
		}
	} else {
		sflog.Debugf("Error querying custom status of %s: %s", id, err)
	}

	if status == enums.WORKFLOW_EXECUTION_STATUS_COMPLETED {
		var output map[string]interface{}
		if err := s.temporal.GetWorkflow(r.Context(), id, "").Get(r.Context(), &output); err == nil {
			body["output"] = output
		} else {
			sflog.Errorf("Error fetching output of %s: %s", id, err)
		}
	}

	respondJSON(w, http.StatusOK, body)
}

// runtimeStatus maps a workflow execution status to its API name.
func runtimeStatus(status enums.WorkflowExecutionStatus) string {
	switch status {
	case enums.WORKFLOW_EXECUTION_STATUS_RUNNING:
		return "Running"
	case enums.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		return "Completed"
	case enums.WORKFLOW_EXECUTION_STATUS_FAILED:
		return "Failed"
	case enums.WORKFLOW_EXECUTION_STATUS_CANCELED:
		return "Canceled"
	case enums.WORKFLOW_EXECUTION_STATUS_TERMINATED:
		return "Terminated"
	case enums.WORKFLOW_EXECUTION_STATUS_CONTINUED_AS_NEW:
		return "ContinuedAsNew"
	case enums.WORKFLOW_EXECUTION_STATUS_TIMED_OUT:
		return "TimedOut"
	default:
		return "Unknown"
	}
}
