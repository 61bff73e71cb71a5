package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/crickql/crickql/internal/pipeline"
)

type askRequest struct {
	Question string `json:"question"`
	Model    string `json:"model"`
}

type askResponse struct {
	Answer           string         `json:"answer"`
	ExpandedQuestion string         `json:"expanded_question"`
	Query            string         `json:"query"`
	Result           string         `json:"result"`
	Model            string         `json:"model"`
	Stats            map[string]any `json:"stats"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Resolver == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASK_NOT_CONFIGURED", "question resolver is not configured", false, nil)
		return
	}

	var request askRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION_ERROR", "question is required", false, nil)
		return
	}

	started := time.Now()
	resolution, err := deps.Resolver.Resolve(r.Context(), request.Question, request.Model)
	if err != nil {
		writeResolveError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		Answer:           resolution.Answer,
		ExpandedQuestion: resolution.ExpandedQuestion,
		Query:            resolution.Query,
		Result:           resolution.Result,
		Model:            resolution.Model,
		Stats: map[string]any{
			"duration_ms": time.Since(started).Milliseconds(),
		},
	})
}

func writeResolveError(w http.ResponseWriter, r *http.Request, err error) {
	var stageErr *pipeline.Error
	if !errors.As(err, &stageErr) {
		writeError(r.Context(), w, http.StatusInternalServerError, "RESOLVE_FAILED", "question resolution failed", true, map[string]any{"details": err.Error()})
		return
	}

	extra := map[string]any{
		"stage":   string(stageErr.Stage),
		"details": stageErr.Err.Error(),
	}
	switch stageErr.Kind {
	case pipeline.KindValidation:
		writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION_ERROR", stageErr.Err.Error(), false, extra)
	case pipeline.KindGuardViolation:
		writeError(r.Context(), w, http.StatusBadRequest, "GUARD_VIOLATION", "generated query was rejected by the read-only guard", false, extra)
	case pipeline.KindStructuredOutput:
		writeError(r.Context(), w, http.StatusBadGateway, "STRUCTURED_OUTPUT_FAILED", "model did not produce a usable query", true, extra)
	case pipeline.KindGeneration:
		writeError(r.Context(), w, http.StatusBadGateway, "GENERATION_FAILED", "model call failed", true, extra)
	case pipeline.KindExecution:
		writeError(r.Context(), w, http.StatusInternalServerError, "EXECUTION_FAILED", "store interaction failed", true, extra)
	default:
		writeError(r.Context(), w, http.StatusInternalServerError, "RESOLVE_FAILED", "question resolution failed", true, extra)
	}
}

func handleListModels(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Resolver == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASK_NOT_CONFIGURED", "question resolver is not configured", false, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"models":  deps.Resolver.Models(),
		"default": deps.Resolver.DefaultModel(),
	})
}
