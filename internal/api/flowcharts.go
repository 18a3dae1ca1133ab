package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/QTest-hq/pyflowchart/pkg/chart"
	"github.com/QTest-hq/pyflowchart/pkg/flowchart"
)

// maxSourceBytes bounds the request body of a translation
const maxSourceBytes = 1 << 20

// CreateFlowchartRequest is the request body for translating source code
type CreateFlowchartRequest struct {
	Code       string `json:"code"`
	Field      string `json:"field,omitempty"`
	Inner      *bool  `json:"inner,omitempty"`    // default true
	Simplify   *bool  `json:"simplify,omitempty"` // default true
	CondsAlign bool   `json:"conds_align,omitempty"`
	Format     string `json:"format,omitempty"` // flowchart, mermaid
}

// Result is a stored translation
type Result struct {
	ID          uuid.UUID
	Title       string
	Format      flowchart.Format
	Output      string
	DSL         string // flowchart.js text, used by the HTML view
	Nodes       int
	Approximate bool
	CreatedAt   time.Time
}

// FlowchartResponse is the API response for a translation
type FlowchartResponse struct {
	ID          uuid.UUID `json:"id"`
	Format      string    `json:"format"`
	Flowchart   string    `json:"flowchart"`
	Nodes       int       `json:"nodes"`
	Approximate bool      `json:"approximate,omitempty"`
	CreatedAt   string    `json:"created_at"`
}

func resultToResponse(res *Result) *FlowchartResponse {
	if res == nil {
		return nil
	}

	return &FlowchartResponse{
		ID:          res.ID,
		Format:      string(res.Format),
		Flowchart:   res.Output,
		Nodes:       res.Nodes,
		Approximate: res.Approximate,
		CreatedAt:   res.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (req *CreateFlowchartRequest) options() (flowchart.Options, error) {
	opts := flowchart.DefaultOptions()
	opts.Field = req.Field
	opts.AlignConditions = req.CondsAlign

	if req.Inner != nil {
		opts.Inner = *req.Inner
	}
	if req.Simplify != nil {
		opts.Simplify = *req.Simplify
	}

	format, err := flowchart.ParseFormat(req.Format)
	if err != nil {
		return opts, err
	}
	opts.Format = format

	return opts, nil
}

// createFlowchart translates the posted code and stores the result
func (s *Server) createFlowchart(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSourceBytes)

	var req CreateFlowchartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Code == "" {
		respondError(w, http.StatusBadRequest, "code is required")
		return
	}

	opts, err := req.options()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	g, err := flowchart.Build(r.Context(), []byte(req.Code), opts)
	if err != nil {
		respondTranslationError(w, err)
		return
	}

	output, err := flowchart.Render(g, opts.Format)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to render flowchart")
		return
	}

	res := &Result{
		ID:          uuid.New(),
		Title:       req.Field,
		Format:      opts.Format,
		Output:      output,
		DSL:         chart.Render(g),
		Nodes:       g.Len(),
		Approximate: flowchart.Approximate(g),
		CreatedAt:   time.Now().UTC(),
	}
	s.results.Add(res.ID, res)

	log.Info().
		Str("id", res.ID.String()).
		Str("field", req.Field).
		Int("nodes", res.Nodes).
		Msg("flowchart created")

	respondJSON(w, http.StatusCreated, resultToResponse(res))
}

// getFlowchart returns a stored translation
func (s *Server) getFlowchart(w http.ResponseWriter, r *http.Request) {
	res, ok := s.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, resultToResponse(res))
}

// getFlowchartHTML returns the stored translation as a standalone page
func (s *Server) getFlowchartHTML(w http.ResponseWriter, r *http.Request) {
	res, ok := s.lookup(w, r)
	if !ok {
		return
	}

	page, err := chart.RenderHTML(res.DSL, res.Title)
	if err != nil {
		log.Error().Err(err).Str("id", res.ID.String()).Msg("failed to render page")
		respondError(w, http.StatusInternalServerError, "failed to render page")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(page))
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*Result, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "flowchartID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid flowchart id")
		return nil, false
	}

	res, ok := s.results.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "flowchart not found")
		return nil, false
	}
	return res, true
}

// respondTranslationError maps translation failures to status codes
func respondTranslationError(w http.ResponseWriter, err error) {
	var (
		selErr   *flowchart.SelectionError
		scopeErr *flowchart.ScopeError
	)

	switch {
	case errors.As(err, &selErr), errors.As(err, &scopeErr):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, flowchart.ErrSyntax):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Msg("translation failed")
		respondError(w, http.StatusInternalServerError, "translation failed")
	}
}
