package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/matzehuels/elk/pkg/buildinfo"
	elkerrors "github.com/matzehuels/elk/pkg/errors"
	"github.com/matzehuels/elk/pkg/graph"
)

const (
	formatJSON = "json"
	formatSVG  = "svg"
)

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type validateResponse struct {
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: buildinfo.Version})
}

func (s *Server) layout(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = formatJSON
	}
	if format != formatJSON && format != formatSVG {
		s.writeError(w, r, elkerrors.New(elkerrors.ErrCodeInvalidFormat, "unsupported format %q (want json or svg)", format))
		return
	}

	g, err := s.readGraph(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.runner.Compute(r.Context(), g)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("X-Elk-Cached", strconv.FormatBool(res.Cached))
	w.Header().Set("X-Elk-Request-Id", res.RequestID)

	if format == formatSVG {
		out, err := s.runner.RenderSVG(r.Context(), g, res, s.svg)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(out)
		return
	}
	writeJSON(w, http.StatusOK, res.Layout)
}

func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	g, err := s.readGraph(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	problems := graph.Problems(g)
	writeJSON(w, http.StatusOK, validateResponse{Valid: len(problems) == 0, Problems: problems})
}

func (s *Server) readGraph(w http.ResponseWriter, r *http.Request) (*graph.Graph, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errBodyTooLarge{limit: tooLarge.Limit}
		}
		return nil, elkerrors.Wrap(elkerrors.ErrCodeInvalidInput, err, "failed to read request body")
	}
	if len(body) == 0 {
		return nil, elkerrors.New(elkerrors.ErrCodeInvalidInput, "request body is empty")
	}
	g, err := graph.UnmarshalGraph(body)
	if err != nil {
		return nil, elkerrors.Wrap(elkerrors.ErrCodeInvalidInput, err, "request body is not a graph")
	}
	return g, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
