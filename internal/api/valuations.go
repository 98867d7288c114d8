package api

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/FairForge/scoutline/internal/database"
	"github.com/FairForge/scoutline/internal/logging"
	"github.com/FairForge/scoutline/internal/valuation"
)

const maxValuationBody = 64 << 10

const valuationSchema = `{
	"type": "object",
	"required": ["fingerprint", "profile"],
	"additionalProperties": false,
	"properties": {
		"fingerprint": {"type": "string", "minLength": 1, "maxLength": 4096},
		"months": {"type": "integer", "minimum": 1, "maximum": 120},
		"profile": {
			"type": "object",
			"required": ["age", "position", "league_tier"],
			"additionalProperties": false,
			"properties": {
				"age": {"type": "integer", "minimum": 15, "maximum": 45},
				"position": {"type": "string", "minLength": 1},
				"league_tier": {"type": "integer", "minimum": 1}
			}
		}
	}
}`

type valuationRequest struct {
	Fingerprint string            `json:"fingerprint"`
	Months      int               `json:"months"`
	Profile     valuation.Profile `json:"profile"`
}

type valuationResponse struct {
	Fingerprint string             `json:"fingerprint"`
	Overall     float64            `json:"overall"`
	Profile     valuation.Profile  `json:"profile"`
	Forecast    valuation.Forecast `json:"forecast"`
}

// handleCreateValuation handles POST /api/v1/valuations
func (s *Server) handleCreateValuation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx, s.logger)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxValuationBody))
	if err != nil {
		s.writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "request body is not valid JSON")
		return
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		s.writeError(w, r, http.StatusBadRequest, "validation failed: "+strings.Join(msgs, "; "))
		return
	}

	var req valuationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "malformed request")
		return
	}

	res, forecast, err := s.analyzer.Value(ctx, req.Fingerprint, req.Profile, req.Months)
	if err != nil {
		if errors.Is(err, valuation.ErrInvalidProfile) {
			s.writeError(w, r, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.lookupError(w, r, req.Fingerprint, err)
		return
	}

	if s.index != nil {
		err := s.index.RecordValuation(ctx, &database.ValuationRecord{
			Fingerprint:  req.Fingerprint,
			Position:     strings.ToLower(req.Profile.Position),
			LeagueTier:   req.Profile.LeagueTier,
			Age:          req.Profile.Age,
			CurrentValue: int64(math.Round(forecast.Current)),
			PeakValue:    int64(math.Round(forecast.Peak.Value)),
			Trend:        forecast.Trend,
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			log.Warn("failed to record valuation", zap.Error(err))
		}
	}

	s.writeJSON(w, r, http.StatusOK, valuationResponse{
		Fingerprint: req.Fingerprint,
		Overall:     res.Scores.Overall,
		Profile:     req.Profile,
		Forecast:    forecast,
	})
}
