package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	pz "github.com/weberc2/httpeasy"

	"github.com/jmylchreest/hedgefactor/internal/logger"
	"github.com/jmylchreest/hedgefactor/internal/report"
	"github.com/jmylchreest/hedgefactor/internal/sellers"
	"github.com/jmylchreest/hedgefactor/internal/version"
	"github.com/jmylchreest/hedgefactor/pkg/hedge"
)

const maxBodySize = 1 << 20

// RootResponse is served by GET /.
type RootResponse struct {
	Message     string `json:"message"`
	Status      string `json:"status"`
	AgentLoaded bool   `json:"agent_loaded"`
	Version     string `json:"version"`
}

// Root reports service status.
func (s *Server) Root(pz.Request) pz.Response {
	return pz.Ok(pz.JSON(RootResponse{
		Message:     "Hedge Factor API is running",
		Status:      "ok",
		AgentLoaded: s.update != nil,
		Version:     version.String(),
	}))
}

// Health is the liveness probe.
func (s *Server) Health(pz.Request) pz.Response {
	return pz.Ok(pz.JSON(statusBody{Status: "healthy", Message: "Service is running"}))
}

// UpdateHedgeFactor accepts a validated update. It is the endpoint the
// update pipeline posts to by default.
func (s *Server) UpdateHedgeFactor(r pz.Request) pz.Response {
	payload, err := decodeBody(r)
	if err != nil {
		return badRequest(err.Error())
	}

	update, err := hedge.ValidateUpdate(payload)
	if err != nil {
		return errorResponse(err, "update hedge factor")
	}

	logger.Info("hedge factor update received",
		"seller", update.SellerNumber,
		"hedge_factor", update.HedgeFactor.String())

	msg := fmt.Sprintf("Hedge factor updated for seller %s", update.SellerNumber)
	return pz.Ok(
		pz.JSON(hedge.Acknowledgement{Status: "success", Message: msg, Data: &update}),
		&logging{Message: msg},
	)
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Input string `json:"input"`
}

// ChatResponse wraps the sink acknowledgement.
type ChatResponse struct {
	Response *hedge.Acknowledgement `json:"response"`
}

// Chat runs the update pipeline on free text.
func (s *Server) Chat(r pz.Request) pz.Response {
	if s.update == nil {
		return unavailable("update agent is not loaded")
	}

	var req ChatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		return badRequest("malformed chat JSON: " + err.Error())
	}
	if strings.TrimSpace(req.Input) == "" {
		return badRequest("input is required")
	}

	ctx, cancel := s.requestContext()
	defer cancel()

	res, err := s.update.Run(ctx, req.Input)
	if err != nil {
		return errorResponse(err, "chat")
	}
	return pz.Ok(pz.JSON(ChatResponse{Response: res.Ack}), &logging{Message: "chat: success"})
}

// ReportResponse is served by POST /api/report.
type ReportResponse struct {
	Status  string                     `json:"status"`
	Message string                     `json:"message"`
	Data    []hedge.SellerFactorRecord `json:"data"`
	Summary report.Summary             `json:"summary"`
	Charts  *report.Artifacts          `json:"charts,omitempty"`
}

// Report maps a seller batch, or the built-in feed when none is given, to
// factors and summarizes the result.
func (s *Server) Report(r pz.Request) pz.Response {
	if s.report == nil {
		return unavailable("report agent is not loaded")
	}

	var req struct {
		Sellers json.RawMessage `json:"sellers"`
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return badRequest("reading body: " + err.Error())
	}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			return badRequest("malformed report JSON: " + err.Error())
		}
	}

	records := sellers.Default()
	if raw := bytes.TrimSpace(req.Sellers); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if records, err = sellers.Parse(raw, sellers.FormatJSON); err != nil {
			return errorResponse(err, "report")
		}
	}

	ctx, cancel := s.requestContext()
	defer cancel()

	res, err := s.report.Run(ctx, records)
	if err != nil {
		return errorResponse(err, "report")
	}

	rep, err := report.Build(ctx, res.Records, report.Options{
		ChartsDir:     s.cfg.ChartsDir,
		MeanTolerance: s.cfg.MeanTolerance,
	})
	if err != nil {
		return errorResponse(err, "report")
	}

	return pz.Ok(pz.JSON(ReportResponse{
		Status:  "success",
		Message: fmt.Sprintf("Generated factors for %d sellers", len(rep.Records)),
		Data:    rep.Records,
		Summary: rep.Summary,
		Charts:  rep.Charts,
	}), &logging{Message: "report: success"})
}

// decodeBody parses a JSON object keeping numbers exact.
func decodeBody(r pz.Request) (any, error) {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("malformed JSON body: %w", err)
	}
	return v, nil
}
