package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/analytics"
	apperrors "github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/rpc"
)

// RPC method names.
const (
	MethodProcess   = "Pipeline.Process"
	MethodRedact    = "Pipeline.Redact"
	MethodGetResult = "Results.Get"
)

var (
	errInvalidParams = apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid params")
	errTextRequired  = apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "text is required")
)

// GetResultRequest is the params of the Results.Get RPC.
type GetResultRequest struct {
	DocumentID string `json:"document_id"`
}

// RegisterRPC exposes the pipeline on s. RPC callers have no key, so
// redaction follows the default role.
func (h *Handler) RegisterRPC(s *rpc.Server) {
	s.Register(MethodProcess, func(ctx context.Context, params json.RawMessage) (any, error) {
		var req ProcessRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, errInvalidParams
		}
		if strings.TrimSpace(req.Text) == "" {
			return nil, errTextRequired
		}
		return h.process(ctx, req, h.defaultRole.MustRedact(req.Redact), analytics.OriginRPC)
	})
	s.Register(MethodRedact, func(ctx context.Context, params json.RawMessage) (any, error) {
		var req RedactRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, errInvalidParams
		}
		if strings.TrimSpace(req.Text) == "" {
			return nil, errTextRequired
		}
		return h.redact(ctx, req.Text, analytics.OriginRPC)
	})
	if h.store != nil {
		s.Register(MethodGetResult, func(ctx context.Context, params json.RawMessage) (any, error) {
			var req GetResultRequest
			if err := json.Unmarshal(params, &req); err != nil || req.DocumentID == "" {
				return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "document_id is required")
			}
			return h.store.Get(ctx, req.DocumentID)
		})
	}
}
