package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cinotify/internal/types"
)

// notifyRequest is the POST /notify body.
type notifyRequest struct {
	Status      string         `json:"status" validate:"required,event_status"`
	Message     string         `json:"message" validate:"required,max=10000"`
	Title       string         `json:"title" validate:"max=256"`
	Details     string         `json:"details" validate:"max=20000"`
	Repository  string         `json:"repository" validate:"max=256"`
	Branch      string         `json:"branch" validate:"max=256"`
	Target      string         `json:"target" validate:"max=256"`
	WorkflowURL string         `json:"workflow_url" validate:"max=2048"`
	Context     map[string]any `json:"context"`
}

type channelResult struct {
	Channel string `json:"channel"`
	Success bool   `json:"success"`
}

type configSummary struct {
	Version       string     `json:"version"`
	LastOptimized *time.Time `json:"lastOptimized"`
}

type notifyData struct {
	Notified       bool            `json:"notified"`
	Channels       []channelResult `json:"channels"`
	Config         configSummary   `json:"config"`
	ProcessingTime int64           `json:"processingTime"`
	RequestID      string          `json:"requestId"`
}

type notifyResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Data    notifyData `json:"data"`
}

// HandleNotify runs the decision-and-dispatch pipeline for one event:
// validate, resolve the organization config, evaluate, fan out. Auth and
// admission have already happened in middleware.
func (s *Server) HandleNotify(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	info := extractRequestInfo(r)
	id, _ := types.GetIdentity(ctx)

	s.Logger.Info("notification request received", slog.Any("request", info), slog.String("org_id", id.OrganizationID))

	var req notifyRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.writeBadRequest(w, r, err)
		return
	}
	if err := s.validator.ValidateNotify(&req); err != nil {
		s.writeBadRequest(w, r, err)
		return
	}

	event := &types.NotificationEvent{
		Status:     types.EventStatus(req.Status),
		Message:    req.Message,
		Title:      req.Title,
		Details:    req.Details,
		Repository: req.Repository,
		Branch:     req.Branch,
		Target:     req.Target,
		SourceURL:  req.WorkflowURL,
		Context:    req.Context,
		Metadata: types.EventMetadata{
			Timestamp:      s.Clock.Now(),
			RequestID:      info.ID,
			OrganizationID: id.OrganizationID,
			UserID:         id.UserID,
			Source:         "api",
		},
	}

	cfg, err := s.resolveConfig(ctx, id.OrganizationID)
	if err != nil {
		s.internalError(w, r, err, id.OrganizationID, start)
		return
	}

	notified, err := s.Evaluator.ShouldNotify(ctx, event, cfg)
	if err != nil {
		s.Logger.Warn("rule evaluation failed, defaulting to notify",
			slog.String("org_id", id.OrganizationID),
			slog.String("error", err.Error()),
		)
		notified = true
	}
	s.Logger.Info("rule evaluation completed",
		slog.Bool("notify", notified),
		slog.String("config_version", cfg.Version),
	)

	var result types.DispatchResult
	if notified {
		result = s.Dispatcher.Dispatch(ctx, event, cfg.Channels)
		s.Logger.Info("notifications sent",
			slog.Int("success", result.SuccessCount),
			slog.Int("failed", result.FailureCount),
		)
	}

	elapsed := time.Since(start)
	s.logUsage(id.OrganizationID, event, notified, result, elapsed)

	channels := make([]channelResult, 0, len(result.Outcomes))
	for _, o := range result.Outcomes {
		channels = append(channels, channelResult{Channel: o.ChannelID, Success: o.Success})
	}
	JSON(w, r, http.StatusOK, notifyResponse{
		Success: true,
		Message: "Notification processed",
		Data: notifyData{
			Notified:       notified,
			Channels:       channels,
			Config:         configSummary{Version: cfg.Version, LastOptimized: cfg.LastOptimized},
			ProcessingTime: elapsed.Milliseconds(),
			RequestID:      info.ID,
		},
	})
}

// resolveConfig loads the organization config. An organization with no
// configuration at all is served with an empty one: nothing is delivered
// but the request still succeeds.
func (s *Server) resolveConfig(ctx context.Context, orgID string) (*types.OrganizationConfig, error) {
	cfg, err := s.Organizations.GetOrganizationConfig(ctx, orgID)
	if err != nil {
		if types.IsCode(err, types.ErrCodeNotFoundOrgConfig) {
			s.Logger.Warn("organization has no configuration", slog.String("org_id", orgID))
			return &types.OrganizationConfig{OrganizationID: orgID}, nil
		}
		return nil, fmt.Errorf("loading configuration for %s: %w", orgID, err)
	}
	if cfg == nil {
		return &types.OrganizationConfig{OrganizationID: orgID}, nil
	}
	return cfg, nil
}

func (s *Server) logUsage(orgID string, e *types.NotificationEvent, notified bool, res types.DispatchResult, elapsed time.Duration) {
	s.Logger.Info("usage metrics",
		slog.String("org_id", orgID),
		slog.String("repository", e.Repository),
		slog.String("status", string(e.Status)),
		slog.Bool("notified", notified),
		slog.Int("channels", len(res.Outcomes)),
		slog.Int("success", res.SuccessCount),
		slog.Int("failed", res.FailureCount),
		slog.Int64("processing_time_ms", elapsed.Milliseconds()),
	)
}

func (s *Server) writeBadRequest(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{
		Error:     "Bad Request",
		Code:      string(types.CodeOf(err)),
		RequestID: types.GetRequestID(r.Context()),
	}
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		resp.Message = appErr.Message
	} else {
		resp.Message = "invalid request body"
	}
	JSON(w, r, http.StatusBadRequest, resp)
}

// internalError logs err, fires the admin notice and answers 500.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error, orgID string, start time.Time) {
	requestID := types.GetRequestID(r.Context())
	s.Logger.Error("notification processing failed",
		slog.String("org_id", orgID),
		slog.String("error", err.Error()),
		slog.Int64("processing_time_ms", time.Since(start).Milliseconds()),
	)
	if s.Reporter != nil {
		s.Reporter.NotifyAndIgnore(err, requestID, orgID)
	}
	success := false
	JSON(w, r, http.StatusInternalServerError, ErrorResponse{
		Success:   &success,
		Error:     "Internal Server Error",
		Message:   "Failed to process notification",
		RequestID: requestID,
	})
}
