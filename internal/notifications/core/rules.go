package core

import (
	"context"
	"fmt"

	"cinotify/internal/dedup"
	"cinotify/internal/types"
)

// Compile-time assertion that RuleEvaluator implements Evaluator.
var _ Evaluator = (*RuleEvaluator)(nil)

// RuleEvaluator applies the organization's suppression rules to an event.
type RuleEvaluator struct {
	store   dedup.Store
	logger  types.Logger
	metrics NotificationMetrics
}

// NewRuleEvaluator creates a RuleEvaluator backed by store.
func NewRuleEvaluator(store dedup.Store, logger types.Logger, metrics NotificationMetrics) *RuleEvaluator {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &RuleEvaluator{store: store, logger: logger, metrics: metrics}
}

// ShouldNotify decides whether event is delivered.
//
// Decision logic (in order of precedence):
//  1. error -> always notify, the deduplication store is not consulted
//  2. success -> suppress when deduplication is enabled and the fingerprint
//     was seen within the window; otherwise record it and notify
//  3. warning, info -> notify
//
// A store failure returns (true, err): the event is delivered and the error
// is handed back for logging.
func (e *RuleEvaluator) ShouldNotify(ctx context.Context, event *types.NotificationEvent, cfg *types.OrganizationConfig) (bool, error) {
	notify, err := e.decide(ctx, event, cfg)
	e.metrics.RecordDecision(ctx, event.Metadata.OrganizationID, notify)
	return notify, err
}

func (e *RuleEvaluator) decide(ctx context.Context, event *types.NotificationEvent, cfg *types.OrganizationConfig) (bool, error) {
	if event.Status != types.EventStatusSuccess {
		return true, nil
	}

	orgID := event.Metadata.OrganizationID
	fp := types.Fingerprint(event)

	if cfg != nil && cfg.Deduplication.Enabled {
		seen, err := e.store.WasSeenRecently(ctx, orgID, fp, cfg.Deduplication.Window())
		if err != nil {
			return true, fmt.Errorf("deduplication lookup: %w", err)
		}
		if seen {
			e.logger.Info("duplicate success event suppressed",
				"organization_id", orgID,
				"fingerprint", fp,
				"window_ms", cfg.Deduplication.WindowMs,
			)
			return false, nil
		}
	}

	// Recorded even with deduplication disabled so enabling it later takes
	// effect immediately.
	if err := e.store.Record(ctx, orgID, fp); err != nil {
		return true, fmt.Errorf("deduplication record: %w", err)
	}
	return true, nil
}

// Chain runs custom evaluators ahead of base. The first evaluator that
// suppresses wins; errors are logged and treated as a vote to notify.
func Chain(logger types.Logger, base Evaluator, custom ...Evaluator) Evaluator {
	return EvaluatorFunc(func(ctx context.Context, event *types.NotificationEvent, cfg *types.OrganizationConfig) (bool, error) {
		for _, ev := range custom {
			notify, err := ev.ShouldNotify(ctx, event, cfg)
			if err != nil {
				logger.Warn("custom evaluator failed, continuing",
					"error", err.Error(),
					"request_id", event.Metadata.RequestID,
				)
				continue
			}
			if !notify {
				return false, nil
			}
		}
		return base.ShouldNotify(ctx, event, cfg)
	})
}
