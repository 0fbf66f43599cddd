package decision

import (
	"context"
	"fmt"
	"log/slog"

	"underwriter/internal/decision/metrics"
	"underwriter/internal/decision/ports"
	"underwriter/internal/decision/ruleset"
	"underwriter/pkg/platform/audit"
	"underwriter/pkg/requestcontext"
)

// ReloadResult describes the snapshot produced by a reload.
type ReloadResult struct {
	Generation uint64   `json:"generation"`
	RuleSets   []string `json:"rule_sets"`
}

// RuleSetInfo describes the named rule set; an empty name selects the
// default.
func (s *Service) RuleSetInfo(name string) (ruleset.Info, error) {
	rs, err := s.resolve(s.registry.Current(), name)
	if err != nil {
		return ruleset.Info{}, err
	}
	return rs.Info(), nil
}

// ListRuleSets describes every loaded rule set in name order.
func (s *Service) ListRuleSets() []ruleset.Info {
	snap := s.registry.Current()
	names := snap.Names()
	out := make([]ruleset.Info, 0, len(names))
	for _, name := range names {
		rs, err := snap.Get(name)
		if err != nil {
			continue
		}
		out = append(out, rs.Info())
	}
	return out
}

// DefaultRuleSet names the rule set used when callers do not pick one.
func (s *Service) DefaultRuleSet() string {
	return s.defaultRuleSet
}

// ReloadRuleSets reloads every rule set from the source. On failure the
// previous snapshot keeps serving. Successful reloads are reported through
// the registry's reload listeners.
func (s *Service) ReloadRuleSets(ctx context.Context) (ReloadResult, error) {
	snap, err := s.registry.Load(ctx)
	if err != nil {
		s.metrics.ObserveReload(0, err)
		s.logger.ErrorContext(ctx, "rule set reload failed", "error", err)
		s.emit(ctx, audit.Event{
			Action:    string(audit.EventRuleSetReloadFailed),
			Subject:   "*",
			Reason:    err.Error(),
			RequestID: requestcontext.RequestID(ctx),
		})
		return ReloadResult{}, err
	}
	return ReloadResult{Generation: snap.Generation, RuleSets: snap.Names()}, nil
}

// ReloadListener records every successful reload in metrics and the audit
// trail. Pass it to ruleset.WithReloadListener.
func ReloadListener(m *metrics.Metrics, auditor ports.AuditPort, logger *slog.Logger) ruleset.ReloadListener {
	return func(ctx context.Context, snap *ruleset.Snapshot) {
		m.ObserveReload(snap.Generation, nil)
		if auditor == nil {
			return
		}
		for _, name := range snap.Names() {
			rs, err := snap.Get(name)
			if err != nil {
				continue
			}
			event := audit.Event{
				Action:         string(audit.EventRuleSetsReloaded),
				Subject:        name,
				RuleSet:        name,
				RuleSetVersion: rs.Version,
				Reason:         fmt.Sprintf("generation %d", snap.Generation),
				RequestID:      requestcontext.RequestID(ctx),
			}
			if err := auditor.Emit(ctx, event); err != nil && logger != nil {
				logger.ErrorContext(ctx, "failed to emit audit event",
					"action", event.Action,
					"subject", event.Subject,
					"error", err,
				)
			}
		}
	}
}
