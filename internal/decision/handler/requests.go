package handler

import (
	"strings"

	"underwriter/internal/decision/models"
	dErrors "underwriter/pkg/domain-errors"
)

const (
	maxBatchSize     = 1000
	maxCompareSets   = 10
	maxRuleSetLength = 64
)

// EvaluateRequest is the HTTP request body for POST /v1/underwriting/evaluate.
type EvaluateRequest struct {
	Application *models.Application `json:"application"`
	RuleSet     string              `json:"rule_set"`
	UseAI       *bool               `json:"use_ai"`
}

// Validate normalizes the request. Application content is validated by the
// service so that batch and single evaluation report the same errors.
func (r *EvaluateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Application == nil {
		return dErrors.New(dErrors.CodeValidation, "application is required")
	}
	ruleSet, err := normalizeRuleSet(r.RuleSet)
	if err != nil {
		return err
	}
	r.RuleSet = ruleSet
	return nil
}

// BatchRequest is the HTTP request body for POST /v1/underwriting/batch.
type BatchRequest struct {
	Applications   []*models.Application `json:"applications"`
	RuleSet        string                `json:"rule_set"`
	UseAI          *bool                 `json:"use_ai"`
	MaxConcurrency int                   `json:"max_concurrency"`
}

func (r *BatchRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Applications) > maxBatchSize {
		return dErrors.Newf(dErrors.CodeValidation, "batch exceeds %d applications", maxBatchSize)
	}
	if r.MaxConcurrency < 0 {
		return dErrors.New(dErrors.CodeValidation, "max_concurrency must not be negative")
	}
	ruleSet, err := normalizeRuleSet(r.RuleSet)
	if err != nil {
		return err
	}
	r.RuleSet = ruleSet
	return nil
}

// CompareRequest is the HTTP request body for POST /v1/underwriting/compare.
// An empty RuleSets compares every loaded rule set.
type CompareRequest struct {
	Application *models.Application `json:"application"`
	RuleSets    []string            `json:"rule_sets"`
	UseAI       *bool               `json:"use_ai"`
}

func (r *CompareRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Application == nil {
		return dErrors.New(dErrors.CodeValidation, "application is required")
	}
	if len(r.RuleSets) > maxCompareSets {
		return dErrors.Newf(dErrors.CodeValidation, "at most %d rule_sets may be compared", maxCompareSets)
	}
	for i, name := range r.RuleSets {
		ruleSet, err := normalizeRuleSet(name)
		if err != nil {
			return err
		}
		if ruleSet == "" {
			return dErrors.Newf(dErrors.CodeValidation, "rule_sets[%d] is empty", i)
		}
		r.RuleSets[i] = ruleSet
	}
	return nil
}

// useAI defaults to requesting the second opinion.
func useAI(flag *bool) bool {
	return flag == nil || *flag
}

func normalizeRuleSet(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if len(name) > maxRuleSetLength {
		return "", dErrors.Newf(dErrors.CodeValidation, "rule_set must be at most %d characters", maxRuleSetLength)
	}
	return name, nil
}
