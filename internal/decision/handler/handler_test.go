package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"underwriter/internal/decision"
	"underwriter/internal/decision/handler/mocks"
	"underwriter/internal/decision/models"
	"underwriter/internal/decision/ruleset"
	"underwriter/internal/decision/store"
	dErrors "underwriter/pkg/domain-errors"
	"underwriter/pkg/testutil"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func application(id string) *models.Application {
	credit := 760
	return &models.Application{
		ID:          id,
		SubmittedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Applicant: models.Driver{
			ID:            "D-1",
			DateOfBirth:   time.Date(1980, 1, 20, 0, 0, 0, 0, time.UTC),
			LicenseStatus: models.LicenseValid,
			LicenseState:  "CA",
			YearsLicensed: 25,
		},
		Vehicles: []models.Vehicle{{
			Year:     2022,
			Make:     "Honda",
			Model:    "Accord",
			Category: models.VehicleSedan,
			Value:    decimal.NewFromInt(28000),
		}},
		CreditScore: &credit,
	}
}

// =============================================================================
// Handler Test Suite
// =============================================================================
// Transport behaviour against a mocked service: decoding, defaults, status
// mapping and response shapes.

type HandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.T().Cleanup(ctrl.Finish)
	s.service = mocks.NewMockService(ctrl)
	h := New(s.service, discardLogger)
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *HandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) TestEvaluate() {
	s.Run("defaults use_ai to true and normalizes the rule set", func() {
		s.service.EXPECT().EvaluateOne(gomock.Any(), gomock.Any(), "conservative", true).
			DoAndReturn(func(_ context.Context, app *models.Application, _ string, _ bool) (models.FinalDecision, error) {
				s.Equal("APP-1", app.ID)
				return models.FinalDecision{ApplicationID: app.ID, Decision: models.DecisionAccept, Basis: models.BasisWeightedBlend}, nil
			})

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/underwriting/evaluate", map[string]any{
			"application": application("APP-1"),
			"rule_set":    " Conservative ",
		}))

		testutil.AssertStatusOK(s.T(), rr)
		fd := testutil.UnmarshalResponse[models.FinalDecision](s.T(), rr)
		s.Equal(models.DecisionAccept, fd.Decision)
		s.Equal(models.BasisWeightedBlend, fd.Basis)
	})

	s.Run("honours use_ai false", func() {
		s.service.EXPECT().EvaluateOne(gomock.Any(), gomock.Any(), "", false).
			Return(models.FinalDecision{ApplicationID: "APP-2", Decision: models.DecisionAccept}, nil)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/underwriting/evaluate", map[string]any{
			"application": application("APP-2"),
			"use_ai":      false,
		}))

		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("missing application is a validation error", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/underwriting/evaluate", map[string]any{
			"rule_set": "standard",
		}))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("malformed body is a bad request", func() {
		rr := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/underwriting/evaluate", "{not json"))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("service errors map by code", func() {
		cases := []struct {
			err    error
			status int
		}{
			{dErrors.New(dErrors.CodeNotFound, `rule set "gold" not found`), http.StatusNotFound},
			{dErrors.New(dErrors.CodeFusion, "ai unavailable and fallback disabled"), http.StatusBadGateway},
			{dErrors.New(dErrors.CodeTimeout, "evaluation stopped before fusion"), http.StatusGatewayTimeout},
			{dErrors.New(dErrors.CodeInvariantViolation, "ai decision invalid"), http.StatusInternalServerError},
		}
		for _, tc := range cases {
			s.service.EXPECT().EvaluateOne(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
				Return(models.FinalDecision{}, tc.err)

			rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/underwriting/evaluate", map[string]any{
				"application": application("APP-E"),
			}))

			testutil.AssertStatusAndError(s.T(), rr, tc.status, string(dErrors.CodeOf(tc.err)))
		}
	})
}

func (s *HandlerSuite) TestBatch() {
	s.Run("returns decisions with statistics", func() {
		s.service.EXPECT().EvaluateBatch(gomock.Any(), gomock.Len(2), "standard", true, 4).
			Return([]models.FinalDecision{
				{ApplicationID: "APP-1", Decision: models.DecisionAccept, RiskScore: models.RiskScore{Overall: 300, Band: models.BandFor(300)}},
				{ApplicationID: "APP-2", Decision: models.DecisionDeny, RiskScore: models.RiskScore{Overall: 900, Band: models.BandFor(900)}},
			}, nil)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/underwriting/batch", map[string]any{
			"applications":    []*models.Application{application("APP-1"), application("APP-2")},
			"rule_set":        "standard",
			"max_concurrency": 4,
		}))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[BatchResponse](s.T(), rr)
		s.Require().Len(resp.Decisions, 2)
		s.Equal("APP-1", resp.Decisions[0].ApplicationID)
		s.Equal(2, resp.Statistics.Total)
		s.Equal(1, resp.Statistics.Decisions[models.DecisionDeny].Count)
		s.InDelta(600.0, resp.Statistics.AverageRiskScore, 0.001)
	})

	s.Run("rejects negative concurrency", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/underwriting/batch", map[string]any{
			"applications":    []*models.Application{application("APP-1")},
			"max_concurrency": -1,
		}))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("rejects oversized batches", func() {
		apps := make([]*models.Application, maxBatchSize+1)
		for i := range apps {
			apps[i] = &models.Application{ID: "A"}
		}

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/underwriting/batch", map[string]any{
			"applications": apps,
		}))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})
}

func (s *HandlerSuite) TestCompare() {
	s.Run("reports agreement across rule sets", func() {
		s.service.EXPECT().CompareRuleSets(gomock.Any(), gomock.Any(), []string{"standard", "liberal"}, true).
			Return(map[string]models.FinalDecision{
				"standard": {Decision: models.DecisionAccept},
				"liberal":  {Decision: models.DecisionAccept},
			}, nil)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/underwriting/compare", map[string]any{
			"application": application("APP-C"),
			"rule_sets":   []string{"Standard", "liberal"},
		}))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[CompareResponse](s.T(), rr)
		s.Equal("APP-C", resp.ApplicationID)
		s.True(resp.Agreement)
		s.Len(resp.Results, 2)
	})

	s.Run("flags disagreement", func() {
		s.service.EXPECT().CompareRuleSets(gomock.Any(), gomock.Any(), gomock.Any(), false).
			Return(map[string]models.FinalDecision{
				"standard":     {Decision: models.DecisionAccept},
				"conservative": {Decision: models.DecisionAdjudicate},
			}, nil)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/underwriting/compare", map[string]any{
			"application": application("APP-C"),
			"rule_sets":   []string{"standard", "conservative"},
			"use_ai":      false,
		}))

		resp := testutil.UnmarshalResponse[CompareResponse](s.T(), rr)
		s.False(resp.Agreement)
	})

	s.Run("requires rule sets", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/underwriting/compare", map[string]any{
			"application": application("APP-C"),
		}))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("rejects blank rule set names", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/underwriting/compare", map[string]any{
			"application": application("APP-C"),
			"rule_sets":   []string{"standard", "  "},
		}))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})
}

func (s *HandlerSuite) TestRuleSets() {
	s.Run("lists rule sets with the default", func() {
		s.service.EXPECT().DefaultRuleSet().Return("standard")
		s.service.EXPECT().ListRuleSets().Return([]ruleset.Info{{Name: "liberal"}, {Name: "standard"}})

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/v1/rulesets"))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[RuleSetsResponse](s.T(), rr)
		s.Equal("standard", resp.Default)
		s.Len(resp.RuleSets, 2)
	})

	s.Run("describes one rule set", func() {
		s.service.EXPECT().RuleSetInfo("liberal").Return(ruleset.Info{Name: "liberal", Version: "1.0"}, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/v1/rulesets/Liberal"))

		testutil.AssertStatusOK(s.T(), rr)
		info := testutil.UnmarshalResponse[ruleset.Info](s.T(), rr)
		s.Equal("1.0", info.Version)
	})

	s.Run("unknown rule set is not found", func() {
		s.service.EXPECT().RuleSetInfo("gold").Return(ruleset.Info{}, dErrors.New(dErrors.CodeNotFound, `rule set "gold" not found`))

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/v1/rulesets/gold"))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})

	s.Run("reload returns the new generation", func() {
		s.service.EXPECT().ReloadRuleSets(gomock.Any()).
			Return(decision.ReloadResult{Generation: 3, RuleSets: []string{"standard"}}, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/v1/rulesets/reload"))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[decision.ReloadResult](s.T(), rr)
		s.Equal(uint64(3), resp.Generation)
	})

	s.Run("failed reload hides internal detail", func() {
		s.service.EXPECT().ReloadRuleSets(gomock.Any()).
			Return(decision.ReloadResult{}, dErrors.New(dErrors.CodeConfig, "weights sum to 0.9"))

		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/v1/rulesets/reload"))

		testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
		body := testutil.UnmarshalErrorResponse(s.T(), rr)
		s.Equal(string(dErrors.CodeConfig), body["error"])
		s.Empty(body["error_description"])
	})
}

func (s *HandlerSuite) TestDecisions() {
	s.Run("returns the latest stored decision", func() {
		id := uuid.New()
		s.service.EXPECT().GetDecision(gomock.Any(), "APP-9").Return(&models.DecisionRecord{
			ID:    id,
			Final: models.FinalDecision{ApplicationID: "APP-9", Decision: models.DecisionDeny},
		}, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/v1/decisions/APP-9"))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[DecisionRecordResponse](s.T(), rr)
		s.Equal(id.String(), resp.ID)
		s.Equal(models.DecisionDeny, resp.Decision.Decision)
	})

	s.Run("lists with the requested limit", func() {
		s.service.EXPECT().ListDecisions(gomock.Any(), 5).Return([]*models.DecisionRecord{
			{ID: uuid.New(), Final: models.FinalDecision{ApplicationID: "APP-2"}},
			{ID: uuid.New(), Final: models.FinalDecision{ApplicationID: "APP-1"}},
		}, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/v1/decisions?limit=5"))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[DecisionListResponse](s.T(), rr)
		s.Equal(2, resp.Count)
		s.Equal("APP-2", resp.Decisions[0].Decision.ApplicationID)
	})

	s.Run("omitted limit uses the service default", func() {
		s.service.EXPECT().ListDecisions(gomock.Any(), 0).Return(nil, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/v1/decisions"))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[DecisionListResponse](s.T(), rr)
		s.Empty(resp.Decisions)
	})

	s.Run("rejects a malformed limit", func() {
		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/v1/decisions?limit=ten"))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})
}

// =============================================================================
// End-to-end through the real service
// =============================================================================

func TestHandlerWithService(t *testing.T) {
	registry, err := ruleset.NewRegistry(ruleset.DefaultSource(), ruleset.WithLogger(discardLogger))
	require.NoError(t, err)
	_, err = registry.Load(context.Background())
	require.NoError(t, err)
	svc, err := decision.New(registry,
		decision.WithStore(store.NewInMemoryStore()),
		decision.WithLogger(discardLogger),
	)
	require.NoError(t, err)
	router := chi.NewRouter()
	New(svc, discardLogger).Register(router)

	testutil.Given(t, "a clean application evaluated without AI", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/v1/underwriting/evaluate", map[string]any{
			"application": application("APP-E2E"),
			"use_ai":      false,
		}))
		testutil.AssertStatusOK(t, rr)
		fd := testutil.UnmarshalResponse[models.FinalDecision](t, rr)

		testutil.Then(t, "the rules accept it", func(t *testing.T) {
			assert.Equal(t, models.DecisionAccept, fd.Decision)
			assert.Equal(t, models.BasisAINotRequested, fd.Basis)
		})

		testutil.When(t, "the decision is looked up", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/v1/decisions/APP-E2E"))
			testutil.AssertStatusOK(t, rr)
			stored := testutil.UnmarshalResponse[DecisionRecordResponse](t, rr)

			testutil.Then(t, "the stored copy matches", func(t *testing.T) {
				assert.Equal(t, fd.TraceRef, stored.Decision.TraceRef)
			})
		})
	})

	testutil.Given(t, "an application that was never evaluated", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/v1/decisions/APP-NONE"))

		testutil.Then(t, "lookup is not found", func(t *testing.T) {
			testutil.AssertStatusAndError(t, rr, http.StatusNotFound, string(dErrors.CodeNotFound))
		})
	})

	testutil.Given(t, "an application id over the length limit", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/v1/underwriting/evaluate", map[string]any{
			"application": application(strings.Repeat("x", 65)),
			"use_ai":      false,
		}))

		testutil.Then(t, "evaluation is rejected", func(t *testing.T) {
			testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeValidation))
		})
	})
}
