package handler

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"procverify/internal/analytics"
	"procverify/internal/analytics/handler/mocks"
	dErrors "procverify/pkg/domain-errors"
	"procverify/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

func newTestRouter(t *testing.T) (chi.Router, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	r := chi.NewRouter()
	New(svc, nil).Register(r)
	return r, svc
}

func TestHandleSummary(t *testing.T) {
	router, svc := newTestRouter(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.EXPECT().Summary(gomock.Any()).Return(&analytics.Summary{
		Distribution:   analytics.Distribution{Approved: 3, Rejected: 1, Total: 4},
		ApprovalRate:   75,
		RejectionRate:  25,
		ProcessingTime: analytics.ProcessingTime{AverageMs: 2.5, MinMs: 1, MaxMs: 4, Count: 4},
		CacheHits:      2,
		TopPolicies: []analytics.TopPolicy{
			{PolicyID: "POL-4", Title: "Labor sphere exclusion", Category: "exclusion", Description: "d", Count: 1},
		},
		GeneratedAt: at,
	}, nil)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/analytics/summary"))

	testutil.AssertStatusOK(t, rr)
	resp := testutil.UnmarshalResponse[SummaryResponse](t, rr)
	assert.Equal(t, 4, resp.TotalVerifications)
	assert.Equal(t, 75.0, resp.ApprovalRate)
	assert.Equal(t, 2.5, resp.ProcessingTime.AverageMs)
	require.Len(t, resp.MostCitedPolicies, 1)
	assert.Equal(t, TopPolicyResponse{ID: "POL-4", Title: "Labor sphere exclusion", Uses: 1}, resp.MostCitedPolicies[0])
	assert.True(t, at.Equal(resp.Timestamp))
}

func TestHandlePolicyUsage(t *testing.T) {
	router, svc := newTestRouter(t)
	svc.EXPECT().PolicyUsage(gomock.Any()).Return([]analytics.PolicyCount{
		{PolicyID: "POL-1", Count: 3},
		{PolicyID: "POL-8", Count: 1},
	}, nil)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/analytics/policies-usage"))

	testutil.AssertStatusOK(t, rr)
	resp := testutil.UnmarshalResponse[map[string]int](t, rr)
	assert.Equal(t, map[string]int{"POL-1": 3, "POL-8": 1}, *resp)
}

func TestHandleDistribution(t *testing.T) {
	router, svc := newTestRouter(t)
	svc.EXPECT().Distribution(gomock.Any()).Return(analytics.Distribution{Approved: 1, Incomplete: 2, Total: 3}, nil)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/analytics/decision-distribution"))

	testutil.AssertStatusOK(t, rr)
	resp := testutil.UnmarshalResponse[DistributionResponse](t, rr)
	assert.Equal(t, DistributionResponse{Approved: 1, Incomplete: 2, Total: 3}, *resp)
}

func TestHandleProcessingTime(t *testing.T) {
	router, svc := newTestRouter(t)
	svc.EXPECT().ProcessingTime(gomock.Any()).Return(analytics.ProcessingTime{}, errors.New("db down"))

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/analytics/processing-time"))

	testutil.AssertStatusAndError(t, rr, http.StatusInternalServerError, "internal_error")
}

func TestHandleTopPolicies(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		limit     int
		serviceFn func(*mocks.MockService, int)
		status    int
		errorCode string
	}{
		{
			name:  "default limit",
			query: "",
			limit: analytics.DefaultTopPolicies,
			serviceFn: func(m *mocks.MockService, limit int) {
				m.EXPECT().TopPolicies(gomock.Any(), limit).Return([]analytics.TopPolicy{
					{PolicyID: "POL-2", Title: "t", Category: "eligibility", Description: "d", Count: 4},
				}, nil)
			},
			status: http.StatusOK,
		},
		{
			name:  "explicit limit",
			query: "?limit=20",
			limit: 20,
			serviceFn: func(m *mocks.MockService, limit int) {
				m.EXPECT().TopPolicies(gomock.Any(), limit).Return([]analytics.TopPolicy{}, nil)
			},
			status: http.StatusOK,
		},
		{
			name:  "out of range limit",
			query: "?limit=21",
			limit: 21,
			serviceFn: func(m *mocks.MockService, limit int) {
				m.EXPECT().TopPolicies(gomock.Any(), limit).
					Return(nil, dErrors.New(dErrors.CodeValidation, "limit must be between 1 and 20"))
			},
			status:    http.StatusBadRequest,
			errorCode: "validation_error",
		},
		{
			name:      "non numeric limit",
			query:     "?limit=five",
			serviceFn: func(*mocks.MockService, int) {},
			status:    http.StatusBadRequest,
			errorCode: "validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, svc := newTestRouter(t)
			tt.serviceFn(svc, tt.limit)

			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/analytics/top-policies"+tt.query))

			if tt.errorCode != "" {
				testutil.AssertStatusAndError(t, rr, tt.status, tt.errorCode)
				return
			}
			testutil.AssertStatus(t, rr, tt.status)
			resp := testutil.UnmarshalResponse[[]TopPolicyResponse](t, rr)
			if tt.limit == analytics.DefaultTopPolicies {
				require.Len(t, *resp, 1)
				assert.Equal(t, "eligibility", (*resp)[0].Category)
				assert.Equal(t, 4, (*resp)[0].Uses)
			}
		})
	}
}
