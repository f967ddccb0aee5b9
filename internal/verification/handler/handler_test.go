package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"procverify/internal/decision"
	"procverify/internal/history"
	"procverify/internal/policy"
	"procverify/internal/process/models"
	"procverify/internal/verification/cache"
	"procverify/internal/verification/handler/mocks"
	"procverify/internal/verification/service"
	dErrors "procverify/pkg/domain-errors"
	"procverify/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

const verifyBody = `{
	"numeroProcesso": "0004587-00.2021.4.05.8100",
	"classe": "Cumprimento de Sentença contra a Fazenda Pública",
	"orgaoJulgador": "19ª VARA FEDERAL",
	"ultimaDistribuicao": "2024-11-18T23:15:44.130Z",
	"assunto": "Rural (Art. 48/51)",
	"segredoJustica": false,
	"justicaGratuita": true,
	"siglaTribunal": "TRF5",
	"esfera": "Federal",
	"valorCondenacao": 67592,
	"documentos": [
		{"id": "DOC-1-1", "dataHoraJuntada": "2023-09-10T10:12:05.000", "nome": "Certidão de Trânsito em Julgado", "texto": "Certifico o trânsito em julgado."}
	],
	"movimentos": [
		{"dataHora": "2024-01-20T11:22:33.000", "descricao": "Iniciado cumprimento definitivo de sentença."}
	],
	"honorarios": {"contratuais": 12000}
}`

type HandlerSuite struct {
	suite.Suite
	ctx     context.Context
	service *mocks.MockService
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctx = context.Background()
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.Register(s.router)
	h.RegisterAdmin(s.router)
}

func approved(number string) *decision.Decision {
	return &decision.Decision{
		ProcessNumber:  number,
		Outcome:        decision.OutcomeApproved,
		Rationale:      "Process " + number + " approved: POL-1 (Final judgment and execution phase): satisfied",
		Citations:      []decision.Citation{{PolicyID: "POL-1", Title: "Final judgment and execution phase", Explanation: "satisfied"}},
		Confidence:     0.95,
		CatalogVersion: "2024.1+abc",
		Duration:       1500 * time.Microsecond,
		DecidedAt:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *HandlerSuite) TestVerify() {
	s.Run("converts the court payload and renders the decision", func() {
		s.service.EXPECT().Verify(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, p *models.Process) (*decision.Decision, error) {
				s.Equal("0004587-00.2021.4.05.8100", p.Number)
				s.Equal(models.SphereFederal, p.Sphere)
				s.Require().NotNil(p.CondemnationValue)
				s.Equal(67592.0, *p.CondemnationValue)
				s.Require().Len(p.Documents, 1)
				s.Equal(time.Date(2023, 9, 10, 10, 12, 5, 0, time.UTC), p.Documents[0].AttachedAt)
				s.Require().Len(p.Movements, 1)
				s.Equal("TRF5", p.TribunalCode)
				s.True(p.FreeLegalAid)
				s.Require().NotNil(p.Fees)
				s.True(p.Fees.Informed())
				return approved(p.Number), nil
			})

		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/verify", verifyBody))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[DecisionResponse](s.T(), rr)
		s.Equal("approved", resp.Decision)
		s.Equal(0.95, resp.Confidence)
		s.Equal(1.5, resp.ProcessingTimeMs)
		s.Equal("2024.1+abc", resp.CatalogVersion)
		s.Require().Len(resp.Citations, 1)
		s.Equal("POL-1", resp.Citations[0].PolicyID)
	})

	s.Run("malformed json is a bad request", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/verify", `{"numeroProcesso":`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("missing number never reaches the service", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/verify", `{"esfera":"Federal"}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("unknown sphere is a validation error", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/verify",
			`{"numeroProcesso":"1","esfera":"Militar"}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("service validation errors are surfaced", func() {
		s.service.EXPECT().Verify(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeValidation, "condemnation value must not be negative"))

		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/verify",
			`{"numeroProcesso":"1","esfera":"Federal","valorCondenacao":-1}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("internal errors hide their description", func() {
		s.service.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(nil, errors.New("boom"))

		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/verify", verifyBody))
		s.Equal(http.StatusInternalServerError, rr.Code)
		body := testutil.UnmarshalErrorResponse(s.T(), rr)
		s.Equal("internal_error", body["error"])
		s.NotContains(body, "error_description")
	})
}

func (s *HandlerSuite) TestVerifyBatch() {
	s.Run("item errors do not fail the batch", func() {
		body := `{"processes": [
			{"numeroProcesso": "A-1", "esfera": "Federal", "valorCondenacao": 5000},
			{"numeroProcesso": 123},
			{"numeroProcesso": "A-3", "esfera": "Militar"}
		]}`

		s.service.EXPECT().VerifyItems(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, items []service.BatchItem) ([]service.BatchResult, error) {
				s.Require().Len(items, 3)
				s.NoError(items[0].Err)
				s.Equal("A-1", items[0].Process.Number)
				s.True(dErrors.HasCode(items[1].Err, dErrors.CodeBadRequest))
				s.True(dErrors.HasCode(items[2].Err, dErrors.CodeValidation))
				return []service.BatchResult{
					{Index: 0, ProcessNumber: "A-1", Decision: approved("A-1")},
					{Index: 1, Err: dErrors.Wrap(items[1].Err, dErrors.CodeBatchItem, "item 1: malformed process")},
					{Index: 2, ProcessNumber: "A-3", Err: dErrors.Wrap(items[2].Err, dErrors.CodeBatchItem, "item 2: malformed process")},
				}, nil
			})

		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/verify/batch", body))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[BatchResponse](s.T(), rr)
		_, err := uuid.Parse(resp.BatchID)
		s.NoError(err)
		s.Equal(3, resp.Total)
		s.Equal(1, resp.Succeeded)
		s.Equal(2, resp.Failed)
		s.Equal(1, resp.ByOutcome["approved"])
		s.Require().Len(resp.Results, 3)
		s.Require().NotNil(resp.Results[0].Decision)
		s.Equal("approved", resp.Results[0].Decision.Decision)
		s.Require().NotNil(resp.Results[1].Error)
		s.Equal("bad_request", resp.Results[1].Error.Code)
		s.Equal("validation_error", resp.Results[2].Error.Code)
		s.Equal("A-3", resp.Results[2].ProcessNumber)
	})

	s.Run("empty batch is rejected before the service", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/verify/batch", `{"processes":[]}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("oversized batch is rejected by the service", func() {
		s.service.EXPECT().VerifyItems(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeValidation, "batch exceeds maximum of 50 processes"))

		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/verify/batch",
			`{"processes":[{"numeroProcesso":"1","esfera":"Federal"}]}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})
}

func (s *HandlerSuite) TestProcessHistory() {
	s.Run("unknown process is not found", func() {
		s.service.EXPECT().History(gomock.Any(), "9999").
			Return(nil, dErrors.New(dErrors.CodeNotFound, "no verification found for process 9999"))

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/process/9999"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("lists verifications oldest first", func() {
		first := history.NewRecord(approved("42"), false, "req-1", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
		rejected := approved("42")
		rejected.Outcome = decision.OutcomeRejected
		second := history.NewRecord(rejected, true, "req-2", time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC))
		s.service.EXPECT().History(gomock.Any(), "42").Return([]history.Record{first, second}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/process/42"))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[HistoryResponse](s.T(), rr)
		s.Equal(2, resp.Total)
		s.Equal("rejected", resp.Latest)
		s.True(resp.Verifications[1].CacheHit)
		s.Equal([]string{"POL-1"}, resp.Verifications[0].PolicyIDs)
	})
}

func (s *HandlerSuite) TestListProcesses() {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	s.Run("defaults to the first hundred of every outcome", func() {
		page := service.HistoryPage{Total: 1, Records: []history.Record{history.NewRecord(approved("7"), false, "req-1", at)}}
		s.service.EXPECT().ListHistory(gomock.Any(), decision.Outcome(""), service.DefaultListLimit, 0).Return(page, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/process"))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[ProcessListResponse](s.T(), rr)
		s.Equal(1, resp.Total)
		s.Equal(1, resp.Returned)
		s.Equal(service.DefaultListLimit, resp.Limit)
		s.Empty(resp.Decision)
		s.Require().Len(resp.Verifications, 1)
		s.Equal("7", resp.Verifications[0].ProcessNumber)
		s.Equal("approved", resp.Verifications[0].Decision)
	})

	s.Run("trailing slash lists too", func() {
		s.service.EXPECT().ListHistory(gomock.Any(), decision.Outcome(""), service.DefaultListLimit, 0).
			Return(service.HistoryPage{Records: []history.Record{}}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/process/"))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[ProcessListResponse](s.T(), rr)
		s.NotNil(resp.Verifications)
	})

	s.Run("passes filter and window through", func() {
		s.service.EXPECT().ListHistory(gomock.Any(), decision.OutcomeRejected, 10, 20).
			Return(service.HistoryPage{Total: 25, Records: []history.Record{}}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/process?decision=Rejected&limit=10&offset=20"))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[ProcessListResponse](s.T(), rr)
		s.Equal(25, resp.Total)
		s.Equal(0, resp.Returned)
		s.Equal("rejected", resp.Decision)
		s.Equal(20, resp.Offset)
	})

	s.Run("non-integer parameters are rejected before the service", func() {
		for _, path := range []string{"/process?limit=ten", "/process?offset=1.5"} {
			rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, path))
			testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
		}
	})

	s.Run("out of range window is a validation error", func() {
		for _, limit := range []int{0, service.MaxListLimit + 1} {
			s.service.EXPECT().ListHistory(gomock.Any(), decision.Outcome(""), limit, 0).
				Return(service.HistoryPage{}, dErrors.New(dErrors.CodeValidation, "limit must be between 1 and 1000"))

			rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/process?limit="+strconv.Itoa(limit)))
			testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
		}
	})
}

func (s *HandlerSuite) TestListPolicies() {
	catalog := policy.DefaultCatalog(policy.DefaultRules())
	s.service.EXPECT().Catalog().Return(catalog)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/policies"))

	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[PoliciesResponse](s.T(), rr)
	s.Equal(catalog.Version(), resp.Version)
	s.Equal(8, resp.Total)
	s.Equal("POL-4", resp.Policies[3].ID)
	s.Equal("rejecting", resp.Policies[3].Kind)
	s.Equal("exclusion", resp.Policies[3].Category)
}

func (s *HandlerSuite) TestCacheMonitoring() {
	s.service.EXPECT().CacheStats(gomock.Any()).Return(service.CacheReport{
		Enabled: true,
		Stats:   cache.Stats{Entries: 2, Hits: 3, Misses: 1},
		HitRate: 75,
	}, nil)
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/monitoring/cache-stats"))
	testutil.AssertStatusOK(s.T(), rr)
	stats := testutil.UnmarshalResponse[CacheStatsResponse](s.T(), rr)
	s.Equal(CacheStatsResponse{Enabled: true, Entries: 2, Hits: 3, Misses: 1, HitRate: 75}, *stats)

	s.service.EXPECT().ClearCache(gomock.Any()).Return(nil)
	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/monitoring/cache/clear"))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "status", "cleared")

	s.service.EXPECT().ResetCacheStats(gomock.Any()).Return(dErrors.New(dErrors.CodeUnavailable, "reset cache stats"))
	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/monitoring/cache/reset-stats"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusServiceUnavailable, "unavailable")
}

func TestItemError(t *testing.T) {
	validation := dErrors.Wrap(dErrors.New(dErrors.CodeValidation, "numeroProcesso is required"), dErrors.CodeBatchItem, "item 0")
	assert.Equal(t, "validation_error", itemError(validation).Code)

	panicked := dErrors.Wrap(errors.New("panic: nil map"), dErrors.CodeBatchItem, "item 3: verification failed")
	resp := itemError(panicked)
	require.NotNil(t, resp)
	assert.Equal(t, "batch_item_error", resp.Code)
	assert.Equal(t, "item 3: verification failed: panic: nil map", resp.Description)
}
