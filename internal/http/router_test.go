package httpapi

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/taxlien-online/taxlien-nft/internal/lien/gateway"
	lienhandler "github.com/taxlien-online/taxlien-nft/internal/lien/handler"
	"github.com/taxlien-online/taxlien-nft/internal/lien/idempotency"
	"github.com/taxlien-online/taxlien-nft/internal/lien/service"
	lienstore "github.com/taxlien-online/taxlien-nft/internal/lien/store/lien"
	registrystore "github.com/taxlien-online/taxlien-nft/internal/lien/store/registry"
	"github.com/taxlien-online/taxlien-nft/internal/token"
	id "github.com/taxlien-online/taxlien-nft/pkg/domain"
	"github.com/taxlien-online/taxlien-nft/pkg/testutil"
)

type RouterSuite struct {
	suite.Suite
	router   http.Handler
	tokens   *token.Service
	ledger   *gateway.Ledger
	investor id.AccountID
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	admin := id.AccountID(uuid.New())
	feeAccount := id.AccountID(uuid.New())
	escrow := id.AccountID(uuid.New())
	s.investor = id.AccountID(uuid.New())

	s.ledger = gateway.NewLedger()
	svc := service.New(registrystore.NewInMemory(), lienstore.NewInMemory(), s.ledger, escrow)
	_, err := svc.Initialize(context.Background(), admin, feeAccount)
	s.Require().NoError(err)

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	s.tokens = token.NewService("test-key", "taxlien")
	s.router = NewRouter(RouterConfig{
		Liens:     lienhandler.New(svc, idempotency.NewMemory(), logger),
		Validator: s.tokens,
		Logger:    logger,
	})
}

func (s *RouterSuite) bearer(account id.AccountID) string {
	tokenString, err := s.tokens.GenerateToken(account, time.Hour)
	s.Require().NoError(err)
	return "Bearer " + tokenString
}

func (s *RouterSuite) TestHealthz() {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, testutil.NewRequest(s.T(), http.MethodGet, "/healthz"))
	s.Equal(http.StatusOK, rec.Code)
}

func (s *RouterSuite) TestMetricsExposed() {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, testutil.NewRequest(s.T(), http.MethodGet, "/metrics"))
	s.Equal(http.StatusOK, rec.Code)
}

func (s *RouterSuite) TestReadsAreOpen() {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, testutil.NewRequest(s.T(), http.MethodGet, "/liens"))
	s.Equal(http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, testutil.NewRequest(s.T(), http.MethodGet, "/registry"))
	s.Equal(http.StatusOK, rec.Code)
}

func (s *RouterSuite) TestMutationsRequireToken() {
	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/liens"},
		{http.MethodPut, "/liens/0/status"},
		{http.MethodPost, "/liens/0/redeem"},
		{http.MethodPost, "/liens/0/claim"},
		{http.MethodPost, "/registry"},
	} {
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, testutil.NewRequest(s.T(), route.method, route.path))
		s.Equal(http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.path)
	}
}

func (s *RouterSuite) TestInvalidTokenRejected() {
	req := testutil.NewRequest(s.T(), http.MethodPost, "/liens/0/redeem")
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

// TestCreateThroughMiddleware exercises the whole chain: JWT resolution,
// request-scoped time, handler, service, ledger.
func (s *RouterSuite) TestCreateThroughMiddleware() {
	s.ledger.Deposit(s.investor, 103_000_000)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/liens", map[string]any{
		"state":          "FL",
		"county":         "Miami-Dade",
		"parcel_id":      "01-2345-678-9012",
		"face_amount":    100_000_000,
		"property_value": 150_000_000,
		"apr":            1200,
		"payment":        103_000_000,
	})
	req.Header.Set("Authorization", s.bearer(s.investor))

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	s.NotEmpty(rec.Header().Get("X-Request-ID"))

	var resp struct {
		ID uint64 `json:"id"`
	}
	testutil.DecodeJSON(s.T(), rec, &resp)
	s.Zero(resp.ID)
	s.Equal(uint64(0), s.ledger.Balance(s.investor))
}
