package httptransport

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"github.com/kedh/regcore/internal/commitlog"
	"github.com/kedh/regcore/internal/label"
	"github.com/kedh/regcore/internal/platform/clock"
	"github.com/kedh/regcore/internal/platform/config"
	"github.com/kedh/regcore/internal/registry/index"
	"github.com/kedh/regcore/internal/registry/info"
	"github.com/kedh/regcore/internal/registry/lifecycle"
	"github.com/kedh/regcore/internal/registry/store"
	"github.com/kedh/regcore/internal/registry/transfer"
)

const signingKey = "test-signing-key"

var start = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

type RouterSuite struct {
	suite.Suite
	router http.Handler
	clock  *clock.Fake
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := slog.Default()
	mem := store.NewMemory()
	s.clock = clock.NewFake(start)

	clStore := commitlog.NewMemoryStore()
	commitLog, err := commitlog.NewLog(clStore, 3)
	s.Require().NoError(err)
	merger := index.NewMerger(index.NewMemoryStore(), mem.Stores().Resources)

	handler := NewHandler(
		logger,
		transfer.NewService(mem.Stores(), mem, commitLog, s.clock, transfer.DefaultPolicy(), nil, logger),
		info.NewService(mem.Stores().Resources),
		lifecycle.NewService(mem.Stores(), mem, commitLog, merger, s.clock, logger),
		merger,
		label.NewService(label.NewMemoryStore()),
		commitlog.NewCheckpointer(commitLog),
		commitlog.NewKiller(commitLog, config.EnvUnitTest, logger),
		NewAdminValidator(signingKey),
		s.clock.Now,
	)
	s.router = NewRouter(handler)
}

func (s *RouterSuite) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) adminToken(scope string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AdminClaims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(signingKey))
	s.Require().NoError(err)
	return signed
}

func (s *RouterSuite) createDomain() {
	rec := s.do(http.MethodPut, "/registry/resources/1-ROID", map[string]any{
		"kind":              "domain",
		"name":              "example.test",
		"sponsor":           "TheRegistrar",
		"authInfo":          "password123",
		"registrationYears": 1,
	}, nil)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
}

func (s *RouterSuite) TestHealthz() {
	rec := s.do(http.MethodGet, "/healthz", nil, nil)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *RouterSuite) TestResourceRoundTrip() {
	s.createDomain()

	rec := s.do(http.MethodGet, "/registry/resources/1-ROID", nil, nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var view struct {
		RepoID         string `json:"repoId"`
		CurrentSponsor string `json:"currentSponsor"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &view))
	s.Equal("1-ROID", view.RepoID)
	s.Equal("TheRegistrar", view.CurrentSponsor)
}

func (s *RouterSuite) TestMissingResourceIs404() {
	rec := s.do(http.MethodGet, "/registry/resources/9-ROID", nil, nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *RouterSuite) TestBadAsOfIs400() {
	rec := s.do(http.MethodGet, "/registry/resources/1-ROID?asOf=yesterday", nil, nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RouterSuite) TestTransferFlow() {
	s.createDomain()
	s.clock.Advance(48 * time.Hour)

	rec := s.do(http.MethodPost, "/registry/resources/1-ROID/transfer:request", map[string]any{
		"actor":      "NewRegistrar",
		"authInfo":   "password123",
		"clientTrid": "ABC-12345",
	}, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var view struct {
		Transfer struct {
			Status    string `json:"status"`
			GainingID string `json:"gainingId"`
		} `json:"transfer"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &view))
	s.Equal("PENDING", view.Transfer.Status)
	s.Equal("NewRegistrar", view.Transfer.GainingID)

	// Wrong credential on the resolution maps to 403.
	rec = s.do(http.MethodPost, "/registry/resources/1-ROID/transfer:reject", map[string]any{
		"actor":    "TheRegistrar",
		"authInfo": "wrong",
	}, nil)
	s.Equal(http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/registry/resources/1-ROID/transfer:approve", map[string]any{
		"actor": "TheRegistrar",
	}, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	// Resolving again conflicts: nothing is pending anymore.
	rec = s.do(http.MethodPost, "/registry/resources/1-ROID/transfer:cancel", map[string]any{
		"actor": "NewRegistrar",
	}, nil)
	s.Equal(http.StatusConflict, rec.Code)
}

func (s *RouterSuite) TestNameLookup() {
	s.createDomain()

	rec := s.do(http.MethodGet, "/registry/names/example.test", nil, nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var out struct {
		Resources []struct {
			RepoID string `json:"repoId"`
		} `json:"resources"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	s.Require().Len(out.Resources, 1)
	s.Equal("1-ROID", out.Resources[0].RepoID)
}

func (s *RouterSuite) TestAdminRoutesRequireToken() {
	s.Run("no token", func() {
		rec := s.do(http.MethodPost, "/task/commitlog/checkpoint", nil, nil)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("garbage token", func() {
		rec := s.do(http.MethodPost, "/task/commitlog/checkpoint", nil,
			map[string]string{"Authorization": "Bearer nope"})
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("token without admin scope", func() {
		rec := s.do(http.MethodPost, "/task/commitlog/checkpoint", nil,
			map[string]string{"Authorization": "Bearer " + s.adminToken("reader")})
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("admin token passes", func() {
		rec := s.do(http.MethodPost, "/task/commitlog/checkpoint", nil,
			map[string]string{"Authorization": "Bearer " + s.adminToken("admin")})
		s.Equal(http.StatusOK, rec.Code, rec.Body.String())
	})
}

func (s *RouterSuite) TestKillAll() {
	rec := s.do(http.MethodPost, "/task/commitlog/killall", nil,
		map[string]string{"Authorization": "Bearer " + s.adminToken("admin")})
	s.Require().Equal(http.StatusOK, rec.Code)

	var out struct {
		Deleted int64 `json:"deleted"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	s.Zero(out.Deleted)
}

func (s *RouterSuite) TestLabelAdmin() {
	auth := map[string]string{"Authorization": "Bearer " + s.adminToken("admin")}

	rec := s.do(http.MethodPut, "/admin/labels/tld-premium", map[string]any{
		"kind":  "premium",
		"lines": []string{"rich,100.00"},
	}, auth)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodDelete, "/admin/labels/tld-premium", nil, auth)
	s.Equal(http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodDelete, "/admin/labels/tld-premium", nil, auth)
	s.Equal(http.StatusNotFound, rec.Code)
}
