package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mozilla/clouseau/internal/common"
	"github.com/mozilla/clouseau/internal/domain"
	"github.com/mozilla/clouseau/internal/middleware"
	"github.com/mozilla/clouseau/internal/navigation"
	"github.com/mozilla/clouseau/internal/render"
	"github.com/mozilla/clouseau/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mock DashboardService ---

type mockDashboardService struct {
	mock.Mock
}

func (m *mockDashboardService) Open(ctx context.Context, sid string, link service.DeepLink) (*service.Page, error) {
	args := m.Called(ctx, sid, link)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Page), args.Error(1)
}

func (m *mockDashboardService) Dispatch(ctx context.Context, sid, kind, value string) (*service.Page, error) {
	args := m.Called(ctx, sid, kind, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Page), args.Error(1)
}

func (m *mockDashboardService) View(ctx context.Context, sid string) (*service.Page, error) {
	args := m.Called(ctx, sid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Page), args.Error(1)
}

func (m *mockDashboardService) Catalog(ctx context.Context, sid string) (domain.Catalog, error) {
	args := m.Called(ctx, sid)
	return args.Get(0).(domain.Catalog), args.Error(1)
}

// --- Helpers ---

func testPage(t *testing.T, signature string) *service.Page {
	t.Helper()
	ds := domain.Dataset{signature: {{Count: 2, UUIDs: []string{"uuid-1"}}}}
	st := navigation.State{Product: "Firefox", Channel: "nightly", Date: "2016-08-15", Signature: signature, HasSignature: true, Dataset: ds, Loaded: true}

	r := render.NewRenderer(nil)
	view := r.Render(
		domain.Catalog{Products: []string{"Firefox"}, Dates: []string{"2016-08-15"}},
		&domain.AggregatedView{
			Signatures: []domain.RankedSignature{{Signature: signature, Total: 2}},
			Selected:   signature,
			Total:      2,
			Backtraces: []domain.RankedBacktrace{{Backtrace: ds[signature][0], Percentage: 100}},
		},
		render.Selection{Product: st.Product, Date: st.Date},
		nil,
	)
	return &service.Page{State: st, View: view}
}

func setupRouter(svc service.DashboardService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.SetHTMLTemplate(PageTemplate())

	h := NewDashboardHandler(svc, 2*time.Second)
	g := r.Group("", middleware.Session(middleware.SessionConfig{CookieName: "clouseau_session", MaxAge: time.Hour}))
	g.GET("/", h.Page)
	g.GET("/api/v1/view", h.View)
	g.GET("/api/v1/catalog", h.Catalog)
	g.POST("/api/v1/events", h.Dispatch)
	return r
}

// --- Tests ---

func TestPage_RendersHTMLWithDeepLink(t *testing.T) {
	svc := new(mockDashboardService)
	link := service.DeepLink{Product: "Firefox", Date: "2016-08-15", Signature: "js::Foo<T>", HasSignature: true}
	svc.On("Open", mock.Anything, mock.AnythingOfType("string"), link).Return(testPage(t, "js::Foo<T>"), nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/?product=Firefox&date=2016-08-15&signature=js::Foo%3CT%3E", nil)
	setupRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<title>Backtraces and patches in Firefox - 2016-08-15</title>")
	assert.Contains(t, body, "js::Foo&lt;T&gt;")
	assert.NotContains(t, body, "js::Foo<T>")
	assert.Contains(t, body, `id="main"`)
	assert.NotContains(t, body, "http-equiv=\"refresh\"")
	svc.AssertExpectations(t)
}

func TestPage_LoadingAddsRefresh(t *testing.T) {
	svc := new(mockDashboardService)
	page := testPage(t, "sig")
	page.Loading = true
	svc.On("Open", mock.Anything, mock.Anything, service.DeepLink{}).Return(page, nil)

	w := httptest.NewRecorder()
	setupRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http-equiv="refresh" content="2"`)
}

func TestPage_NegotiatesJSON(t *testing.T) {
	svc := new(mockDashboardService)
	svc.On("Open", mock.Anything, mock.Anything, service.DeepLink{}).Return(testPage(t, "sig"), nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "application/json")
	setupRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	var resp struct {
		Data service.Page `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "sig", resp.Data.State.Signature)
}

func TestDispatch_ReturnsView(t *testing.T) {
	svc := new(mockDashboardService)
	svc.On("Dispatch", mock.Anything, mock.Anything, "select_signature", "sig").Return(testPage(t, "sig"), nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(`{"kind":"select_signature","value":"sig"}`))
	req.Header.Set("Content-Type", "application/json")
	setupRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data struct {
			State navigation.State `json:"state"`
			View  render.View      `json:"view"`
		} `json:"data"`
		Meta common.Meta `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "sig", resp.Data.State.Signature)
	assert.Equal(t, "sig", resp.Data.View.SignaturesTitle)
	assert.Equal(t, "nightly", resp.Meta.Channel)
	svc.AssertExpectations(t)
}

func TestDispatch_RejectsUnknownKind(t *testing.T) {
	svc := new(mockDashboardService)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(`{"kind":"dataset_loaded","value":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	setupRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestView_SessionNotFound(t *testing.T) {
	svc := new(mockDashboardService)
	svc.On("View", mock.Anything, mock.Anything).Return(nil, common.ErrSessionNotFound)

	w := httptest.NewRecorder()
	setupRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/view", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestCatalog_EmptySlices(t *testing.T) {
	svc := new(mockDashboardService)
	svc.On("Catalog", mock.Anything, mock.Anything).Return(domain.Catalog{}, nil)

	w := httptest.NewRecorder()
	setupRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"products":[],"dates":[]}}`, w.Body.String())
}

func TestFail_StatusMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{common.ErrUnknownEvent, http.StatusBadRequest},
		{common.ErrSessionClosed, http.StatusNotFound},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		svc := new(mockDashboardService)
		svc.On("View", mock.Anything, mock.Anything).Return(nil, tt.err)

		w := httptest.NewRecorder()
		setupRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/view", nil))
		assert.Equal(t, tt.status, w.Code, tt.err.Error())
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", NewHealthHandler(fakePinger{err: errors.New("down")}, func() int { return 3 }).Health)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "unavailable", body["cache"])
	assert.Equal(t, float64(3), body["sessions"])
}
