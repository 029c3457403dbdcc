package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joello61/candi-tracker-api/internal/middleware"
	"github.com/Joello61/candi-tracker-api/internal/models"
	"github.com/Joello61/candi-tracker-api/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func asUser(id int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, id)
		c.Next()
	}
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRespondError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&services.ThrottleError{Wait: 1500 * time.Millisecond}, http.StatusTooManyRequests},
		{services.ErrTooManyAttempts, http.StatusBadRequest},
		{services.ErrCodeInvalid, http.StatusBadRequest},
		{fmt.Errorf("%w: company", services.ErrInvalidInput), http.StatusBadRequest},
		{services.ErrInvalidKind, http.StatusBadRequest},
		{services.ErrCaptchaFailed, http.StatusBadRequest},
		{services.ErrInvalidCredentials, http.StatusUnauthorized},
		{services.ErrInvalidToken, http.StatusUnauthorized},
		{services.ErrEmailNotVerified, http.StatusForbidden},
		{services.ErrNotFound, http.StatusNotFound},
		{services.ErrEmailTaken, http.StatusConflict},
		{services.ErrInvalidTransition, http.StatusConflict},
		{services.ErrDeliveryFailed, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			respondError(c, tc.err)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestRespondErrorThrottleHeaders(t *testing.T) {
	next := time.Date(2025, 3, 10, 12, 1, 0, 0, time.UTC)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondError(c, fmt.Errorf("issue: %w", &services.ThrottleError{NextAllowedAt: next, Wait: 41200 * time.Millisecond}))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "42", w.Header().Get("Retry-After"))
	body := decode(t, w)
	assert.Equal(t, float64(42), body["retry_after"])
	assert.Equal(t, next.Format(time.RFC3339), body["next_allowed_at"])
}

type fakeCodes struct {
	services.VerificationService
	issued    []services.IssueRequest
	issueRes  *services.IssueResult
	issueErr  error
	verifyErr error
	window    *services.RequestWindow
}

func (f *fakeCodes) IssueAndSend(_ context.Context, req services.IssueRequest) (*services.IssueResult, error) {
	f.issued = append(f.issued, req)
	return f.issueRes, f.issueErr
}

func (f *fakeCodes) Verify(context.Context, int64, models.VerificationKind, string) error {
	return f.verifyErr
}

func (f *fakeCodes) CanRequestCode(_ context.Context, _ int64, _ models.VerificationKind, _ models.DeliveryMethod, target string) (*services.RequestWindow, error) {
	if target == "" {
		return nil, services.ErrMissingTarget
	}
	return f.window, nil
}

type fakeLookup map[int64]*models.User

func (f fakeLookup) GetByID(_ context.Context, id int64) (*models.User, error) {
	return f[id], nil
}

func verifyRouter(codes *fakeCodes) *gin.Engine {
	h := NewVerifyHandler(codes, fakeLookup{7: {ID: 7, Email: "ann@example.com", FirstName: "Ann"}})
	r := gin.New()
	g := r.Group("/", asUser(7))
	g.POST("/verification/send", h.Send)
	g.POST("/verification/verify", h.Verify)
	g.GET("/verification/status", h.Status)
	return r
}

func TestVerifySendDefaultsTarget(t *testing.T) {
	codes := &fakeCodes{issueRes: &services.IssueResult{Success: true, Message: "sent"}}
	r := verifyRouter(codes)

	w := do(t, r, http.MethodPost, "/verification/send", `{"kind":"SENSITIVE_ACTION","method":"EMAIL"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, codes.issued, 1)
	assert.Equal(t, "ann@example.com", codes.issued[0].Target)
	assert.Equal(t, int64(7), codes.issued[0].UserID)
	assert.Equal(t, true, decode(t, w)["success"])

	w = do(t, r, http.MethodPost, "/verification/send", `{"kind":"SENSITIVE_ACTION"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifySendOnlyToAddressOnFile(t *testing.T) {
	codes := &fakeCodes{issueRes: &services.IssueResult{Success: true}}
	r := verifyRouter(codes)

	for _, kind := range []string{"PASSWORD_RESET", "ACCOUNT_DELETION", "PHONE_VERIFICATION", "TWO_FACTOR", "EMAIL_VERIFICATION", "NOPE"} {
		body := fmt.Sprintf(`{"kind":%q,"method":"EMAIL","target":"x@evil"}`, kind)
		w := do(t, r, http.MethodPost, "/verification/send", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, kind)
	}
	assert.Empty(t, codes.issued)

	w := do(t, r, http.MethodPost, "/verification/send", `{"kind":"SENSITIVE_ACTION","method":"EMAIL","target":"x@evil"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, codes.issued, 1)
	assert.Equal(t, "ann@example.com", codes.issued[0].Target)
}

func TestVerifySendThrottledAndDeliveryFailure(t *testing.T) {
	codes := &fakeCodes{issueErr: &services.ThrottleError{Wait: 30 * time.Second}}
	r := verifyRouter(codes)
	w := do(t, r, http.MethodPost, "/verification/send", `{"kind":"SENSITIVE_ACTION","method":"EMAIL"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))

	codes.issueErr = fmt.Errorf("email: %w", services.ErrDeliveryFailed)
	codes.issueRes = &services.IssueResult{Success: false, Message: "could not deliver"}
	w = do(t, r, http.MethodPost, "/verification/send", `{"kind":"SENSITIVE_ACTION","method":"EMAIL"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "could not deliver", decode(t, w)["message"])
}

func TestVerifyAndStatus(t *testing.T) {
	codes := &fakeCodes{window: &services.RequestWindow{Allowed: true}}
	r := verifyRouter(codes)

	w := do(t, r, http.MethodPost, "/verification/verify", `{"kind":"SENSITIVE_ACTION","code":"123456"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["verified"])

	codes.verifyErr = services.ErrCodeInvalid
	w = do(t, r, http.MethodPost, "/verification/verify", `{"kind":"SENSITIVE_ACTION","code":"000000"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/verification/verify", `{"kind":"NOPE","code":"1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	codes.verifyErr = nil
	w = do(t, r, http.MethodPost, "/verification/verify", `{"kind":"PASSWORD_RESET","code":"123456"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "dedicated flows verify their own codes")

	w = do(t, r, http.MethodGet, "/verification/status?kind=TWO_FACTOR&method=EMAIL", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["allowed"])

	// no phone on file
	w = do(t, r, http.MethodGet, "/verification/status?kind=PHONE_VERIFICATION&method=SMS", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/verification/status?kind=TWO_FACTOR&method=FAX", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type fakeApps struct {
	services.ApplicationService
	rows map[int64]*models.Application
}

func (f *fakeApps) Create(_ context.Context, a *models.Application) error {
	if a.Status == "" {
		a.Status = models.ApplicationApplied
	}
	a.ID = int64(len(f.rows) + 1)
	f.rows[a.ID] = a
	return nil
}

func (f *fakeApps) Get(_ context.Context, userID, id int64) (*models.Application, error) {
	a, ok := f.rows[id]
	if !ok || a.UserID != userID {
		return nil, services.ErrNotFound
	}
	return a, nil
}

func (f *fakeApps) UpdateStatus(ctx context.Context, userID, id int64, status models.ApplicationStatus) (*models.Application, error) {
	a, err := f.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if status == models.ApplicationAccepted && a.Status != models.ApplicationOffer {
		return nil, services.ErrInvalidTransition
	}
	a.Status = status
	return a, nil
}

func (f *fakeApps) List(_ context.Context, userID int64, _ *models.ApplicationStatus) ([]models.Application, error) {
	var out []models.Application
	for _, a := range f.rows {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func TestApplicationHandlers(t *testing.T) {
	h := NewApplicationHandler(&fakeApps{rows: map[int64]*models.Application{}})
	r := gin.New()
	g := r.Group("/", asUser(3))
	g.GET("/applications", h.List)
	g.POST("/applications", h.Create)
	g.GET("/applications/:id", h.Get)
	g.POST("/applications/:id/status", h.UpdateStatus)
	anon := r.Group("/anon")
	anon.GET("/applications", h.List)

	w := do(t, r, http.MethodGet, "/applications", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())

	w = do(t, r, http.MethodPost, "/applications", `{"company":"Acme","position":"Go engineer"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "APPLIED", decode(t, w)["status"])

	w = do(t, r, http.MethodPost, "/applications", `{"company":"Acme"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/applications/1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, http.MethodGet, "/applications/99", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, r, http.MethodGet, "/applications/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/applications/1/status", `{"status":"ACCEPTED"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = do(t, r, http.MethodPost, "/applications/1/status", `{"status":"INTERVIEW"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "INTERVIEW", decode(t, w)["status"])

	w = do(t, r, http.MethodGet, "/anon/applications", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestHealthz(t *testing.T) {
	r := gin.New()
	healthy := true
	r.GET("/healthz", NewHealthHandler(pingerFunc(func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("connection refused")
	})).Healthz)

	w := do(t, r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	healthy = false
	w = do(t, r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
