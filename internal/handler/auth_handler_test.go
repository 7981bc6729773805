package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rootle-api/internal/middleware"
	"github.com/noah-isme/rootle-api/internal/models"
	appErrors "github.com/noah-isme/rootle-api/pkg/errors"
)

type fakeAuthService struct {
	registered models.RegisterRequest
	loginErr   error
}

func (f *fakeAuthService) Register(_ context.Context, req models.RegisterRequest) (*models.UserInfo, error) {
	f.registered = req
	return &models.UserInfo{ID: "u1", Email: req.Email, Role: req.Role}, nil
}

func (f *fakeAuthService) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &models.LoginResponse{AccessToken: "jwt", TokenType: "Bearer"}, nil
}

func (f *fakeAuthService) Me(_ context.Context, actor *models.JWTClaims) (*models.UserProfile, error) {
	return &models.UserProfile{User: models.User{ID: actor.UserID}, DepartmentName: "Computer Science"}, nil
}

type fakeDepartmentService struct {
	hit bool
}

func (f fakeDepartmentService) List(context.Context) ([]models.Department, bool, error) {
	return []models.Department{{ID: "d1", Name: "Computer Science"}}, f.hit, nil
}

func authRouter(svc *fakeAuthService, claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(svc, fakeDepartmentService{hit: false})
	router := gin.New()
	router.Use(middleware.WithResponseMeta(), withClaims(claims))
	router.POST("/auth/register", h.Register)
	router.POST("/auth/login", h.Login)
	router.GET("/auth/me", h.Me)
	router.GET("/auth/departments", h.Departments)
	return router
}

func TestRegisterCapturesClientInfo(t *testing.T) {
	svc := &fakeAuthService{}
	router := authRouter(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(`{"fullName":"Ada","email":"ada@uni.edu","password":"secret1","role":"student","departmentId":"d1"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "test-agent")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "ada@uni.edu", svc.registered.Email)
	assert.Equal(t, "test-agent", svc.registered.UserAgent)
}

func TestLoginFailure(t *testing.T) {
	router := authRouter(&fakeAuthService{loginErr: appErrors.ErrInvalidCredentials}, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@b.c","password":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeRequiresClaims(t *testing.T) {
	rec := httptest.NewRecorder()
	authRouter(&fakeAuthService{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	authRouter(&fakeAuthService{}, studentClaims()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Computer Science")
}

func TestDepartmentsReportCacheMiss(t *testing.T) {
	rec := httptest.NewRecorder()
	authRouter(&fakeAuthService{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/departments", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
}
