package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/rootle-api/internal/models"
	"github.com/noah-isme/rootle-api/internal/repository"
	appErrors "github.com/noah-isme/rootle-api/pkg/errors"
)

const testDeptID = "6f1c2b8e-3a51-4c1f-9a0e-2d7b5e4c9a10"

type mockAuthRepo struct {
	users      map[string]*models.User
	createErr  error
	auditLogs  []*models.AuditLog
	profileErr error
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{users: map[string]*models.User{}}
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := m.users[email]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	if m.profileErr != nil {
		return nil, m.profileErr
	}
	for _, user := range m.users {
		if user.ID == id {
			return &models.UserProfile{User: *user, DepartmentName: "Computer Science", FacultyName: "Science"}, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrDuplicateEmail
	}
	user.ID = "user-" + user.Email
	m.users[user.Email] = user
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type departmentCheckerStub struct{ known map[string]bool }

func (d departmentCheckerStub) Exists(ctx context.Context, id string) (bool, error) {
	return d.known[id], nil
}

func newAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, departmentCheckerStub{known: map[string]bool{testDeptID: true}}, nil, nil, AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "rootle",
		BcryptCost:        bcrypt.MinCost,
	})
}

func TestRegisterAndLoginCarriesDepartment(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newAuthService(repo)

	info, err := svc.Register(context.Background(), models.RegisterRequest{
		FullName:     "Ada <b>Obi</b>",
		Email:        "Ada@Campus.edu",
		Password:     "password1",
		Role:         models.RoleLecturer,
		DepartmentID: testDeptID,
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@campus.edu", info.Email)
	assert.Equal(t, "Ada Obi", info.FullName)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "ada@campus.edu", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, info.ID, claims.UserID)
	assert.Equal(t, models.RoleLecturer, claims.Role)
	assert.Equal(t, testDeptID, claims.DepartmentID)
	assert.Len(t, repo.auditLogs, 2)
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	svc := newAuthService(newMockAuthRepo())
	_, err := svc.Register(context.Background(), models.RegisterRequest{
		FullName: "Root", Email: "root@campus.edu", Password: "password1", Role: models.RoleAdmin, DepartmentID: testDeptID,
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestRegisterUnknownDepartment(t *testing.T) {
	svc := newAuthService(newMockAuthRepo())
	_, err := svc.Register(context.Background(), models.RegisterRequest{
		FullName: "Bola", Email: "bola@campus.edu", Password: "password1", Role: models.RoleStudent,
		DepartmentID: "0b7d9a52-1111-4c1f-9a0e-2d7b5e4c9a10",
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newAuthService(repo)
	req := models.RegisterRequest{FullName: "Bola", Email: "bola@campus.edu", Password: "password1", Role: models.RoleStudent, DepartmentID: testDeptID}

	_, err := svc.Register(context.Background(), req)
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newAuthService(repo)
	_, err := svc.Register(context.Background(), models.RegisterRequest{FullName: "Bola", Email: "bola@campus.edu", Password: "password1", Role: models.RoleStudent, DepartmentID: testDeptID})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "bola@campus.edu", Password: "nope"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "ghost@campus.edu", Password: "nope"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	svc := newAuthService(newMockAuthRepo())
	claims := &models.JWTClaims{
		UserID: "u1",
		Role:   models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "rootle",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(forged)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestMe(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newAuthService(repo)
	info, err := svc.Register(context.Background(), models.RegisterRequest{FullName: "Bola", Email: "bola@campus.edu", Password: "password1", Role: models.RoleStudent, DepartmentID: testDeptID})
	require.NoError(t, err)

	profile, err := svc.Me(context.Background(), &models.JWTClaims{UserID: info.ID})
	require.NoError(t, err)
	assert.Equal(t, "Computer Science", profile.DepartmentName)

	_, err = svc.Me(context.Background(), nil)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
