package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rootle-api/internal/models"
)

func TestRequestListOpenByDepartment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	now := time.Now()
	dept := "d1"
	deptName := "Computer Science"
	rows := sqlmock.NewRows([]string{"id", "requester_id", "department_id", "title", "description", "fulfilled", "fulfilled_by", "fulfilled_at", "created_at", "requester_name", "department_name"}).
		AddRow("q1", "u1", dept, "Need CSC301 Past Questions", "", false, nil, nil, now, "Bola", deptName)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE rr.fulfilled = FALSE AND rr.department_id = $1 ORDER BY rr.created_at DESC")).
		WithArgs(dept).
		WillReturnRows(rows)

	items, err := repo.ListOpen(context.Background(), dept)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Bola", items[0].RequesterName)
	require.NotNil(t, items[0].DepartmentName)
	assert.Equal(t, deptName, *items[0].DepartmentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestFulfillAlreadyFulfilled(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE resource_requests SET fulfilled = TRUE, fulfilled_by = $2, fulfilled_at = $3 WHERE id = $1 AND fulfilled = FALSE")).
		WithArgs("q1", "u2", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.Fulfill(context.Background(), "q1", "u2", at)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestCreateForcesOpen(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectExec("INSERT INTO resource_requests").WillReturnResult(sqlmock.NewResult(0, 1))

	req := &models.ResourceRequest{RequesterID: "u1", Title: "Need notes", Fulfilled: true}
	require.NoError(t, repo.Create(context.Background(), req))
	assert.False(t, req.Fulfilled)
	assert.NotEmpty(t, req.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
