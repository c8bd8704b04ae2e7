package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

func testIdentity() *Identity {
	return &Identity{
		User: User{
			ID:        "3f1c2a9e-8d4b-4c6e-9a1f-2b7d5e8c0a13",
			Email:     "t@example.com",
			CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		PasswordHash: []byte("$2a$04$hash"),
	}
}

func TestPostgresStore_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	identity := testIdentity()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WithArgs(identity.ID, identity.Email, string(identity.PasswordHash), identity.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO user_profiles").
		WithArgs(identity.ID, identity.Email, identity.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	store := NewPostgresStore(db, zap.NewNop())
	err = store.Create(context.Background(), identity)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStore_Create_DuplicateEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	store := NewPostgresStore(db, zap.NewNop())
	err = store.Create(context.Background(), testIdentity())
	if !errors.Is(err, ErrEmailExists) {
		t.Errorf("expected ErrEmailExists, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStore_Create_ProfileFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO user_profiles").WillReturnError(errors.New("relation does not exist"))
	mock.ExpectRollback()

	store := NewPostgresStore(db, zap.NewNop())
	err = store.Create(context.Background(), testIdentity())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if IsValidation(err) {
		t.Errorf("expected internal error, got validation error %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
