package app

import (
	"errors"
	"testing"
	"time"

	"prepai/internal/pkg/jwtutil"
	"prepai/internal/repository"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	db := newTestDB(t)
	return NewAuthService(repository.NewUserRepository(db), "test-secret", time.Hour)
}

func TestSignupCreatesUserAndToken(t *testing.T) {
	svc := newAuthService(t)

	result, err := svc.Signup(SignupInput{Email: "Alice@Example.COM ", Password: "secret1"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if result.User.Email != "alice@example.com" {
		t.Fatalf("email not normalized, got %q", result.User.Email)
	}
	if result.User.PasswordHash == "secret1" || result.User.PasswordHash == "" {
		t.Fatalf("password stored in the clear or missing")
	}

	claims, err := jwtutil.ParseToken("test-secret", result.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != result.User.ID {
		t.Fatalf("token uid: want=%d got=%d", result.User.ID, claims.UserID)
	}
}

func TestSignupRejectsDuplicateEmail(t *testing.T) {
	svc := newAuthService(t)

	if _, err := svc.Signup(SignupInput{Email: "bob@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	_, err := svc.Signup(SignupInput{Email: "BOB@example.com", Password: "another1"})
	if !errors.Is(err, ErrEmailExists) {
		t.Fatalf("want ErrEmailExists, got %v", err)
	}
}

func TestSignupRejectsShortPassword(t *testing.T) {
	svc := newAuthService(t)

	_, err := svc.Signup(SignupInput{Email: "carol@example.com", Password: "12345"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}

func TestLoginSucceedsWithCorrectPassword(t *testing.T) {
	svc := newAuthService(t)

	if _, err := svc.Signup(SignupInput{Email: "dave@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	result, err := svc.Login(LoginInput{Email: " Dave@Example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Token == "" {
		t.Fatalf("expected token")
	}
}

func TestLoginRejectsWrongPasswordAndUnknownUser(t *testing.T) {
	svc := newAuthService(t)

	if _, err := svc.Signup(SignupInput{Email: "erin@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, err := svc.Login(LoginInput{Email: "erin@example.com", Password: "wrong-pass"}); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("wrong password: want ErrInvalidCredential, got %v", err)
	}
	if _, err := svc.Login(LoginInput{Email: "nobody@example.com", Password: "secret1"}); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("unknown user: want ErrInvalidCredential, got %v", err)
	}
}

func TestGetUserByIDRejectsZero(t *testing.T) {
	svc := newAuthService(t)
	if _, err := svc.GetUserByID(0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}
