package services

import (
	"errors"
	"testing"

	"minilibrary/internal/models"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	env := newTestEnv(t)

	user, err := env.auth.Register("alice", "alice@library.com", "s3cret")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Role != models.UserRoleUser {
		t.Fatalf("role = %s, want user", user.Role)
	}
	if user.HashedPassword == "s3cret" {
		t.Fatal("password stored in plain text")
	}

	got, err := env.auth.Authenticate("alice", "s3cret")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("authenticated id = %d, want %d", got.ID, user.ID)
	}

	if _, err := env.auth.Authenticate("alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password = %v, want ErrInvalidCredentials", err)
	}
	if _, err := env.auth.Authenticate("nobody", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user = %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterDuplicates(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.auth.Register("alice", "alice@library.com", "pw"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := env.auth.Register("alice", "other@library.com", "pw"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("duplicate username = %v, want ErrUserExists", err)
	}
	if _, err := env.auth.Register("alice2", "alice@library.com", "pw"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("duplicate email = %v, want ErrUserExists", err)
	}
}
