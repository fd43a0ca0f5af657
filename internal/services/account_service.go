package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cobranzas/internal/auth"
	"cobranzas/internal/core"
	"cobranzas/internal/storage"
)

// AccountService owns registration and authentication on top of the users
// table.
type AccountService struct {
	storage *storage.SQLiteRepository
}

func NewAccountService(storage *storage.SQLiteRepository) *AccountService {
	return &AccountService{storage: storage}
}

// Register normalizes the username, trims and hashes the password and
// creates the account. An already-taken normalized username fails with
// core.ErrDuplicateUser.
func (s *AccountService) Register(ctx context.Context, username, password string) (int64, error) {
	username = core.NormalizeUsername(username)
	password = strings.TrimSpace(password)
	if username == "" {
		return 0, &core.ValidationError{Field: "username", Message: "cannot be empty"}
	}
	if password == "" {
		return 0, &core.ValidationError{Field: "password", Message: "cannot be empty"}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return 0, fmt.Errorf("register user: %w", err)
	}

	id, err := s.storage.CreateUser(ctx, username, hash)
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "User registered", "user_id", id, "username", username)
	return id, nil
}

// Authenticate verifies credentials. An unknown username and a wrong
// password both return core.ErrInvalidCredentials so callers cannot tell
// them apart.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (*core.User, error) {
	username = core.NormalizeUsername(username)
	password = strings.TrimSpace(password)

	user, err := s.storage.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, core.ErrInvalidCredentials
	}

	if !auth.CheckPassword(password, user.PasswordHash) {
		return nil, core.ErrInvalidCredentials
	}

	return user, nil
}
