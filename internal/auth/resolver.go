// Package auth resolves the bearer credentials a chat session presents.
//
// Tokens live in role-keyed slots of a key/value store, the same layout the
// web client keeps in local storage: the active role under "donatyRole" and
// one token per role.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/umar/donaty-chat/internal/models"
)

const (
	KeyRole           = "donatyRole"
	KeyDonorToken     = "donatyToken"
	KeyAdminToken     = "donatyAdminToken"
	KeyCollectorToken = "donatyRecolectorToken"
)

// ErrNoToken is returned when the slot for the requested role is empty.
var ErrNoToken = errors.New("auth: no token stored")

// Store is a key/value credential store. Get returns "" and no error for a
// missing key.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
}

// Resolver resolves the bearer token for a role. An empty role means the
// role currently stored as active.
type Resolver interface {
	Resolve(ctx context.Context, role models.Role) (Credentials, error)
}

type Credentials struct {
	Token string
	Role  models.Role
}

type StoreResolver struct {
	Store Store
}

func NewStoreResolver(s Store) *StoreResolver {
	return &StoreResolver{Store: s}
}

func (r *StoreResolver) Resolve(ctx context.Context, role models.Role) (Credentials, error) {
	if role == "" {
		stored, err := r.Store.Get(ctx, KeyRole)
		if err != nil {
			return Credentials{}, fmt.Errorf("auth: read role: %w", err)
		}
		role = models.Role(stored)
	}

	token, err := r.Store.Get(ctx, TokenKey(role))
	if err != nil {
		return Credentials{}, fmt.Errorf("auth: read token: %w", err)
	}
	if token == "" {
		return Credentials{Role: role}, ErrNoToken
	}
	return Credentials{Token: token, Role: role}, nil
}

// TokenKey maps a role to its token slot. Donors and unknown roles share the
// default slot.
func TokenKey(role models.Role) string {
	switch role {
	case models.RoleAdmin:
		return KeyAdminToken
	case models.RoleCollector:
		return KeyCollectorToken
	default:
		return KeyDonorToken
	}
}

// SaveLogin records token in role's slot and makes role the active one.
func SaveLogin(ctx context.Context, s WritableStore, role models.Role, token string) error {
	if !role.Valid() {
		return fmt.Errorf("auth: unknown role %q", role)
	}
	if token == "" {
		return ErrNoToken
	}
	if err := s.Set(ctx, TokenKey(role), token); err != nil {
		return err
	}
	return s.Set(ctx, KeyRole, string(role))
}

// Logout clears the active role and every token slot.
func Logout(ctx context.Context, s WritableStore) error {
	return s.Delete(ctx, KeyRole, KeyDonorToken, KeyAdminToken, KeyCollectorToken)
}
