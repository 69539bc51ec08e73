package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/usethreadkit/threadkit/internal/apperr"
	"github.com/usethreadkit/threadkit/internal/index"
	"github.com/usethreadkit/threadkit/internal/models"
)

// Credentials implements the one auth method this module provides a full
// server-side implementation for: email + password. OAuth, OTP delivery,
// and web3-signature verification remain external collaborators — see
// OAuthProvider, OTPSender and SignatureVerifier — consumed only through the "given a
// credential, produce a user identity" contract.
type Credentials struct {
	keeper *index.Keeper
}

func NewCredentials(keeper *index.Keeper) *Credentials {
	return &Credentials{keeper: keeper}
}

// Register provisions a new user with a locally-hashed password. Fails with
// Conflict if the email or username is already claimed.
func (c *Credentials) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	if existing, ok, err := c.keeper.LookupByEmail(ctx, email); err != nil {
		return nil, err
	} else if ok {
		_ = existing
		return nil, apperr.Conflict("email already registered")
	}
	if _, ok, err := c.keeper.LookupByUsername(ctx, name); err != nil {
		return nil, err
	} else if ok {
		return nil, apperr.Conflict("username already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	user := &models.User{
		ID:    models.NewUserID(),
		Name:  name,
		Email: email,
	}
	if err := c.keeper.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	if err := c.keeper.SetPassword(ctx, user.ID, string(hash)); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies an email/password pair and returns the matching user.
func (c *Credentials) Login(ctx context.Context, email, password string) (*models.User, error) {
	userID, ok, err := c.keeper.LookupByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Unauthorized("invalid email or password")
	}

	hash, ok, err := c.keeper.PasswordHash(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Unauthorized("this account has no password set; use its original sign-in method")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, apperr.Unauthorized("invalid email or password")
	}

	return c.keeper.GetUser(ctx, userID)
}
