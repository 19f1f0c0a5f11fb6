package guest

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidToken = errors.New("invalid token")

// Service issues anonymous shopper identities. A guest token maps to
// the guest id that keys the guest cart slot; it never survives
// sign-in, which is when the cart moves to the persisted store.
type Service struct {
	tokens   *tokenManager
	tokenTTL time.Duration
}

func New() *Service {
	return &Service{
		tokens:   newTokenManager(),
		tokenTTL: 30 * 24 * time.Hour,
	}
}

// Issue mints a fresh guest id and a bearer token for it.
func (s *Service) Issue(ctx context.Context) (token, guestID string, err error) {
	guestID = newGuestID()
	token, err = s.tokens.Issue(guestID, s.tokenTTL)
	if err != nil {
		return "", "", err
	}
	return token, guestID, nil
}

// LookupByToken resolves a guest token to its guest id.
func (s *Service) LookupByToken(ctx context.Context, token string) (string, error) {
	guestID, ok := s.tokens.Validate(token)
	if !ok {
		return "", ErrInvalidToken
	}
	return guestID, nil
}

// TokenTTLSeconds exposes the guest token lifetime in seconds.
func (s *Service) TokenTTLSeconds() int {
	return int(s.tokenTTL.Seconds())
}
