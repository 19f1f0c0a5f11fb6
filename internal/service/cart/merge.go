package cart

import (
	"context"
	"errors"

	"lavenderlily/internal/domain"
	"lavenderlily/internal/repository/cartline"
)

// SignIn runs the one-time guest→user reconciliation for a shopper who
// just authenticated. Quantities are additive: a guest line matching a
// persisted (product, variant) line increments it, never overwrites
// it. The merge is best-effort per line; lines that fail to apply stay
// in the guest slot for a later retry, while applied lines are removed
// from the slot immediately so a retry can never re-add them.
//
// Once started the merge runs to completion or controlled partial
// failure; the passed context should not carry a request-scoped
// cancellation.
func (s *Service) SignIn(ctx context.Context, guestID, userID string) {
	if guestID == "" || userID == "" {
		return
	}
	if !s.beginMerge(userID) {
		// Another merge is already in flight for this user.
		return
	}
	defer s.endMerge(userID)

	// A still-open guest tab mutates the slot through the same owner
	// lock; holding it for the whole merge keeps those read-modify-
	// write cycles from resurrecting lines the merge already applied.
	guestLock := s.ownerLock(Shopper{GuestID: guestID}.Key())
	guestLock.Lock()
	defer guestLock.Unlock()

	guestLines, err := s.guests.Read(ctx, guestID)
	if err != nil {
		// Guest storage unavailable: nothing to merge this time; the
		// slot is untouched and a later sign-in event retries.
		s.logger.Printf("merge: read guest cart %s: %v", guestID, err)
		return
	}
	if len(guestLines) == 0 {
		return
	}

	persisted, err := s.lines.ListForUser(ctx, userID)
	if err != nil {
		s.logger.Printf("merge: list persisted cart for %s: %v", userID, err)
		return
	}

	var failed []domain.CartLine
	for i, guestLine := range guestLines {
		if err := s.applyGuestLine(ctx, userID, persisted, guestLine); err != nil {
			s.logger.Printf("merge: apply line %s for %s: %v", guestLine.ID, userID, err)
			failed = append(failed, guestLine)
		}
		// Persist progress after every line so neither a crash nor a
		// concurrent retry can apply the same quantities twice.
		remainder := make([]domain.CartLine, 0, len(failed)+len(guestLines)-i-1)
		remainder = append(remainder, failed...)
		remainder = append(remainder, guestLines[i+1:]...)
		if werr := s.guests.Write(ctx, guestID, remainder); werr != nil {
			s.logger.Printf("merge: update guest slot %s: %v", guestID, werr)
		}
	}

	if len(failed) == 0 {
		if err := s.guests.Clear(ctx, guestID); err != nil {
			s.logger.Printf("merge: clear guest slot %s: %v", guestID, err)
		}
	}

	s.notifier.Publish(ctx, Shopper{UserID: userID}.Key())
}

func (s *Service) applyGuestLine(ctx context.Context, userID string, persisted []domain.CartLine, guestLine domain.CartLine) error {
	for _, line := range persisted {
		if line.Matches(guestLine.ProductID, guestLine.Variant) {
			return s.lines.UpdateQuantity(ctx, line.ID, line.Quantity+guestLine.Quantity)
		}
	}

	_, err := s.lines.Insert(ctx, cartline.InsertInput{
		UserID:    userID,
		ProductID: guestLine.ProductID,
		Quantity:  guestLine.Quantity,
		Variant:   guestLine.Variant,
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		return userBackend{repo: s.lines, userID: userID}.
			incrementExisting(ctx, guestLine.ProductID, guestLine.Variant, guestLine.Quantity)
	}
	return err
}

func (s *Service) beginMerge(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, inflight := s.merges[userID]; inflight {
		return false
	}
	s.merges[userID] = struct{}{}
	return true
}

func (s *Service) endMerge(userID string) {
	s.mu.Lock()
	delete(s.merges, userID)
	s.mu.Unlock()
}
