package pizza

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/patric-chuzhbe/flatapi/internal/apperr"
	"github.com/patric-chuzhbe/flatapi/internal/logger"
	"github.com/patric-chuzhbe/flatapi/internal/metrics"
)

func (s *Service) bill(cart *Cart) ([]PurchaseLine, float64, int64, error) {
	lines := make([]PurchaseLine, 0, len(cart.Items))
	var cents int64
	for _, item := range cart.Items {
		menuItem, ok := s.menu.find(item.ID)
		if !ok {
			return nil, 0, 0, apperr.Validation(fmt.Sprintf("Item %d is no longer on the menu", item.ID))
		}
		priceCents := int64(math.Round(menuItem.Price * 100))
		if item.Amount <= 0 || priceCents > (math.MaxInt64-cents)/int64(item.Amount) {
			return nil, 0, 0, apperr.Validation(fmt.Sprintf("Item %d has an invalid amount", item.ID))
		}
		lineCents := priceCents * int64(item.Amount)
		cents += lineCents
		lines = append(lines, PurchaseLine{
			ID:       item.ID,
			Name:     menuItem.Name,
			Amount:   item.Amount,
			Price:    menuItem.Price,
			Subtotal: float64(lineCents) / 100,
		})
	}

	return lines, float64(cents) / 100, cents, nil
}

// Purchase charges the owner for the cart, records the purchase, drops the
// cart and mails a receipt in the background.
func (s *Service) Purchase(ctx context.Context, tokenID, cartID string) (string, error) {
	cartID = strings.TrimSpace(cartID)
	if !IsCartID(cartID) {
		return "", apperr.Validation("Valid cartId has to be sent in header")
	}

	user, unlock, err := s.ownerOf(ctx, tokenID)
	if err != nil {
		return "", err
	}
	defer unlock()

	cart, key, err := s.ownedCart(ctx, cartID, user.Email)
	if err != nil {
		return "", err
	}

	lines, total, cents, err := s.bill(cart)
	if err != nil {
		return "", err
	}

	chargeID, err := s.payments.Charge(ctx, cents, fmt.Sprintf("Pizza order %s for %s", cartID, user.Email))
	metrics.RecordGatewayCall("stripe", err)
	if err != nil {
		logger.Log.Warnw("payment failed", "cart", key, "err", err)
		return "", apperr.Validation("Payment error")
	}

	purchase := &Purchase{
		PurchaseID:  uuid.NewString(),
		CartID:      cartID,
		Email:       user.Email,
		Items:       lines,
		Total:       total,
		AmountCents: cents,
		ChargeID:    chargeID,
		CreatedAt:   s.now(),
	}
	if err := s.db.Create(ctx, PurchasesCollection, purchase.PurchaseID, purchase); err != nil {
		logger.Log.Errorw("charged purchase could not be saved", "charge", chargeID, "cart", key, "err", err)
		return "", apperr.Internal(
			"Error saving purchase",
			fmt.Errorf("in internal/pizza/purchases.go/Purchase(): error while `s.db.Create()` calling: %w", err),
		)
	}

	if err := s.removeCart(ctx, user, key); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		logger.Log.Warnw("purchased cart was not cleaned up", "cart", key, "err", err)
	}

	s.sendReceipt(purchase)

	return purchase.PurchaseID, nil
}

func (s *Service) sendReceipt(purchase *Purchase) {
	s.receipts.Add(1)
	go func() {
		defer s.receipts.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.receiptTimeout)
		defer cancel()

		_, err := s.notifier.Send(ctx, purchase.Email, "Your pizza order "+purchase.PurchaseID, receiptText(purchase))
		metrics.RecordGatewayCall("mailgun", err)
		if err != nil {
			logger.Log.Warnw("receipt was not sent", "purchase", purchase.PurchaseID, "err", err)
		}
	}()
}

func receiptText(purchase *Purchase) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for your order %s.\n\n", purchase.PurchaseID)
	for _, line := range purchase.Items {
		fmt.Fprintf(&b, "%d x %s @ %.2f = %.2f\n", line.Amount, line.Name, line.Price, line.Subtotal)
	}
	fmt.Fprintf(&b, "\nTotal: %.2f\n", purchase.Total)

	return b.String()
}
