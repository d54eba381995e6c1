// internal/services/order_service.go
package services

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	checkoutsession "github.com/stripe/stripe-go/v74/checkout/session"

	"github.com/licenseforge/licenseforge/internal/apperrors"
	"github.com/licenseforge/licenseforge/internal/config"
	"github.com/licenseforge/licenseforge/internal/models"
	"github.com/licenseforge/licenseforge/internal/repository"
)

// OrderService issues licenses when a Stripe checkout completes and can
// backfill past orders. A product selects its generator through the
// "generator_id" key in its Stripe metadata; products without one fall
// back to the configured default generator.
type OrderService struct {
	licenseService *LicenseService
	config         *config.Config
}

// Backfill steps. The cursor is opaque to callers and resumable: feed
// the returned cursor back in to continue after a failure.
const (
	backfillStepCount   = 1
	backfillStepProcess = 2
)

type BackfillCursor struct {
	Step          int    `json:"step"`
	StartingAfter string `json:"starting_after,omitempty"`
	Total         int    `json:"total"`
	Processed     int    `json:"processed"`
}

type BackfillResult struct {
	Cursor          BackfillCursor `json:"cursor"`
	Done            bool           `json:"done"`
	PercentComplete float64        `json:"percent_complete"`
	Issued          int            `json:"issued"`
}

func NewOrderService(licenseService *LicenseService, cfg *config.Config) *OrderService {
	stripe.Key = cfg.Payment.StripeSecretKey
	return &OrderService{
		licenseService: licenseService,
		config:         cfg,
	}
}

// HandleCheckoutCompleted issues licenses for every line item of a
// completed checkout session and marks them sold. Idempotent per order:
// an order that already has licenses is skipped.
func (s *OrderService) HandleCheckoutCompleted(sessionID string) ([]*models.License, error) {
	params := &stripe.CheckoutSessionParams{}
	params.AddExpand("line_items")
	params.AddExpand("line_items.data.price.product")

	sess, err := checkoutsession.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch checkout session %s: %w", sessionID, err)
	}

	orderID, err := orderReference(sess)
	if err != nil {
		return nil, err
	}

	existing, _, err := s.licenseService.Query(licenseOrderFilter(orderID))
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		logrus.WithField("order_id", orderID).Info("Order already has licenses, skipping issuance")
		return nil, nil
	}

	var issued []*models.License
	for _, item := range sess.LineItems.Data {
		generatorID, productID, err := s.resolveGenerator(item)
		if err != nil {
			return nil, err
		}

		count := int(item.Quantity)
		if count <= 0 {
			count = 1
		}

		status := models.LicenseStatusSold
		licenses, err := s.licenseService.Generate(&GenerateLicensesRequest{
			Count:       count,
			GeneratorID: generatorID,
			OrderID:     &orderID,
			ProductID:   productID,
			Status:      status,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to issue licenses for order %d: %w", orderID, err)
		}
		issued = append(issued, licenses...)
	}

	logrus.WithFields(logrus.Fields{
		"order_id": orderID,
		"count":    len(issued),
	}).Info("Issued licenses for completed order")

	return issued, nil
}

// BackfillPastOrders walks completed checkout sessions in pages,
// issuing licenses for any order that has none yet. Step 1 counts
// sessions so later pages can report percent complete; step 2 processes
// them. Call repeatedly with the returned cursor until Done.
func (s *OrderService) BackfillPastOrders(cursor BackfillCursor, batchSize int) (*BackfillResult, error) {
	if batchSize <= 0 || batchSize > 100 {
		batchSize = 25
	}
	if cursor.Step == 0 {
		cursor.Step = backfillStepCount
	}

	switch cursor.Step {
	case backfillStepCount:
		total, err := s.countCompletedSessions()
		if err != nil {
			return nil, err
		}
		cursor.Step = backfillStepProcess
		cursor.Total = total
		return &BackfillResult{Cursor: cursor, Done: total == 0, PercentComplete: 0}, nil

	case backfillStepProcess:
		return s.processBackfillPage(cursor, batchSize)

	default:
		return nil, fmt.Errorf("unknown backfill step %d", cursor.Step)
	}
}

func (s *OrderService) countCompletedSessions() (int, error) {
	listParams := &stripe.CheckoutSessionListParams{}
	listParams.Filters.AddFilter("limit", "", "100")
	listParams.Filters.AddFilter("status", "", "complete")

	total := 0
	iter := checkoutsession.List(listParams)
	for iter.Next() {
		total++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to count checkout sessions: %w", err)
	}
	return total, nil
}

func (s *OrderService) processBackfillPage(cursor BackfillCursor, batchSize int) (*BackfillResult, error) {
	listParams := &stripe.CheckoutSessionListParams{}
	listParams.Filters.AddFilter("limit", "", strconv.Itoa(batchSize))
	listParams.Filters.AddFilter("status", "", "complete")
	if cursor.StartingAfter != "" {
		listParams.Filters.AddFilter("starting_after", "", cursor.StartingAfter)
	}

	issued := 0
	seen := 0
	iter := checkoutsession.List(listParams)
	for iter.Next() {
		sess := iter.CheckoutSession()
		seen++
		cursor.StartingAfter = sess.ID
		cursor.Processed++

		licenses, err := s.HandleCheckoutCompleted(sess.ID)
		if err != nil {
			// The cursor still points at the failed session's
			// predecessor state, so the caller can resume.
			if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrInvalidSpec) {
				logrus.WithError(err).WithField("session", sess.ID).Warn("Skipping order during backfill")
				continue
			}
			return nil, err
		}
		issued += len(licenses)

		if seen >= batchSize {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list checkout sessions: %w", err)
	}

	done := seen < batchSize
	percent := 100.0
	if cursor.Total > 0 && !done {
		percent = float64(cursor.Processed) / float64(cursor.Total) * 100
		if percent > 100 {
			percent = 100
		}
	}

	return &BackfillResult{
		Cursor:          cursor,
		Done:            done,
		PercentComplete: percent,
		Issued:          issued,
	}, nil
}

func (s *OrderService) resolveGenerator(item *stripe.LineItem) (int64, *int64, error) {
	var productID *int64

	if item.Price != nil && item.Price.Product != nil {
		product := item.Price.Product
		if raw, ok := product.Metadata["product_id"]; ok {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
				productID = &id
			}
		}
		if raw, ok := product.Metadata["generator_id"]; ok {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: product %s has malformed generator_id %q",
					apperrors.ErrInvalidSpec, product.ID, raw)
			}
			return id, productID, nil
		}
	}

	if s.config.Order.DefaultGeneratorID == 0 {
		return 0, nil, fmt.Errorf("%w: no generator for line item and no default configured",
			apperrors.ErrInvalidSpec)
	}
	return s.config.Order.DefaultGeneratorID, productID, nil
}

func licenseOrderFilter(orderID int64) repository.LicenseFilter {
	return repository.LicenseFilter{OrderID: &orderID}
}

func orderReference(sess *stripe.CheckoutSession) (int64, error) {
	if sess.ClientReferenceID == "" {
		return 0, fmt.Errorf("%w: checkout session %s carries no order reference",
			apperrors.ErrInvalidSpec, sess.ID)
	}
	orderID, err := strconv.ParseInt(sess.ClientReferenceID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: order reference %q is not numeric",
			apperrors.ErrInvalidSpec, sess.ClientReferenceID)
	}
	return orderID, nil
}
