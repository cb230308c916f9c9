// Package notify delivers push notifications to provider devices via
// Firebase Cloud Messaging.
//
// Delivery is best-effort by contract: a failed push never affects offer or
// booking state. When FCM credentials are not configured the engine runs
// with the no-op notifier.
package notify

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/rahulm/quickserve/internal/metrics"
	"github.com/rahulm/quickserve/internal/model"
)

// Notifier pushes an offer to the provider it was created for.
type Notifier interface {
	NewAssignment(ctx context.Context, offer model.Offer, booking *model.BookingWithDetails) error
}

// DeviceTokens lists a user's registered FCM tokens.
type DeviceTokens interface {
	TokensByUser(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// ProviderLookup resolves a provider id to its profile (for the user id).
type ProviderLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Provider, error)
}

// ─── FCM notifier ───────────────────────────────────────────

// FCMNotifier fans an offer notification out to every device of the
// provider's user.
type FCMNotifier struct {
	client    *messaging.Client
	devices   DeviceTokens
	providers ProviderLookup
	log       zerolog.Logger
}

// NewFCMNotifier initializes the Firebase app from a credentials file and
// returns a notifier backed by its messaging client.
func NewFCMNotifier(
	ctx context.Context,
	credentialsFile string,
	devices DeviceTokens,
	providers ProviderLookup,
	log zerolog.Logger,
) (*FCMNotifier, error) {

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("notify: init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("notify: init messaging client: %w", err)
	}

	return &FCMNotifier{
		client:    client,
		devices:   devices,
		providers: providers,
		log:       log,
	}, nil
}

// NewAssignment sends the offer to all of the provider's registered devices.
// Individual device failures are logged and counted, not returned; the error
// covers only the lookups before any send was attempted.
func (n *FCMNotifier) NewAssignment(
	ctx context.Context,
	offer model.Offer,
	booking *model.BookingWithDetails,
) error {

	provider, err := n.providers.GetByID(ctx, offer.ProviderID)
	if err != nil {
		return fmt.Errorf("notify: resolve provider %s: %w", offer.ProviderID, err)
	}

	tokens, err := n.devices.TokensByUser(ctx, provider.UserID)
	if err != nil {
		return fmt.Errorf("notify: tokens for user %s: %w", provider.UserID, err)
	}
	if len(tokens) == 0 {
		n.log.Warn().
			Str("provider_id", offer.ProviderID.String()).
			Str("booking_id", offer.BookingID.String()).
			Msg("no devices registered for provider")
		return nil
	}

	title, body, data := buildAssignmentMessage(offer, booking)

	for _, token := range tokens {
		_, err := n.client.Send(ctx, &messaging.Message{
			Token: token,
			Notification: &messaging.Notification{
				Title: title,
				Body:  body,
			},
			Data: data,
		})
		if err != nil {
			metrics.PushFailures.Inc()
			n.log.Warn().
				Err(err).
				Str("offer_id", offer.ID.String()).
				Str("provider_id", offer.ProviderID.String()).
				Msg("push send failed")
			continue
		}
		n.log.Debug().
			Str("offer_id", offer.ID.String()).
			Str("provider_id", offer.ProviderID.String()).
			Msg("push sent")
	}
	return nil
}

// buildAssignmentMessage assembles the rich notification: service name in the
// title, short location and estimated earnings in the body, ids in the data
// payload so the app can deep-link to the offer.
func buildAssignmentMessage(
	offer model.Offer,
	booking *model.BookingWithDetails,
) (title, body string, data map[string]string) {

	serviceName := "Service"
	if booking != nil && booking.Service != nil {
		serviceName = booking.Service.Name
	}

	locationShort := "Your area"
	if booking != nil && booking.Location != "" {
		locationShort = strings.TrimSpace(strings.SplitN(booking.Location, ",", 2)[0])
	}

	earnings := ""
	if booking != nil && booking.EstimatedPrice != nil && *booking.EstimatedPrice > 0 {
		earnings = fmt.Sprintf("₹%d", int(*booking.EstimatedPrice))
	}

	title = fmt.Sprintf("New %s Request!", serviceName)

	parts := []string{"Location: " + locationShort}
	if earnings != "" {
		parts = append(parts, "Earn: "+earnings)
	}
	parts = append(parts, "Tap to view details")
	body = strings.Join(parts, " • ")

	data = map[string]string{
		"booking_id":         offer.BookingID.String(),
		"offer_id":           offer.ID.String(),
		"type":               "new_assignment",
		"service_name":       serviceName,
		"estimated_earnings": earnings,
	}
	return title, body, data
}

// ─── No-op notifier ─────────────────────────────────────────

// NopNotifier drops every notification. Used when FCM credentials are not
// configured and in tests.
type NopNotifier struct{}

// NewAssignment discards the notification.
func (NopNotifier) NewAssignment(context.Context, model.Offer, *model.BookingWithDetails) error {
	return nil
}

var (
	_ Notifier = (*FCMNotifier)(nil)
	_ Notifier = NopNotifier{}
)
