package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/splickets/internal/kafka"
	"github.com/magabrotheeeer/splickets/internal/models"
	"github.com/magabrotheeeer/splickets/internal/paymentprovider"
	"github.com/magabrotheeeer/splickets/internal/rabbitmq"
	"github.com/magabrotheeeer/splickets/internal/storage"
)

func signed(payload string) ([]byte, string) {
	body := []byte(payload)
	return body, paymentprovider.Sign(body, webhookSecret, testNow)
}

func TestService_HandleWebhook(t *testing.T) {
	ctx := context.Background()

	t.Run("intent succeeded confirms plan", func(t *testing.T) {
		f := newFixture()
		body, sig := signed(`{"id":"evt_1","type":"payment_intent.succeeded",
			"data":{"object":{"id":"pi_1","status":"succeeded","amount":100000,"currency":"zar"}}}`)
		f.repo.On("GetPlanByIntent", mock.Anything, "pi_1").Return(planIn(models.PlanStatusIntentCreated, false), nil).Once()
		f.repo.On("GetBooking", mock.Anything, int64(42)).Return(testDetails(models.PlanStatusIntentCreated, false), nil).Once()
		f.repo.On("TransitionPlan", mock.Anything, int64(7), models.PlanStatusIntentCreated,
			models.PlanStatusConfirmed, mock.Anything).Return(nil).Once()
		f.events.On("PublishBookingEvent", mock.Anything, mock.Anything).Return(nil).Once()
		f.repo.On("GetUser", mock.Anything, "user-1").Return(testUser(), nil).Once()
		f.queue.On("Publish", mock.Anything, rabbitmq.RoutingEmail, mock.Anything).Return(nil).Once()

		require.NoError(t, f.svc.HandleWebhook(ctx, body, sig))
		f.assertExpectations(t)
	})

	t.Run("already confirmed plan is ignored", func(t *testing.T) {
		f := newFixture()
		body, sig := signed(`{"id":"evt_2","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`)
		f.repo.On("GetPlanByIntent", mock.Anything, "pi_1").Return(planIn(models.PlanStatusConfirmed, false), nil).Once()

		require.NoError(t, f.svc.HandleWebhook(ctx, body, sig))
		f.assertExpectations(t)
	})

	t.Run("deposit paid after booking cancelled", func(t *testing.T) {
		f := newFixture()
		body, sig := signed(`{"id":"evt_5","type":"payment_intent.succeeded",
			"data":{"object":{"id":"pi_1","status":"succeeded","amount":20000,"currency":"zar"}}}`)
		f.repo.On("GetPlanByIntent", mock.Anything, "pi_1").Return(planIn(models.PlanStatusCancelled, false), nil).Once()
		f.repo.On("GetBooking", mock.Anything, int64(42)).Return(testDetails(models.PlanStatusCancelled, false), nil).Once()
		f.events.On("PublishBookingEvent", mock.Anything, mock.MatchedBy(func(ev kafka.BookingEvent) bool {
			return ev.Type == kafka.EventPaidAfterCancel && ev.BookingID == 42
		})).Return(nil).Once()

		require.NoError(t, f.svc.HandleWebhook(ctx, body, sig))
		f.assertExpectations(t)
		f.repo.AssertNotCalled(t, "TransitionPlan", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.queue.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("intent of another system", func(t *testing.T) {
		f := newFixture()
		body, sig := signed(`{"id":"evt_3","type":"payment_intent.succeeded","data":{"object":{"id":"pi_x"}}}`)
		f.repo.On("GetPlanByIntent", mock.Anything, "pi_x").Return(nil, storage.ErrNotFound).Once()

		require.NoError(t, f.svc.HandleWebhook(ctx, body, sig))
	})

	t.Run("invoice failure is only logged", func(t *testing.T) {
		f := newFixture()
		body, sig := signed(`{"id":"evt_4","type":"invoice.payment_failed",
			"data":{"object":{"id":"in_1","subscription":"sub_1","amount_due":20000,"currency":"zar"}}}`)

		require.NoError(t, f.svc.HandleWebhook(ctx, body, sig))
		f.assertExpectations(t)
	})

	t.Run("bad signature", func(t *testing.T) {
		f := newFixture()
		body, _ := signed(`{"id":"evt_5","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`)
		sig := paymentprovider.Sign(body, "other_secret", testNow)

		err := f.svc.HandleWebhook(ctx, body, sig)
		assert.ErrorIs(t, err, paymentprovider.ErrInvalidSignature)
	})

	t.Run("secret not configured", func(t *testing.T) {
		f := newFixture()
		f.svc.opts.WebhookSecret = ""
		body, sig := signed(`{}`)

		assert.ErrorIs(t, f.svc.HandleWebhook(ctx, body, sig), ErrWebhookNotConfigured)
	})
}
