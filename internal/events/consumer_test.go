package events

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noghresod/sync-service-go/internal/apperr"
	"github.com/noghresod/sync-service-go/internal/order"
)

type fakeUpdater struct {
	applied []string
	err     error
}

func (f *fakeUpdater) ApplyStatus(_ context.Context, orderID string, next order.Status) error {
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, orderID+":"+string(next))
	return nil
}

type fakeProcessed struct {
	seen map[string]bool
}

func newFakeProcessed() *fakeProcessed {
	return &fakeProcessed{seen: map[string]bool{}}
}

func (f *fakeProcessed) WasProcessed(_ context.Context, id string) (bool, error) {
	return f.seen[id], nil
}

func (f *fakeProcessed) MarkProcessed(_ context.Context, id string) error {
	f.seen[id] = true
	return nil
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l.WithField("component", "events")
}

func statusEvent(t *testing.T, eventID, orderID, status string) []byte {
	t.Helper()
	body, err := json.Marshal(EventEnvelope[OrderStatusChanged]{
		EventName:    OrderStatusChangedName,
		EventVersion: OrderStatusChangedVersion,
		EventID:      eventID,
		Producer:     "storefront-backend",
		PartitionKey: orderID,
		OccurredAt:   time.Now().UTC(),
		Payload:      OrderStatusChanged{OrderID: orderID, Status: status},
	})
	require.NoError(t, err)
	return body
}

func TestHandleOrderStatusApplies(t *testing.T) {
	updater := &fakeUpdater{}
	processed := newFakeProcessed()

	requeue, err := handleOrderStatus(context.Background(), updater, processed,
		statusEvent(t, "ev1", "o1", "confirmed"), testLogger())
	require.NoError(t, err)
	assert.False(t, requeue)
	assert.Equal(t, []string{"o1:confirmed"}, updater.applied)
	assert.True(t, processed.seen["ev1"])
}

func TestHandleOrderStatusDeduplicates(t *testing.T) {
	updater := &fakeUpdater{}
	processed := newFakeProcessed()
	processed.seen["ev1"] = true

	requeue, err := handleOrderStatus(context.Background(), updater, processed,
		statusEvent(t, "ev1", "o1", "confirmed"), testLogger())
	require.NoError(t, err)
	assert.False(t, requeue)
	assert.Empty(t, updater.applied, "a processed event must not be applied again")
}

func TestHandleOrderStatusMalformedDropped(t *testing.T) {
	requeue, err := handleOrderStatus(context.Background(), &fakeUpdater{}, newFakeProcessed(),
		[]byte(`{broken`), testLogger())
	require.Error(t, err)
	assert.False(t, requeue, "malformed messages must not requeue")
}

func TestHandleOrderStatusWrongIdentityDropped(t *testing.T) {
	body, err := json.Marshal(EventEnvelope[OrderStatusChanged]{
		EventName:    "product.updated",
		EventVersion: 1,
		EventID:      "ev2",
		PartitionKey: "o1",
		Payload:      OrderStatusChanged{OrderID: "o1", Status: "confirmed"},
	})
	require.NoError(t, err)

	requeue, err2 := handleOrderStatus(context.Background(), &fakeUpdater{}, newFakeProcessed(), body, testLogger())
	require.Error(t, err2)
	assert.False(t, requeue)
}

func TestHandleOrderStatusUnknownStatusDropped(t *testing.T) {
	requeue, err := handleOrderStatus(context.Background(), &fakeUpdater{}, newFakeProcessed(),
		statusEvent(t, "ev3", "o1", "limbo"), testLogger())
	require.Error(t, err)
	assert.False(t, requeue)
}

func TestHandleOrderStatusStaleTransitionDropped(t *testing.T) {
	updater := &fakeUpdater{err: apperr.New(apperr.Validation, "illegal transition")}

	requeue, err := handleOrderStatus(context.Background(), updater, newFakeProcessed(),
		statusEvent(t, "ev4", "o1", "confirmed"), testLogger())
	require.Error(t, err)
	assert.False(t, requeue, "stale transitions must be dropped, not requeued")
}

func TestHandleOrderStatusUnknownOrderDropped(t *testing.T) {
	updater := &fakeUpdater{err: order.ErrNotFound}

	requeue, err := handleOrderStatus(context.Background(), updater, newFakeProcessed(),
		statusEvent(t, "ev5", "o1", "confirmed"), testLogger())
	require.Error(t, err)
	assert.False(t, requeue)
}

func TestHandleOrderStatusTransientFailureRequeues(t *testing.T) {
	updater := &fakeUpdater{err: apperr.New(apperr.Unknown, "db down")}

	requeue, err := handleOrderStatus(context.Background(), updater, newFakeProcessed(),
		statusEvent(t, "ev6", "o1", "confirmed"), testLogger())
	require.Error(t, err)
	assert.True(t, requeue)
}

func TestEnvelopeValidate(t *testing.T) {
	env := EventEnvelope[OrderStatusChanged]{
		EventName:    OrderStatusChangedName,
		EventVersion: OrderStatusChangedVersion,
		EventID:      "ev1",
		PartitionKey: "o1",
	}
	require.NoError(t, env.Validate(OrderStatusChangedName, OrderStatusChangedVersion))

	missingID := env
	missingID.EventID = ""
	require.Error(t, missingID.Validate(OrderStatusChangedName, OrderStatusChangedVersion))

	missingKey := env
	missingKey.PartitionKey = ""
	require.Error(t, missingKey.Validate(OrderStatusChangedName, OrderStatusChangedVersion))
}
