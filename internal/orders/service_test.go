package orders

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackmesh/storefront-backend/pkg/db"
	"github.com/stackmesh/storefront-backend/pkg/db/models"
	"github.com/stackmesh/storefront-backend/pkg/enums"
	pkgerrors "github.com/stackmesh/storefront-backend/pkg/errors"
	"github.com/stackmesh/storefront-backend/pkg/outbox"
	"github.com/stackmesh/storefront-backend/pkg/pagination"
)

func setupOrdersService(t *testing.T) (Service, Repository, *db.Client) {
	t.Helper()

	client, err := db.NewSQLite("")
	require.NoError(t, err)
	setupOrdersTestDB(t)

	repo := NewRepository(client.DB())
	outboxSvc := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	svc, err := NewService(repo, client, outboxSvc)
	require.NoError(t, err)
	return svc, repo, client
}

func TestOrdersServiceGetOrderMasksForeignOrders(t *testing.T) {
	svc, repo, _ := setupOrdersService(t)
	ctx := context.Background()

	owner := uuid.New()
	order := seedOrder(t, repo, owner, time.Now().UTC())

	got, err := svc.GetOrder(ctx, owner, false, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = svc.GetOrder(ctx, uuid.New(), false, order.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())

	asAdmin, err := svc.GetOrder(ctx, uuid.New(), true, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, asAdmin.ID)
}

func TestOrdersServiceListOrders(t *testing.T) {
	svc, repo, _ := setupOrdersService(t)
	ctx := context.Background()

	userID := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	seedOrder(t, repo, userID, base)
	seedOrder(t, repo, userID, base.Add(time.Minute))

	result, err := svc.ListOrders(ctx, userID, pagination.Params{Limit: 1})
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)
	assert.NotEmpty(t, result.NextCursor)
}

func TestOrdersServiceUpdateStatusHappyPath(t *testing.T) {
	svc, repo, client := setupOrdersService(t)
	ctx := context.Background()

	userID := uuid.New()
	adminID := uuid.New()
	order := seedOrder(t, repo, userID, time.Now().UTC())

	updated, err := svc.UpdateStatus(ctx, UpdateStatusInput{
		OrderID:     order.ID,
		Target:      enums.OrderStatusPaid,
		ActorUserID: adminID,
		ActorRole:   string(enums.UserRoleAdmin),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid.String(), updated.Status)

	var row models.OutboxEvent
	require.NoError(t, client.DB().Where("aggregate_id = ?", order.ID).First(&row).Error)
	assert.Equal(t, enums.EventOrderStatusChanged, row.EventType)
	assert.Equal(t, enums.AggregateOrder, row.AggregateType)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, adminID, envelope.Actor.UserID)

	var event StatusChangedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &event))
	assert.Equal(t, enums.OrderStatusPending, event.FromStatus)
	assert.Equal(t, enums.OrderStatusPaid, event.ToStatus)
	assert.Equal(t, userID, event.UserID)
}

func TestOrdersServiceUpdateStatusRejectsIllegalTransition(t *testing.T) {
	svc, repo, client := setupOrdersService(t)
	ctx := context.Background()

	order := seedOrder(t, repo, uuid.New(), time.Now().UTC())
	require.NoError(t, repo.UpdateStatus(ctx, order.ID, enums.OrderStatusDelivered))

	_, err := svc.UpdateStatus(ctx, UpdateStatusInput{
		OrderID: order.ID,
		Target:  enums.OrderStatusCancelled,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "delivered", details["current"])
	assert.Equal(t, "cancelled", details["requested"])

	// the failed transition must not leave an event behind
	var count int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).Where("aggregate_id = ?", order.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestOrdersServiceUpdateStatusRejectsRepeat(t *testing.T) {
	svc, repo, _ := setupOrdersService(t)

	order := seedOrder(t, repo, uuid.New(), time.Now().UTC())

	_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: order.ID,
		Target:  enums.OrderStatusPending,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestOrdersServiceUpdateStatusOwnerScoped(t *testing.T) {
	svc, repo, _ := setupOrdersService(t)
	ctx := context.Background()

	owner := uuid.New()
	order := seedOrder(t, repo, owner, time.Now().UTC())

	// a stranger's cancel reads as a missing order
	_, err := svc.UpdateStatus(ctx, UpdateStatusInput{
		OrderID:     order.ID,
		Target:      enums.OrderStatusCancelled,
		OwnerID:     uuid.New(),
		ActorUserID: uuid.New(),
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())

	loaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, loaded.Status)

	updated, err := svc.UpdateStatus(ctx, UpdateStatusInput{
		OrderID:     order.ID,
		Target:      enums.OrderStatusCancelled,
		OwnerID:     owner,
		ActorUserID: owner,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled.String(), updated.Status)
}

func TestOrdersServiceUpdateStatusValidatesInput(t *testing.T) {
	svc, _, _ := setupOrdersService(t)

	_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: uuid.New(),
		Target:  enums.OrderStatus("refunded"),
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	_, err = svc.UpdateStatus(context.Background(), UpdateStatusInput{Target: enums.OrderStatusPaid})
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestOrdersServiceUpdateStatusMissingOrder(t *testing.T) {
	svc, _, _ := setupOrdersService(t)

	_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: uuid.New(),
		Target:  enums.OrderStatusPaid,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
