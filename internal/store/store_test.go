package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"dealer-portal/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := New(sqlx.NewDb(db, "postgres"))
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

var orderCols = []string{
	"order_id", "dealer_id", "user_id", "product_id", "quantity",
	"customer_name", "customer_email", "customer_phone", "shipping_address", "shipping_pincode",
	"order_status", "payment_status", "total_amount", "tax_amount", "shipping_cost",
	"discount_amount", "payment_method", "transaction_id", "order_date", "updated_at",
	"product_name", "product_price",
}

func orderRow(rows *sqlmock.Rows, id, status string) *sqlmock.Rows {
	return rows.AddRow(
		id, "DLR7", "USR1", "PRO71", 2,
		"Asha", "asha@example.com", "", "12 Main Road", "560001",
		status, "pending", "91.98", "8.00", "4.00",
		"0", "cod", "", fixedNow, fixedNow,
		"Engine Oil", "39.99",
	)
}

func sideEffects(order *models.Order, previous string) (*models.Notification, *models.OutboxEvent, error) {
	id := order.OrderID
	return &models.Notification{
			Type:      models.NotificationOrderAccepted,
			Title:     "Order accepted",
			DealerID:  order.DealerID,
			OrderID:   &id,
			ForDealer: true,
		}, &models.OutboxEvent{
			EventID:     "evt-" + id,
			EventType:   models.EventTypeOrderAccepted,
			AggregateID: id,
			DealerID:    order.DealerID,
			Payload:     []byte(`{}`),
		}, nil
}

func TestTransitionOrders_AcceptsPendingOrder(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders SET order_status").
		WithArgs(models.OrderStatusProcessing, fixedNow, "ORD71", "DLR7", models.OrderStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT .+ FROM orders o LEFT JOIN products p").
		WithArgs("ORD71", "DLR7").
		WillReturnRows(orderRow(sqlmock.NewRows(orderCols), "ORD71", "processing"))
	mock.ExpectQuery("INSERT INTO notifications").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectQuery("INSERT INTO outbox_events").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectCommit()

	results, err := s.TransitionOrders(context.Background(), "DLR7", []string{"ORD71"}, models.OrderStatusProcessing, sideEffects)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Changed)
	assert.Equal(t, models.OrderStatusPending, results[0].PreviousStatus)
	assert.Equal(t, "processing", results[0].Order.OrderStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionOrders_AlreadyAtTargetIsNoop(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders SET order_status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT .+ FROM orders o").
		WillReturnRows(orderRow(sqlmock.NewRows(orderCols), "ORD71", "Processing"))
	mock.ExpectCommit()

	results, err := s.TransitionOrders(context.Background(), "DLR7", []string{"ORD71"}, models.OrderStatusProcessing, sideEffects)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionOrders_OtherStatusConflicts(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders SET order_status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT .+ FROM orders o").
		WillReturnRows(orderRow(sqlmock.NewRows(orderCols), "ORD71", "rejected"))
	mock.ExpectRollback()

	_, err := s.TransitionOrders(context.Background(), "DLR7", []string{"ORD71"}, models.OrderStatusProcessing, sideEffects)
	assert.ErrorIs(t, err, ErrStatusConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionOrders_MissingOrderRollsBackBatch(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders SET order_status").
		WithArgs(models.OrderStatusRejected, fixedNow, "ORD1", "DLR7", models.OrderStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT .+ FROM orders o").
		WillReturnRows(orderRow(sqlmock.NewRows(orderCols), "ORD1", "rejected"))
	mock.ExpectExec("UPDATE orders SET order_status").
		WithArgs(models.OrderStatusRejected, fixedNow, "ORD2", "DLR7", models.OrderStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT .+ FROM orders o").
		WillReturnRows(sqlmock.NewRows(orderCols))
	mock.ExpectRollback()

	_, err := s.TransitionOrders(context.Background(), "DLR7", []string{"ORD1", "ORD2"}, models.OrderStatusRejected, nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionOrders_BatchMovesEveryOrder(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	for _, id := range []string{"ORD1", "ORD2"} {
		mock.ExpectExec("UPDATE orders SET order_status").
			WithArgs(models.OrderStatusProcessing, fixedNow, id, "DLR7", models.OrderStatusPending).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT .+ FROM orders o").
			WithArgs(id, "DLR7").
			WillReturnRows(orderRow(sqlmock.NewRows(orderCols), id, "processing"))
	}
	mock.ExpectCommit()

	results, err := s.TransitionOrders(context.Background(), "DLR7", []string{"ORD1", "ORD2"}, models.OrderStatusProcessing, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "ORD1", results[0].Order.OrderID)
	assert.Equal(t, "ORD2", results[1].Order.OrderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrder_MoneyRoundTrips(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT .+ FROM orders o").
		WithArgs("ORD71", "DLR7").
		WillReturnRows(orderRow(sqlmock.NewRows(orderCols), "ORD71", "pending"))

	order, err := s.GetOrder(context.Background(), "ORD71", "DLR7")
	require.NoError(t, err)
	assert.Equal(t, "91.98", order.TotalAmount.String())
	assert.Equal(t, "39.99", order.ProductPrice.String())
}

func TestGetOrder_OtherDealerIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT .+ FROM orders o").
		WithArgs("ORD71", "DLR9").
		WillReturnRows(sqlmock.NewRows(orderCols))

	_, err := s.GetOrder(context.Background(), "ORD71", "DLR9")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateOrder_AssignsNextID(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT order_id FROM orders WHERE order_id LIKE").
		WithArgs("ORD7%").
		WillReturnRows(sqlmock.NewRows([]string{"order_id"}).AddRow("ORD71").AddRow("ORD73"))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("ORD74").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	order := &models.Order{DealerID: "DLR7", ProductID: "PRO71", Quantity: 1}
	require.NoError(t, s.CreateOrder(context.Background(), order, nil))
	assert.Equal(t, "ORD74", order.OrderID)
	assert.Equal(t, models.OrderStatusPending, order.OrderStatus)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, fixedNow, order.OrderDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOrder_RecordsEffectsOnlyOnChange(t *testing.T) {
	s, mock := newMockStore(t)
	shipped := models.OrderStatusShipped

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT order_status FROM orders .+ FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"order_status"}).AddRow("shipped"))
	mock.ExpectExec("UPDATE orders SET updated_at").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT .+ FROM orders o").
		WillReturnRows(orderRow(sqlmock.NewRows(orderCols), "ORD71", "shipped"))
	mock.ExpectCommit()

	called := false
	effects := func(*models.Order, string) (*models.Notification, *models.OutboxEvent, error) {
		called = true
		return nil, nil, nil
	}

	result, err := s.UpdateOrder(context.Background(), "ORD71", "DLR7", OrderUpdate{OrderStatus: &shipped}, effects)
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListInbox_FoldsByOrder(t *testing.T) {
	s, mock := newMockStore(t)

	cols := []string{"id", "type", "title", "message", "description", "for_admin", "for_dealer",
		"for_user", "for_vendor", "dealer_id", "order_id", "is_read", "metadata", "created_at"}
	mock.ExpectQuery(`SELECT MAX\(m.id\) FROM notifications m`).
		WithArgs("DLR7", 20, 0).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(12, "order_accepted", "Order accepted", "", "", false, true, false, false, "DLR7", "ORD71", false, []byte(`{"order_id":"ORD71"}`), fixedNow).
			AddRow(9, "product_created", "New product", "", "", false, true, false, false, "DLR7", nil, true, nil, fixedNow))

	out, err := s.ListInbox(context.Background(), "DLR7", 20, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "ORD71", *out[0].OrderID)
	assert.Nil(t, out[1].OrderID)
	assert.JSONEq(t, `{"order_id":"ORD71"}`, string(out[0].Metadata))
}

func TestSetNotificationRead_Missing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE notifications SET is_read").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT .+ FROM notifications n WHERE n.id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := s.SetNotificationRead(context.Background(), 4, "DLR7", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteNotification(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM notifications").
		WithArgs(int64(4), "DLR7").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.DeleteNotification(context.Background(), 4, "DLR7")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateBrand_DuplicateName(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT slug FROM brands").
		WithArgs("DLR7", "castrol%").
		WillReturnRows(sqlmock.NewRows([]string{"slug"}))
	mock.ExpectQuery("INSERT INTO brands").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := s.CreateBrand(context.Background(), &models.Brand{DealerID: "DLR7", Name: "Castrol"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestCreateBrand_SuffixesSlug(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT slug FROM brands").
		WillReturnRows(sqlmock.NewRows([]string{"slug"}).AddRow("engine-oil").AddRow("engine-oil2"))
	mock.ExpectQuery("INSERT INTO brands").
		WithArgs("DLR7", "Engine Oil!", "engine-oil3", "", fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectCommit()

	b := &models.Brand{DealerID: "DLR7", Name: "Engine Oil!"}
	require.NoError(t, s.CreateBrand(context.Background(), b))
	assert.Equal(t, "engine-oil3", b.Slug)
	assert.Equal(t, int64(3), b.ID)
}

func TestProcessOutbox(t *testing.T) {
	s, mock := newMockStore(t)

	cols := []string{"id", "event_id", "event_type", "aggregate_id", "dealer_id", "payload", "status",
		"attempts", "next_attempt_at", "last_error", "created_at", "published_at"}
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs(models.OutboxStatusPending, fixedNow, 10).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, "evt-1", "order_accepted", "ORD1", "DLR7", `{}`, "pending", 0, fixedNow, "", fixedNow, nil).
			AddRow(2, "evt-2", "order_rejected", "ORD2", "DLR7", `{}`, "pending", 4, fixedNow, "", fixedNow, nil))
	mock.ExpectExec("UPDATE outbox_events SET status").
		WithArgs(models.OutboxStatusPublished, 1, fixedNow, "", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE outbox_events SET status").
		WithArgs(models.OutboxStatusDead, 5, fixedNow.Add(5*time.Second), "broker down", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := s.ProcessOutbox(context.Background(), 10, 5, time.Second,
		func(_ context.Context, ev *models.OutboxEvent) error {
			if ev.EventID == "evt-2" {
				return errors.New("broker down")
			}
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, OutboxResult{Published: 1, Dead: 1}, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkEventProcessed_IgnoresDuplicates(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO processed_events .+ ON CONFLICT \(event_id\) DO NOTHING`).
		WithArgs("evt-1", "order_placed", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, s.MarkEventProcessed(context.Background(), "evt-1", "order_placed"))
}

func TestMigrate(t *testing.T) {
	s, mock := newMockStore(t)

	for range schema {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	for range indexes {
		mock.ExpectExec("CREATE INDEX IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDialect(t *testing.T) {
	my := Dialect{Driver: DriverMySQL}
	pg := Dialect{Driver: DriverPostgres}

	assert.Equal(t, "id BIGINT AUTO_INCREMENT PRIMARY KEY, m JSON", my.DDL("id {{autoinc}}, m {{json}}"))
	assert.Equal(t, "id BIGSERIAL PRIMARY KEY, m JSONB", pg.DDL("id {{autoinc}}, m {{json}}"))
	assert.Equal(t, "INSERT IGNORE INTO t (a) VALUES (?)", my.InsertIgnore("INSERT INTO t (a) VALUES (?)", "a"))

	_, err := DialectFor("sqlite3")
	assert.Error(t, err)
}

func TestUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&mysql.MySQLError{Number: 1062}))
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.ErrorIs(t, mapErr(&mysql.MySQLError{Number: 1062}), ErrDuplicate)
	assert.True(t, isDuplicateIndex(&mysql.MySQLError{Number: 1061}))
}

func TestIsUnavailable(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	assert.True(t, IsUnavailable(fmt.Errorf("failed to connect: %w", refused)))
	assert.True(t, IsUnavailable(driver.ErrBadConn))
	assert.True(t, IsUnavailable(mysql.ErrInvalidConn))
	assert.False(t, IsUnavailable(&pq.Error{Code: "42703"}))
	assert.False(t, IsUnavailable(nil))
}
