package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"dealer-portal/internal/metadata"
	"dealer-portal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspectNotification(t *testing.T) {
	orderID := "ORD1"
	n := &models.Notification{
		ID:       4,
		OrderID:  &orderID,
		Metadata: metadata.Column(`"{\"order_ids\":[\"ORD1\",\"ORD2\"]}"`),
	}

	report := inspectNotification(n)
	assert.Empty(t, report.Problem)
	assert.Equal(t, []string{"ORD1", "ORD2"}, report.OrderIDs)
	require.NotNil(t, report.Snapshot)
}

func TestInspectNotification_ReportsProblems(t *testing.T) {
	report := inspectNotification(&models.Notification{ID: 5, Metadata: metadata.Column(`{oops`)})
	assert.Contains(t, report.Problem, "malformed")
	assert.Empty(t, report.OrderIDs)

	report = inspectNotification(&models.Notification{ID: 6})
	assert.Contains(t, report.Problem, "no order id")
}

func TestRequiredFlags(t *testing.T) {
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &out

	err := app.Run([]string{"portalctl", "inspect-order", "--dealer", "DLR1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order")
}

func TestPrintJSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printJSON(&out, map[string]int{"requeued": 2}))

	var decoded map[string]int
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, 2, decoded["requeued"])
}
