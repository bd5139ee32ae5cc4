package realtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/pet-health-tracker/constants"
	"github.com/joseph-ayodele/pet-health-tracker/internal/entity"
)

const updatePayload = `{"kind":"update","record":{"id":"r1","pet_id":"pet1","title":"CBC","report_type":"CBC",
"report_date":"2025-01-01","report_label":null,"diagnosis":null,"veterinarian":"Jane Smith","image_url":null,
"ai_analysis":"All normal","status":"completed","parameters":"[{\"name\":\"WBC\",\"value\":\"9\",\"status\":\"normal\"}]",
"findings":null,"recommendations":null,"created_at":1735689600000,"updated_at":1735693200000}}`

func TestDecodeNotification(t *testing.T) {
	petID, ev, err := DecodeNotification(updatePayload)
	require.NoError(t, err)
	assert.Equal(t, "pet1", petID)
	assert.Equal(t, entity.EventUpdate, ev.Kind)
	assert.Equal(t, constants.ReportStatusCompleted, ev.Record.Status)
	require.NotNil(t, ev.Record.AIAnalysis)
	assert.Equal(t, "All normal", *ev.Record.AIAnalysis)
	require.Len(t, ev.Record.Parameters, 1)
	assert.Equal(t, "WBC", ev.Record.Parameters[0].Name)
}

func TestDecodeNotificationRejects(t *testing.T) {
	for name, payload := range map[string]string{
		"not json":     `{`,
		"unknown kind": `{"kind":"truncate","record":{"id":"r1","pet_id":"p"}}`,
		"missing id":   `{"kind":"delete","record":{"pet_id":"p"}}`,
		"missing pet":  `{"kind":"delete","record":{"id":"r1"}}`,
	} {
		_, _, err := DecodeNotification(payload)
		assert.Error(t, err, name)
	}
}

func TestDispatchAppliesPetFilter(t *testing.T) {
	l := NewListener(nil, "health_report_changes", nil, WithPetFilter("pet2"))
	var got []string
	handle := func(_ context.Context, petID string, ev entity.RemoteEvent) {
		got = append(got, petID+"/"+ev.Record.ID)
	}

	l.dispatch(context.Background(), updatePayload, handle)
	assert.Empty(t, got)

	l = NewListener(nil, "health_report_changes", nil)
	l.dispatch(context.Background(), updatePayload, handle)
	l.dispatch(context.Background(), `garbage`, handle)
	assert.Equal(t, []string{"pet1/r1"}, got)
}
