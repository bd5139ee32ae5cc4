package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/pet-health-tracker/constants"
	"github.com/joseph-ayodele/pet-health-tracker/internal/entity"
	"github.com/joseph-ayodele/pet-health-tracker/internal/utils"
)

func sampleReport() entity.HealthReport {
	return entity.HealthReport{
		ID:           "r1",
		PetID:        "p1",
		Title:        "Annual bloods",
		ReportType:   string(constants.BloodWork),
		ReportDate:   "2024-03-15",
		Veterinarian: utils.NilIfEmpty("Sarah Chen"),
		Status:       constants.ReportStatusProcessing,
		Parameters: []entity.ExtractedParameter{
			{Name: "Sodium", Value: "145", Unit: utils.NilIfEmpty("mmol/L"), ReferenceRange: utils.NilIfEmpty("140-155"), Status: constants.ParameterNormal},
			{Name: "Potassium", Value: "6.1", ReferenceRange: utils.NilIfEmpty("3.5-5.5"), Status: constants.ParameterHigh},
		},
		Findings: utils.NilIfEmpty("Mild dehydration."),
	}
}

// messagesServer answers /v1/messages with reply as the single text block.
func messagesServer(t *testing.T, status int, reply string, hits *int32) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var req map[string]any
		assert.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "claude-test", req["model"])

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"boom"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-test",
			"content":     []map[string]any{{"type": "text", "text": reply}},
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 10, "output_tokens": 20},
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestAnalyzer(t *testing.T, baseURL string) *ClaudeAnalyzer {
	t.Helper()
	a, err := NewClaudeAnalyzer(Config{
		APIKey:          "test-key",
		BaseURL:         baseURL,
		Model:           "claude-test",
		BreakerFailures: 2,
		BreakerCooldown: time.Minute,
	}, nil)
	require.NoError(t, err)
	return a
}

func TestClaudeAnalyzer_Analyze(t *testing.T) {
	reply := "Here is my review:\n```json\n" +
		`{"summary":"Potassium is elevated.","concerns":["High potassium"],"recommendations":["Recheck in 2 weeks"],"urgency":"soon"}` +
		"\n```"
	var hits int32
	ts := messagesServer(t, http.StatusOK, reply, &hits)

	out, err := newTestAnalyzer(t, ts.URL).Analyze(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits)
	assert.Equal(t,
		"Potassium is elevated.\n\nConcerns:\n- High potassium\n\nRecommendations:\n- Recheck in 2 weeks\n\nUrgency: soon",
		out)
}

func TestClaudeAnalyzer_InvalidReply(t *testing.T) {
	cases := map[string]string{
		"no json":     "I cannot help with that.",
		"bad urgency": `{"summary":"ok","concerns":[],"recommendations":[],"urgency":"whenever"}`,
		"missing key": `{"summary":"ok","concerns":[]}`,
		"broken":      `{"summary": "ok",`,
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			var hits int32
			ts := messagesServer(t, http.StatusOK, reply, &hits)
			_, err := newTestAnalyzer(t, ts.URL).Analyze(context.Background(), sampleReport())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidResponse)
		})
	}
}

func TestClaudeAnalyzer_BreakerOpensAfterFailures(t *testing.T) {
	var hits int32
	ts := messagesServer(t, http.StatusInternalServerError, "", &hits)
	a := newTestAnalyzer(t, ts.URL)

	for i := 0; i < 2; i++ {
		_, err := a.Analyze(context.Background(), sampleReport())
		require.Error(t, err)
	}
	_, err := a.Analyze(context.Background(), sampleReport())
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(2), hits, "open breaker must short-circuit")
}

func TestClaudeAnalyzer_InvalidReplyDoesNotTrip(t *testing.T) {
	var hits int32
	ts := messagesServer(t, http.StatusOK, "nothing useful", &hits)
	a := newTestAnalyzer(t, ts.URL)

	for i := 0; i < 4; i++ {
		_, err := a.Analyze(context.Background(), sampleReport())
		require.ErrorIs(t, err, ErrInvalidResponse)
	}
	assert.Equal(t, int32(4), hits)
}

func TestNewClaudeAnalyzer_RequiresKey(t *testing.T) {
	_, err := NewClaudeAnalyzer(Config{}, nil)
	require.Error(t, err)
}

func TestBuildUserPrompt(t *testing.T) {
	p := BuildUserPrompt(sampleReport())
	assert.Contains(t, p, "Report type: Blood Work")
	assert.Contains(t, p, "Veterinarian: Sarah Chen")
	assert.Contains(t, p, "- Sodium | 145 | mmol/L | 140-155 | normal")
	assert.Contains(t, p, "- Potassium | 6.1 | - | 3.5-5.5 | high")
	assert.Contains(t, p, "Findings:\nMild dehydration.")
	assert.NotContains(t, p, "Diagnosis:")
	assert.NotContains(t, p, "Clinic recommendations")
}

func TestRender_OmitsEmptySections(t *testing.T) {
	out := Render(Assessment{Summary: " All values normal. ", Urgency: "routine"})
	assert.Equal(t, "All values normal.\n\nUrgency: routine", out)
}

func TestExtractJSONObject(t *testing.T) {
	raw, ok := extractJSONObject("prefix {\"a\":{\"b\":1}} suffix")
	require.True(t, ok)
	assert.Equal(t, `{"a":{"b":1}}`, string(raw))

	_, ok = extractJSONObject("} nothing {")
	assert.False(t, ok)
}
