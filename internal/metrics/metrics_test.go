package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRequest(t *testing.T) {
	before := testutil.CollectAndCount(RequestDuration)
	RecordRequest(http.MethodGet, "/api/chat/history/{roomId}", http.StatusOK, 12*time.Millisecond)
	RecordRequest(http.MethodGet, "/api/chat/history/{roomId}", http.StatusOK, 8*time.Millisecond)
	assert.Equal(t, before+1, testutil.CollectAndCount(RequestDuration))
}

func TestRecordReply(t *testing.T) {
	RecordReply("greeting", "recorded", "mock", time.Millisecond)
	RecordReply("greeting", "recorded", "mock", time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(ResponderRepliesTotal.WithLabelValues("greeting", "recorded")))
}

func TestHandler(t *testing.T) {
	MessagesTotal.WithLabelValues("customer").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chat_messages_total")
}
