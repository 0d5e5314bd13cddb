package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"p9e.in/fixport/pkg/mailer"
)

func TestNotifyWorkOrderCreated(t *testing.T) {
	mail, hits := mailProbe(t)
	h := NewNotifyHandler(mail, zap.NewNop())

	body := []byte(`{"record":{"title":"Leaking RTU","description":"water in lobby","business":"Acme","priority":"urgent","submitter_name":"Pat","submitter_email":"pat@acme.test","created_at":"2026-08-29T10:00:00Z"}}`)
	r := httptest.NewRequest(http.MethodPost, "/api/notify/work-order", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.WorkOrderCreated(w, r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"ok":true`)

	payload := <-hits
	assert.Contains(t, payload["subject"], "Leaking RTU")
}

func TestNotifyMissingTitleIs400(t *testing.T) {
	mail, _ := mailProbe(t)
	h := NewNotifyHandler(mail, zap.NewNop())

	body := []byte(`{"record":{"description":"no title"}}`)
	r := httptest.NewRequest(http.MethodPost, "/api/notify/work-order", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.WorkOrderCreated(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotifyMissingCredentialsIs500(t *testing.T) {
	// no API key configured: a server-side problem, not the caller's
	mail := mailer.New("http://unused.invalid", "", "from@x", "to@x", zap.NewNop())
	h := NewNotifyHandler(mail, zap.NewNop())

	body := []byte(`{"record":{"title":"t"}}`)
	r := httptest.NewRequest(http.MethodPost, "/api/notify/work-order", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.WorkOrderCreated(w, r)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestNotifyProviderFailureIs502(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()
	mail := mailer.New(srv.URL, "key", "from@x", "to@x", zap.NewNop())
	h := NewNotifyHandler(mail, zap.NewNop())

	body := []byte(`{"record":{"title":"t"}}`)
	r := httptest.NewRequest(http.MethodPost, "/api/notify/work-order", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.WorkOrderCreated(w, r)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "quota exceeded")
}

func TestNotifyBadJSON(t *testing.T) {
	mail, _ := mailProbe(t)
	h := NewNotifyHandler(mail, zap.NewNop())

	r := httptest.NewRequest(http.MethodPost, "/api/notify/work-order", bytes.NewReader([]byte("{")))
	w := httptest.NewRecorder()
	h.WorkOrderCreated(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
