package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"p9e.in/fixport/models"
)

func provider(t *testing.T, status int, got *emailRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.WriteHeader(status)
		w.Write([]byte(`{"id":"msg_1"}`))
	}))
}

func TestSendWorkOrderNotificationEscapesFields(t *testing.T) {
	var got emailRequest
	srv := provider(t, http.StatusOK, &got)
	defer srv.Close()

	m := New(srv.URL, "key", "portal@example.com", "facilities@example.com", zap.NewNop())
	err := m.SendWorkOrderNotification(context.Background(), WorkOrderRecord{
		Title:          "<script>alert(1)</script> & more",
		Description:    "temp > 90",
		Business:       "Acme",
		Priority:       "urgent",
		SubmitterName:  "Pat<b>",
		SubmitterEmail: "pat@acme.test",
		CreatedAt:      "2026-08-29T10:00:00Z",
	})
	require.NoError(t, err)

	assert.Equal(t, "portal@example.com", got.From)
	assert.Equal(t, []string{"facilities@example.com"}, got.To)
	assert.Contains(t, got.Subject, "&lt;script&gt;alert(1)&lt;/script&gt; &amp; more")
	assert.Contains(t, got.HTML, "temp &gt; 90")
	assert.Contains(t, got.HTML, "Pat&lt;b&gt;")
	assert.NotContains(t, got.HTML, "<script>")
	assert.Contains(t, got.HTML, "Aug 29, 2026")
}

func TestSendWorkOrderNotificationMissingTitle(t *testing.T) {
	m := New("http://unused.invalid", "key", "from@x", "to@x", zap.NewNop())
	err := m.SendWorkOrderNotification(context.Background(), WorkOrderRecord{Title: "  "})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestSendWorkOrderNotificationMissingCredentials(t *testing.T) {
	for _, m := range []*Mailer{
		New("http://unused.invalid", "", "from@x", "to@x", zap.NewNop()),
		New("http://unused.invalid", "key", "", "to@x", zap.NewNop()),
	} {
		err := m.SendWorkOrderNotification(context.Background(), WorkOrderRecord{Title: "t"})
		assert.ErrorIs(t, err, models.ErrConfig)
	}
}

func TestSendWorkOrderNotificationProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	m := New(srv.URL, "key", "from@x", "to@x", zap.NewNop())
	err := m.SendWorkOrderNotification(context.Background(), WorkOrderRecord{Title: "t"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUpstream)
	// provider body rides along for diagnosis
	assert.Contains(t, err.Error(), "rate limited")
}

func TestSendMagicLink(t *testing.T) {
	var got emailRequest
	srv := provider(t, http.StatusOK, &got)
	defer srv.Close()

	m := New(srv.URL, "key", "portal@example.com", "facilities@example.com", zap.NewNop())
	err := m.SendMagicLink(context.Background(), "pat@acme.test", "https://acme.portal.example.com/auth/callback?token=abc")
	require.NoError(t, err)

	assert.Equal(t, []string{"pat@acme.test"}, got.To)
	assert.Contains(t, got.HTML, "https://acme.portal.example.com/auth/callback?token=abc")
}

func TestSendMagicLinkQuotesCannotBreakOutOfHref(t *testing.T) {
	var got emailRequest
	srv := provider(t, http.StatusOK, &got)
	defer srv.Close()

	m := New(srv.URL, "key", "portal@example.com", "facilities@example.com", zap.NewNop())
	link := `https://acme.portal.example.com/cb?token=abc"onmouseover="alert(1)`
	err := m.SendMagicLink(context.Background(), "pat@acme.test", link)
	require.NoError(t, err)

	assert.Contains(t, got.HTML,
		`href="https://acme.portal.example.com/cb?token=abc&quot;onmouseover=&quot;alert(1)"`)
	assert.NotContains(t, got.HTML, `token=abc"onmouseover`)
}

func TestBuildWorkOrderBodyDefaultsTimestamp(t *testing.T) {
	body := buildWorkOrderBody(WorkOrderRecord{Title: "t", CreatedAt: "not-a-time"})
	assert.Contains(t, body, "Submitted at:")
}
