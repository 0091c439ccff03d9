package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResend_Send(t *testing.T) {
	// Arrange
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"re-123"}`))
	}))
	defer srv.Close()

	m, err := New(Config{Service: ServiceResend, Resend: &ResendConfig{
		Host: srv.URL,
		Key:  "re_test",
		Tags: []ResendTag{{Name: "category", Value: "welcome"}},
	}})
	require.NoError(t, err)

	// Act
	receipt, err := m.Send(context.Background(), Message{
		From:      "noreply@example.com",
		To:        []string{"alice@example.com"},
		Subject:   "Hello",
		HTML:      "<p>hi</p>",
		InReplyTo: "<x@example.com>",
		Priority:  PriorityLow,
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, Receipt{Provider: ServiceResend, MessageID: "re-123"}, receipt)
	assert.Equal(t, "noreply@example.com", got["from"])
	assert.Equal(t, "Hello", got["subject"])
	assert.Equal(t, []any{"alice@example.com"}, got["to"])

	headers, ok := got["headers"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "<x@example.com>", headers["In-Reply-To"])
	assert.Equal(t, "5 (Lowest)", headers["X-Priority"])

	tags, ok := got["tags"].([]any)
	require.True(t, ok)
	assert.Len(t, tags, 1)
}

func TestResend_Validation(t *testing.T) {
	m, err := New(Config{Service: ServiceResend, Resend: &ResendConfig{Key: "k"}})
	require.NoError(t, err)

	_, err = m.Send(context.Background(), Message{To: []string{"a@example.com"}})
	assert.ErrorIs(t, err, ErrNoSender)

	_, err = m.Send(context.Background(), Message{From: "a@example.com"})
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestResend_Verify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/domains", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	m, err := New(Config{Service: ServiceResend, Resend: &ResendConfig{Host: srv.URL, Key: "k"}})
	require.NoError(t, err)

	assert.NoError(t, m.Verify(context.Background()))
}
