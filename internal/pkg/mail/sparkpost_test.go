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

func TestSparkPost_Send(t *testing.T) {
	// Arrange
	var got sparkPostTransmission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/transmissions", r.URL.Path)
		assert.Equal(t, "sp-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":{"total_rejected_recipients":0,"total_accepted_recipients":2,"id":"tx-42"}}`))
	}))
	defer srv.Close()

	open := true
	m, err := New(Config{Service: ServiceSparkPost, SparkPost: &SparkPostConfig{
		Host:         srv.URL,
		Key:          "sp-key",
		OpenTracking: &open,
		IPPool:       "transactional",
		From:         "noreply@example.com",
	}})
	require.NoError(t, err)

	// Act
	receipt, err := m.Send(context.Background(), Message{
		To:      []string{"alice@example.com"},
		Bcc:     []string{"audit@example.com"},
		Subject: "Receipt",
		HTML:    "<b>paid</b>",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, Receipt{Provider: ServiceSparkPost, MessageID: "tx-42", Response: "accepted=2 rejected=0"}, receipt)

	require.Len(t, got.Recipients, 2)
	assert.Equal(t, "alice@example.com", got.Recipients[0].Address.Email)
	assert.Equal(t, "audit@example.com", got.Recipients[1].Address.Email)
	assert.Equal(t, "alice@example.com", got.Recipients[1].Address.HeaderTo)
	require.NotNil(t, got.Options)
	assert.Equal(t, "transactional", got.Options.IPPool)
	assert.True(t, *got.Options.OpenTracking)
	assert.Contains(t, got.Content.EmailRFC822, "Subject: Receipt")
	assert.NotContains(t, got.Content.EmailRFC822, "audit@example.com")
}

func TestSparkPost_ErrorResponse(t *testing.T) {
	// Arrange
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"Unauthorized.","description":"bad key","code":"1100"}]}`))
	}))
	defer srv.Close()

	var hooked error
	m, err := New(Config{Service: ServiceSparkPost, SparkPost: &SparkPostConfig{Host: srv.URL, Key: "bad"}},
		WithHooks(Hooks{OnError: func(_ Service, err error) { hooked = err }}))
	require.NoError(t, err)

	// Act
	_, sendErr := m.Send(context.Background(), testMessage())
	verifyErr := m.Verify(context.Background())

	// Assert
	var pe *ProviderError
	require.ErrorAs(t, sendErr, &pe)
	assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
	assert.Equal(t, "Unauthorized.: bad key", pe.Message)
	assert.Equal(t, "auth", Diagnose(sendErr).Code)

	assert.ErrorIs(t, verifyErr, ErrVerification)
	assert.Equal(t, verifyErr, hooked)
}

func TestSparkPost_Verify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/account", r.URL.Path)
		_, _ = w.Write([]byte(`{"results":{"customer_id":1}}`))
	}))
	defer srv.Close()

	m, err := New(Config{Service: ServiceSparkPost, SparkPost: &SparkPostConfig{Host: srv.URL + "/", Key: "k"}})
	require.NoError(t, err)

	assert.NoError(t, m.Verify(context.Background()))
}
