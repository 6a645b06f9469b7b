package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iprisk-backend/internal/retry"
)

func TestNewSendGridWithoutKeyIsNoop(t *testing.T) {
	client, err := NewSendGrid(SendGridConfig{})
	require.NoError(t, err)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Send(context.Background(), Message{}))
}

func TestNewSendGridRequiresFromEmail(t *testing.T) {
	_, err := NewSendGrid(SendGridConfig{APIKey: "k"})
	assert.Error(t, err)
}

func TestSendGridSendPostsMail(t *testing.T) {
	var wire mailSendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer sg-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&wire))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client, err := NewSendGrid(SendGridConfig{APIKey: "sg-key", BaseURL: server.URL, FromEmail: "reports@example.com", FromName: "Reports"})
	require.NoError(t, err)
	require.True(t, client.Enabled())

	err = client.Send(context.Background(), Message{To: "inventor@example.com", ToName: "Ada", Subject: "Your report", Body: "Ready."})

	require.NoError(t, err)
	require.Len(t, wire.Personalizations, 1)
	assert.Equal(t, "inventor@example.com", wire.Personalizations[0].To[0].Email)
	assert.Equal(t, "reports@example.com", wire.From.Email)
	assert.Equal(t, "Your report", wire.Subject)
	assert.Equal(t, "text/plain", wire.Content[0].Type)
}

func TestSendGridRejectsInvalidRecipientWithoutCalling(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer server.Close()
	client, err := NewSendGrid(SendGridConfig{APIKey: "k", BaseURL: server.URL, FromEmail: "from@example.com"})
	require.NoError(t, err)

	err = client.Send(context.Background(), Message{To: "not-an-email", Subject: "s", Body: "b"})

	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.True(t, retry.IsPermanent(err))
	assert.False(t, called)
}

func TestSendGridClassifiesStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		permanent bool
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, permanent: true},
		{name: "throttled", status: http.StatusTooManyRequests, permanent: false},
		{name: "server error", status: http.StatusInternalServerError, permanent: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"errors":[{"message":"nope"}]}`))
			}))
			defer server.Close()
			client, err := NewSendGrid(SendGridConfig{APIKey: "k", BaseURL: server.URL, FromEmail: "from@example.com"})
			require.NoError(t, err)

			err = client.Send(context.Background(), Message{To: "to@example.com", Subject: "s", Body: "b"})

			var herr *HTTPError
			require.ErrorAs(t, err, &herr)
			assert.Equal(t, tt.status, herr.StatusCode)
			assert.Equal(t, tt.permanent, retry.IsPermanent(err))
		})
	}
}
