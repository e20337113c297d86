package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramSender_ShapesAlert(t *testing.T) {
	var got telegramMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "chat-1")
	s.baseURL = srv.URL

	err := s.Send(context.Background(), "Execution stuck", "leg 2 failed: <tecPATH_DRY>")
	require.NoError(t, err)

	assert.Equal(t, "chat-1", got.ChatID)
	assert.Equal(t, "HTML", got.ParseMode)
	assert.True(t, got.DisablePreview)
	// Title bolded, angle brackets in the detail escaped out of the markup.
	assert.Equal(t, "<b>Execution stuck</b>\nleg 2 failed: &lt;tecPATH_DRY&gt;", got.Text)
}

func TestTelegramSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false}`, http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "chat-1")
	s.baseURL = srv.URL

	err := s.Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestDiscordSender_ShapesEmbed(t *testing.T) {
	var got discordWebhook
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordSender(srv.URL)
	err := d.Send(context.Background(), "Trade executed", "XRP/USD validated")
	require.NoError(t, err)

	assert.Equal(t, "xrparb", got.Username)
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "Trade executed", got.Embeds[0].Title)
	assert.Equal(t, "XRP/USD validated", got.Embeds[0].Description)
	assert.Equal(t, embedColor, got.Embeds[0].Color)
	assert.NotEmpty(t, got.Embeds[0].Timestamp)
}

func TestDiscordSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	d := NewDiscordSender(srv.URL)
	err := d.Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}
