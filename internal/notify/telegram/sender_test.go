package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantops/downtime-keeper/internal/domain"
	"github.com/plantops/downtime-keeper/internal/notify"
)

func TestNewSender_RequiresTokenWhenEnabled(t *testing.T) {
	_, err := NewSender(Config{Enabled: true})
	assert.Error(t, err)

	_, err = NewSender(Config{Enabled: false})
	assert.NoError(t, err)
}

func TestSender_DisabledIsNoop(t *testing.T) {
	sender, err := NewSender(Config{Enabled: false})
	require.NoError(t, err)

	ref, err := sender.Notify(context.Background(), "123", notify.Message{Text: "hi"})
	assert.NoError(t, err)
	assert.True(t, ref.IsZero())
}

func TestSender_Notify(t *testing.T) {
	var gotPath string
	var gotPayload map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":42}}`))
	}))
	defer srv.Close()

	sender, err := NewSender(Config{Enabled: true, BotToken: "token", BaseURL: srv.URL})
	require.NoError(t, err)

	ref, err := sender.Notify(context.Background(), "-100500", notify.Message{
		Text:    "line blocked",
		Actions: []notify.Action{{Label: "Accept", Data: "accept:dt-1"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "/bottoken/sendMessage", gotPath)
	assert.Equal(t, "-100500", gotPayload["chat_id"])
	assert.Equal(t, "line blocked", gotPayload["text"])
	assert.Contains(t, gotPayload, "reply_markup")
	assert.Equal(t, domain.MessageRef{ChatID: "-100500", MessageID: 42}, ref)
}

func TestSender_NotifyWithMediaUsesSendPhoto(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7}}`))
	}))
	defer srv.Close()

	sender, err := NewSender(Config{Enabled: true, BotToken: "token", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = sender.Notify(context.Background(), "1", notify.Message{Text: "cap", MediaRef: "file-id"})
	require.NoError(t, err)
	assert.Equal(t, "/bottoken/sendPhoto", gotPath)
}

func TestSender_Edit(t *testing.T) {
	var gotPayload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	defer srv.Close()

	sender, err := NewSender(Config{Enabled: true, BotToken: "token", BaseURL: srv.URL})
	require.NoError(t, err)

	err = sender.Edit(context.Background(), domain.MessageRef{ChatID: "9", MessageID: 42}, notify.Message{Text: "accepted"})
	require.NoError(t, err)
	assert.Equal(t, "accepted", gotPayload["text"])
	assert.Equal(t, float64(42), gotPayload["message_id"])
}

func TestSender_EditEmptyRef(t *testing.T) {
	sender, err := NewSender(Config{Enabled: true, BotToken: "token"})
	require.NoError(t, err)

	err = sender.Edit(context.Background(), domain.MessageRef{}, notify.Message{Text: "x"})
	assert.Error(t, err)
}

func TestSender_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	sender, err := NewSender(Config{Enabled: true, BotToken: "token", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = sender.Notify(context.Background(), "1", notify.Message{Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}
