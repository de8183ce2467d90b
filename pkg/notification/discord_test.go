package notification

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dupelink/dupelink/pkg/config"
	"github.com/dupelink/dupelink/pkg/logger"
)

type capture struct {
	mu       sync.Mutex
	messages []DiscordMessage
}

func (c *capture) server(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var msg DiscordMessage
		require.NoError(t, json.Unmarshal(body, &msg))

		c.mu.Lock()
		c.messages = append(c.messages, msg)
		c.mu.Unlock()

		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDiscordSender_Send(t *testing.T) {
	c := &capture{}
	srv := c.server(t, http.StatusNoContent)

	sender := NewDiscordSender(logger.GetLogger("test"), config.NotificationsConfig{
		Detailed: true,
		Service:  config.NotificationService{Discord: srv.URL},
	})
	require.True(t, sender.CanSend())
	assert.Equal(t, "discord", sender.Name())

	fields := []Field{
		sender.BuildField(ActionLink, BuildOptions{Destination: "/dst/a.txt", Source: "/src/a.txt", Size: 2048, Mode: "hardlink"}),
		sender.BuildField(ActionFailure, BuildOptions{Destination: "/dst/b.txt", Source: "/src/b.txt", Size: 10, Reason: "cross device"}),
	}

	err := sender.Send(context.Background(), "dupelink", "Linked 1 file", 1500*time.Millisecond, fields, false)
	require.NoError(t, err)

	require.Len(t, c.messages, 1)
	embeds := c.messages[0].Embeds
	require.Len(t, embeds, 3)

	assert.Equal(t, "**/dst/a.txt**", embeds[0].Description)
	assert.Equal(t, int(GREEN), embeds[0].Color)
	assert.Equal(t, "2.0 KiB", embeds[0].Fields[1].Value)
	assert.Equal(t, int(RED), embeds[1].Color)
	assert.Equal(t, "cross device", embeds[1].Fields[2].Value)
	assert.Equal(t, "dupelink - Summary", embeds[2].Title)
	assert.Equal(t, "Linked 1 file", embeds[2].Description)
	assert.Equal(t, "Started: 1.5s ago", embeds[2].Footer.Text)
}

func TestDiscordSender_SummaryOnly(t *testing.T) {
	c := &capture{}
	srv := c.server(t, http.StatusOK)

	sender := NewDiscordSender(logger.GetLogger("test"), config.NotificationsConfig{
		Service: config.NotificationService{Discord: srv.URL},
	})

	fields := []Field{sender.BuildField(ActionLink, BuildOptions{Destination: "/dst/a.txt"})}
	require.NoError(t, sender.Send(context.Background(), "dupelink", "summary", time.Second, fields, true))

	require.Len(t, c.messages, 1)
	require.Len(t, c.messages[0].Embeds, 1)
	assert.Equal(t, "dupelink (Dry Run)", c.messages[0].Embeds[0].Title)
	assert.Equal(t, int(GRAY), c.messages[0].Embeds[0].Color)
}

func TestDiscordSender_SkipEmptyRun(t *testing.T) {
	c := &capture{}
	srv := c.server(t, http.StatusOK)

	sender := NewDiscordSender(logger.GetLogger("test"), config.NotificationsConfig{
		SkipEmptyRun: true,
		Service:      config.NotificationService{Discord: srv.URL},
	})

	require.NoError(t, sender.Send(context.Background(), "dupelink", "nothing", time.Second, nil, false))
	assert.Empty(t, c.messages)
}

func TestDiscordSender_UnexpectedStatus(t *testing.T) {
	c := &capture{}
	srv := c.server(t, http.StatusBadRequest)

	sender := NewDiscordSender(logger.GetLogger("test"), config.NotificationsConfig{
		Service: config.NotificationService{Discord: srv.URL},
	})

	err := sender.Send(context.Background(), "dupelink", "summary", time.Second, nil, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status: 400")
}

func TestBatchEmbeds(t *testing.T) {
	var embeds []DiscordEmbed
	for range 23 {
		embeds = append(embeds, DiscordEmbed{Title: "t"})
	}

	batches, err := batchEmbeds(embeds)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 10)
	assert.Len(t, batches[2], 3)

	large := []DiscordEmbed{
		{Description: strings.Repeat("a", 4000)},
		{Description: strings.Repeat("b", 4000)},
	}
	batches, err = batchEmbeds(large)
	require.NoError(t, err)
	assert.Len(t, batches, 2)
}

func TestCanSend(t *testing.T) {
	sender := NewDiscordSender(logger.GetLogger("test"), config.NotificationsConfig{})
	assert.False(t, sender.CanSend())
}
