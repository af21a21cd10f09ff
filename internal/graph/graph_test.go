package graph

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetModule(t *testing.T) {
	h := NewHub()
	h.SetModule("main", []string{"geo", "util.strs"})

	g := h.Snapshot()
	assert.Equal(t, []Node{
		{ID: 1, Label: "main"},
		{ID: 2, Label: "geo", Grayed: true},
		{ID: 3, Label: "util.strs", Grayed: true},
	}, g.Nodes)
	assert.Equal(t, []Link{{1, 2}, {1, 3}}, g.Links)

	h.SetModule("geo", nil)
	h.SetModule("main", []string{"geo"})
	g = h.Snapshot()
	assert.False(t, g.Nodes[1].Grayed)
	assert.Equal(t, []Link{{1, 2}}, g.Links)
}

func TestServeStreamsUpdates(t *testing.T) {
	h := NewHub()
	h.SetModule("main", []string{"geo"})

	url, err := h.Serve("127.0.0.1:0")
	require.NoError(t, err)
	again, err := h.Serve("127.0.0.1:0")
	require.NoError(t, err)
	assert.Equal(t, url, again)

	resp, err := http.Get(url)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	wsURL := "ws://" + strings.TrimSuffix(strings.TrimPrefix(url, "http://"), "/static/") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg IncrementalMessage
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "init", msg.Op)
	require.NotNil(t, msg.Graph)
	assert.Len(t, msg.Graph.Nodes, 2)

	require.Eventually(t, func() bool {
		h.clientsMu.Lock()
		defer h.clientsMu.Unlock()
		return len(h.clients) == 1
	}, 5*time.Second, 10*time.Millisecond)

	h.SetModule("main", nil)
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "deleteLink", msg.Op)
	assert.Equal(t, &Link{Source: 1, Target: 2}, msg.Link)
}
