// Package graph serves a live view of the module import graph over HTTP
// and WebSocket.
package graph

import (
	"embed"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("birdeels.graph")

// GraphData holds the nodes and links of the graph.
type GraphData struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Node is a module. ID is unique within a Hub.
type Node struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
	// Grayed marks modules that are imported but were never compiled.
	Grayed bool `json:"grayed"`
}

// Link points from an importing module to the module it imports.
type Link struct {
	Source int `json:"source"`
	Target int `json:"target"`
}

// IncrementalMessage is sent over WebSocket to update clients.
type IncrementalMessage struct {
	Op    string     `json:"op"`              // "init", "add", "update", "deleteLink"
	Graph *GraphData `json:"graph,omitempty"` // used for "init"
	Node  *Node      `json:"node,omitempty"`
	Link  *Link      `json:"link,omitempty"`
}

//go:embed static/*
var staticFiles embed.FS

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Hub owns one graph and the clients watching it.
type Hub struct {
	mu      sync.Mutex
	ids     map[string]int
	nodes   map[int]*Node
	imports map[int][]int

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]bool

	addr string
}

func NewHub() *Hub {
	return &Hub{
		ids:     make(map[string]int),
		nodes:   make(map[int]*Node),
		imports: make(map[int][]int),
		clients: make(map[*websocket.Conn]bool),
	}
}

// Serve starts the HTTP and WebSocket server on addr (":0" picks a free
// port) and returns the URL of the viewer. Later calls return the first
// URL.
func (h *Hub) Serve(addr string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.addr != "" {
		return h.addr, nil
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("could not start listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(staticFiles)))
	mux.HandleFunc("/ws", h.handleWS)

	go func() {
		if err := http.Serve(l, mux); err != nil {
			log.Errorf("graph server error: %v", err)
		}
	}()

	h.addr = "http://" + l.Addr().String() + "/static/"
	return h.addr, nil
}

func (h *Hub) node(label string) (*Node, bool) {
	if id, ok := h.ids[label]; ok {
		return h.nodes[id], false
	}
	n := &Node{ID: len(h.ids) + 1, Label: label, Grayed: true}
	h.ids[label] = n.ID
	h.nodes[n.ID] = n
	return n, true
}

// SetModule records that name was compiled with the given imports and
// broadcasts what changed.
func (h *Hub) SetModule(name string, imports []string) {
	var msgs []IncrementalMessage

	h.mu.Lock()
	src, created := h.node(name)
	switch {
	case created:
		src.Grayed = false
		msgs = append(msgs, IncrementalMessage{Op: "add", Node: copyNode(src)})
	case src.Grayed:
		src.Grayed = false
		msgs = append(msgs, IncrementalMessage{Op: "update", Node: copyNode(src)})
	}

	targets := make([]int, 0, len(imports))
	for _, imp := range imports {
		tgt, created := h.node(imp)
		if created {
			msgs = append(msgs, IncrementalMessage{Op: "add", Node: copyNode(tgt)})
		}
		targets = append(targets, tgt.ID)
	}

	old := make(map[int]bool)
	for _, t := range h.imports[src.ID] {
		old[t] = true
	}
	current := make(map[int]bool)
	for _, t := range targets {
		current[t] = true
		if !old[t] {
			msgs = append(msgs, IncrementalMessage{Op: "add", Link: &Link{Source: src.ID, Target: t}})
		}
	}
	for t := range old {
		if !current[t] {
			msgs = append(msgs, IncrementalMessage{Op: "deleteLink", Link: &Link{Source: src.ID, Target: t}})
		}
	}
	h.imports[src.ID] = targets
	h.mu.Unlock()

	for _, msg := range msgs {
		if err := h.broadcast(msg); err != nil {
			log.Warningf("graph broadcast: %v", err)
		}
	}
}

func copyNode(n *Node) *Node {
	c := *n
	return &c
}

// Snapshot returns a copy of the current graph, ordered by ID.
func (h *Hub) Snapshot() GraphData {
	h.mu.Lock()
	defer h.mu.Unlock()

	data := GraphData{Nodes: []Node{}, Links: []Link{}}
	for _, n := range h.nodes {
		data.Nodes = append(data.Nodes, *n)
	}
	sort.Slice(data.Nodes, func(i, j int) bool { return data.Nodes[i].ID < data.Nodes[j].ID })
	for _, n := range data.Nodes {
		for _, t := range h.imports[n.ID] {
			data.Links = append(data.Links, Link{Source: n.ID, Target: t})
		}
	}
	return data
}

// broadcast marshals and sends a message to all clients.
func (h *Hub) broadcast(msg IncrementalMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Warningf("broadcast error: %v", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
	return nil
}

// handleWS upgrades HTTP connections and sends the initial graph state.
func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warningf("WS upgrade error: %v", err)
		return
	}
	h.clientsMu.Lock()
	h.clients[conn] = true
	h.clientsMu.Unlock()
	defer func() {
		h.clientsMu.Lock()
		delete(h.clients, conn)
		h.clientsMu.Unlock()
		conn.Close()
	}()

	state := h.Snapshot()
	initMsg := IncrementalMessage{Op: "init", Graph: &state}
	if data, err := json.Marshal(initMsg); err == nil {
		h.clientsMu.Lock()
		_ = conn.WriteMessage(websocket.TextMessage, data)
		h.clientsMu.Unlock()
	} else {
		log.Errorf("init marshal error: %v", err)
	}

	// keep connection open
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}
}
