// Package livereload tells open browser tabs to reload after the dev server
// rebuilds.
package livereload

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// SocketPath is the websocket endpoint browsers subscribe to.
	SocketPath = "/__sitepack/ws"
	// ScriptPath serves the client script injected into pages.
	ScriptPath = "/__sitepack/reload.js"

	writeWait = 5 * time.Second
)

const script = `(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  function connect() {
    var ws = new WebSocket(proto + location.host + "` + SocketPath + `");
    ws.onmessage = function (ev) {
      var msg = JSON.parse(ev.data);
      if (msg.type === "reload") {
        location.reload();
      } else if (msg.type === "error") {
        console.error("[sitepack] " + msg.error);
      }
    };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }
  connect();
})();
`

var tag = []byte(`<script src="` + ScriptPath + `"></script>`)

// Message is sent to every browser after a rebuild.
type Message struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub tracks connected browsers.
type Hub struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the connection and holds it until the browser leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("Live reload upgrade failed")
		return
	}

	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		conn.Close()
	}()

	// Browsers never send anything; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Len returns the number of connected browsers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends msg to every browser, dropping those that fail.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode live reload message")
		return
	}

	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.send(data); err != nil {
			h.log.Debug().Err(err).Msg("Dropping live reload client")
			c.conn.Close()
		}
	}
}

// Handler serves the client script and injects it into HTML pages read
// from dir. Everything else goes to next. The socket is served by the Hub
// itself and must be mounted separately.
func (h *Hub) Handler(dir string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == ScriptPath {
			w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
			_, _ = w.Write([]byte(script))
			return
		}

		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		name := path.Clean("/" + r.URL.Path)
		if strings.HasSuffix(r.URL.Path, "/") {
			name = path.Join(name, "index.html")
		}
		if path.Ext(name) != ".html" {
			next.ServeHTTP(w, r)
			return
		}

		page, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(Inject(page))
	})
}

// Inject adds the client script tag before the closing body tag, or at the
// end of the page when there is none.
func Inject(page []byte) []byte {
	out := make([]byte, 0, len(page)+len(tag))
	idx := bytes.LastIndex(bytes.ToLower(page), []byte("</body>"))
	if idx < 0 {
		out = append(out, page...)
		return append(out, tag...)
	}
	out = append(out, page[:idx]...)
	out = append(out, tag...)
	return append(out, page[idx:]...)
}
