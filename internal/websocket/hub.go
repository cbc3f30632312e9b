package websocket

import "github.com/rs/zerolog/log"

// Hub maintains the set of active feed clients and broadcasts activity
// messages to them.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Inbound messages for global broadcast.
	Broadcast chan []byte

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// Per-post messages; delivered on the hub goroutine, which is the
	// only owner of the client maps.
	targeted chan targetedMessage

	// A map of post IDs to the set of clients subscribed to that
	// post's activity.
	subscriptions map[string]map[*Client]bool
}

// targetedMessage pairs a payload with the post feed it belongs to.
type targetedMessage struct {
	postID  string
	payload []byte
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		Broadcast:     make(chan []byte),
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		targeted:      make(chan targetedMessage, 64),
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
	}
}

// Run starts the Hub's message processing loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.clients[client] = true
			log.Info().Int("total_clients", len(h.clients)).Msg("Feed client connected")
			// If the client asked for a post's activity on connect,
			// subscribe them right away.
			if client.PostID != "" {
				h.addSubscription(client, client.PostID)
			}
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.removeSubscription(client)
				log.Info().Int("total_clients", len(h.clients)).Msg("Feed client disconnected")
			}
		case message := <-h.Broadcast:
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.clients, client)
					h.removeSubscription(client)
				}
			}
		case msg := <-h.targeted:
			h.deliverTo(msg.postID, msg.payload)
		}
	}
}

// BroadcastTo sends a message to all clients subscribed to a post. It is
// safe to call from any goroutine; delivery happens on the hub goroutine.
func (h *Hub) BroadcastTo(postID string, message []byte) {
	h.targeted <- targetedMessage{postID: postID, payload: message}
}

func (h *Hub) deliverTo(postID string, message []byte) {
	if subs, ok := h.subscriptions[postID]; ok {
		for client := range subs {
			select {
			case client.Send <- message:
			default:
				close(client.Send)
				delete(h.clients, client)
				delete(h.subscriptions[postID], client)
			}
		}
	}
}

func (h *Hub) addSubscription(client *Client, postID string) {
	if h.subscriptions[postID] == nil {
		h.subscriptions[postID] = make(map[*Client]bool)
	}
	h.subscriptions[postID][client] = true
}

func (h *Hub) removeSubscription(client *Client) {
	for postID, subs := range h.subscriptions {
		if _, ok := subs[client]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.subscriptions, postID)
			}
		}
	}
}
