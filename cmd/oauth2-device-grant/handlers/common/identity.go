package common

import (
	"fmt"
	"net/http"
	"strings"
)

// Client is a registered device client
type Client struct {
	ID   string
	Name string
}

// User is the end user approving a device
type User struct {
	ID string
}

// Clients is the registry of clients allowed to request device codes
type Clients map[string]Client

// ParseClients reads entries of the form "id" or "id:Display Name"
func ParseClients(entries []string) (Clients, error) {
	clients := make(Clients, len(entries))
	for _, entry := range entries {
		id, name, _ := strings.Cut(strings.TrimSpace(entry), ":")
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("invalid client entry %q", entry)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			name = id
		}
		clients[id] = Client{ID: id, Name: name}
	}
	return clients, nil
}

// Lookup returns the client registered under id
func (c Clients) Lookup(id string) (Client, bool) {
	client, ok := c[id]
	return client, ok
}

// UserFromRequest reads the authenticated user from a header set by the
// fronting authentication proxy
func UserFromRequest(r *http.Request, header string) (User, bool) {
	id := strings.TrimSpace(r.Header.Get(header))
	if id == "" {
		return User{}, false
	}
	return User{ID: id}, true
}
