package servhub

import (
	"maps"
	"sync"
)

// AuthorizationState holds the client credentials a broker attaches to
// resolution requests, and notifies subscribers when they change. Every
// subscriber receives every update exactly once; there is no ordering
// guarantee between subscribers.
type AuthorizationState struct {
	lk     sync.Mutex
	creds  map[string]string
	subs   map[uint64]chan map[string]string
	nextID uint64
}

// subscriptionBuffer is how many pending updates a subscriber may lag
// behind before further updates block; subscribers are expected to drain
// their channel promptly.
const subscriptionBuffer = 16

func NewAuthorizationState(initial map[string]string) *AuthorizationState {
	return &AuthorizationState{
		creds: maps.Clone(initial),
		subs:  make(map[uint64]chan map[string]string),
	}
}

// Credentials returns a copy of the current credentials.
func (a *AuthorizationState) Credentials() map[string]string {
	a.lk.Lock()
	defer a.lk.Unlock()
	return maps.Clone(a.creds)
}

// UpdateCredentials replaces the credentials and pushes a copy to every
// subscriber.
func (a *AuthorizationState) UpdateCredentials(creds map[string]string) {
	a.lk.Lock()
	defer a.lk.Unlock()
	a.creds = maps.Clone(creds)
	for _, sub := range a.subs {
		// Each subscriber gets its own copy so none can mutate another's
		// view. The send blocks only past subscriptionBuffer lag.
		sub <- maps.Clone(a.creds)
	}
}

// Subscribe registers for credential-change notifications. The returned
// cancel function unsubscribes and closes the channel; it is idempotent.
func (a *AuthorizationState) Subscribe() (<-chan map[string]string, func()) {
	a.lk.Lock()
	defer a.lk.Unlock()

	id := a.nextID
	a.nextID++
	ch := make(chan map[string]string, subscriptionBuffer)
	a.subs[id] = ch

	cancel := func() {
		a.lk.Lock()
		defer a.lk.Unlock()
		if sub, ok := a.subs[id]; ok {
			delete(a.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}
