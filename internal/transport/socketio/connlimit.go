package socketio

import (
	"net"
	"slices"
	"sync"
)

// ConnectionLimiter caps concurrent external pages. Loopback pages (a kiosk
// browser on the same box) are never limited. When a new external page
// exceeds the cap, the oldest external page is evicted so the newest
// viewer always gets the presentation.
type ConnectionLimiter struct {
	mu          sync.Mutex
	maxExternal int
	// external page ids, oldest first
	external []string
	// every tracked page: id -> loopback
	pages map[string]bool
}

// NewConnectionLimiter creates a limiter allowing up to maxExternal
// concurrent non-loopback pages.
func NewConnectionLimiter(maxExternal int) *ConnectionLimiter {
	return &ConnectionLimiter{
		maxExternal: maxExternal,
		pages:       make(map[string]bool),
	}
}

// TryAdd registers a page. It always admits the page and returns the id of
// any page evicted to make room.
func (cl *ConnectionLimiter) TryAdd(pageID, remoteIP string) (allowed bool, evictedID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.pages[pageID]; exists {
		return true, ""
	}

	local := isLocalIP(remoteIP)
	cl.pages[pageID] = local
	if local {
		return true, ""
	}

	cl.external = append(cl.external, pageID)
	if len(cl.external) <= cl.maxExternal {
		return true, ""
	}

	evictedID = cl.external[0]
	cl.external = cl.external[1:]
	delete(cl.pages, evictedID)
	return true, evictedID
}

// Remove unregisters a page when it disconnects.
func (cl *ConnectionLimiter) Remove(pageID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	local, exists := cl.pages[pageID]
	if !exists {
		return
	}
	delete(cl.pages, pageID)
	if !local {
		cl.external = slices.DeleteFunc(cl.external, func(id string) bool { return id == pageID })
	}
}

// External returns the number of tracked external pages.
func (cl *ConnectionLimiter) External() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.external)
}

// isLocalIP reports whether ip is a loopback address.
func isLocalIP(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}
