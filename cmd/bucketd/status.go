package main

import (
	"net/http"
	"time"

	"github.com/btcsuite/websocket"
	"github.com/decred/dcrd/lru"
	"github.com/google/uuid"

	"github.com/jaxbuckets/buckets/store"
)

// statusServer pushes each known bucket's sync status to any connected
// websocket client, polling the metadata store on a short interval.
// bucketctl has no command that connects to it. recentConns is only a small
// connection-id cache for log correlation, not an access check.
type statusServer struct {
	meta        store.MetadataStore
	upgrader    websocket.Upgrader
	recentConns *lru.Cache
}

func newStatusServer(meta store.MetadataStore) *statusServer {
	return &statusServer{
		meta:        meta,
		recentConns: lru.NewCache(64),
	}
}

type bucketStatus struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Status   string     `json:"status"`
	SyncedAt *time.Time `json:"synced_at,omitempty"`
}

func (s *statusServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugf("bucketd: status websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	s.recentConns.Add(connID)
	log.Debugf("bucketd: status client %s connected from %s", connID, r.RemoteAddr)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		rows, err := s.meta.ListBuckets(r.Context())
		if err != nil {
			log.Debugf("bucketd: status client %s: list buckets: %v", connID, err)
			return
		}
		out := make([]bucketStatus, 0, len(rows))
		for _, row := range rows {
			out = append(out, bucketStatus{
				ID:       row.ID.String(),
				Name:     row.Name,
				Status:   row.Status.String(),
				SyncedAt: row.SyncedAt,
			})
		}
		if err := conn.WriteJSON(out); err != nil {
			log.Debugf("bucketd: status client %s disconnected: %v", connID, err)
			return
		}
	}
}
