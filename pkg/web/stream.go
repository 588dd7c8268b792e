package web

import (
	"bufio"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/assetflow-io/assetflow/pkg/models"
	"github.com/assetflow-io/assetflow/pkg/watch"
)

const streamHeartbeat = 15 * time.Second

// StreamHandlers serves record changes as server-sent events. Each connection
// holds one watcher subscription for its lifetime.
type StreamHandlers struct {
	watcher *watch.Watcher
}

func NewStreamHandlers(watcher *watch.Watcher) *StreamHandlers {
	return &StreamHandlers{watcher: watcher}
}

// StreamChanges streams changes matching the optional type and id filters.
// The connection stays open until the client goes away.
func (h *StreamHandlers) StreamChanges(c fiber.Ctx) error {
	if _, ok := actor(c); !ok {
		return unauthorized(c, "actor identity headers missing")
	}

	filter := watch.Filter{RecordID: c.Params("id")}

	if typeParam := c.Params("type"); typeParam != "" {
		et, err := models.ParseEntityType(typeParam)
		if err != nil {
			return badRequest(c, err.Error())
		}

		filter.EntityType = et
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	sub := h.watcher.Subscribe(filter)

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer sub.Unsubscribe()

		heartbeat := time.NewTicker(streamHeartbeat)
		defer heartbeat.Stop()

		for {
			select {
			case change, ok := <-sub.Changes():
				if !ok {
					return
				}

				payload, err := json.Marshal(change)
				if err != nil {
					continue
				}

				if _, err := w.WriteString("event: " + string(change.Kind) + "\ndata: " + string(payload) + "\n\n"); err != nil {
					return
				}

				if err := w.Flush(); err != nil {
					// Client disconnected.
					return
				}
			case <-heartbeat.C:
				if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
					return
				}

				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
}
