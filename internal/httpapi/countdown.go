package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"deadline-tracker/internal/countdown"
	"deadline-tracker/internal/model"
	"deadline-tracker/internal/service"
)

// CountdownHandler serves countdown snapshots and live SSE streams.
type CountdownHandler struct {
	workspaces
	interval time.Duration
	now      func() time.Time
	done     context.Context
}

// NewCountdownHandler streams at interval. Open streams end when done is
// cancelled.
func NewCountdownHandler(svc *service.WorkspaceService, interval time.Duration, now func() time.Time, done context.Context, log *zap.Logger) *CountdownHandler {
	return &CountdownHandler{
		workspaces: workspaces{svc: svc, log: log},
		interval:   interval,
		now:        now,
		done:       done,
	}
}

type countdownSnapshot struct {
	LinkID    string              `json:"link_id"`
	Deadline  time.Time           `json:"deadline"`
	Remaining countdown.Remaining `json:"remaining"`
	Urgency   countdown.Urgency   `json:"urgency,omitempty"`
	Text      string              `json:"text"`
}

func newSnapshot(link model.Link, r countdown.Remaining) countdownSnapshot {
	snap := countdownSnapshot{
		LinkID:    link.ID,
		Deadline:  link.Deadline,
		Remaining: r,
		Text:      countdown.Format(r),
	}
	if !r.Expired {
		snap.Urgency = r.Urgency()
	}
	return snap
}

func (h *CountdownHandler) link(c fiber.Ctx) (model.Link, error) {
	ws, err := h.current(c)
	if err != nil {
		return model.Link{}, err
	}
	return ws.Resolve(c.Params("id"))
}

func (h *CountdownHandler) Snapshot(c fiber.Ctx) error {
	link, err := h.link(c)
	if err != nil {
		return domainError(c, h.log, err, "failed to fetch link")
	}
	return jsonSuccess(c, newSnapshot(link, countdown.Compute(link.Deadline, h.now())))
}

// Stream mounts a display for the lifetime of the response and sends one
// "tick" event per refresh. An "expired" event closes the stream.
func (h *CountdownHandler) Stream(c fiber.Ctx) error {
	link, err := h.link(c)
	if err != nil {
		return domainError(c, h.log, err, "failed to fetch link")
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	return c.SendStreamWriter(func(w *bufio.Writer) {
		ticks := make(chan countdown.Remaining, 1)
		display := countdown.NewDisplay(link.Deadline, func(r countdown.Remaining) {
			// keep only the newest tick for a slow client
			for {
				select {
				case ticks <- r:
					return
				default:
				}
				select {
				case <-ticks:
				default:
				}
			}
		}, countdown.WithInterval(h.interval), countdown.WithClock(h.now))

		display.Start(h.done)
		defer display.Stop()

		for {
			select {
			case <-h.done.Done():
				return
			case r := <-ticks:
				if err := writeEvent(w, "tick", newSnapshot(link, r)); err != nil {
					h.log.Debug("countdown stream closed", zap.String("link_id", link.ID), zap.Error(err))
					return
				}
				if r.Expired {
					_ = writeEvent(w, "expired", fiber.Map{"link_id": link.ID})
					return
				}
			}
		}
	})
}

func writeEvent(w *bufio.Writer, name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return err
	}
	return w.Flush()
}
