package devserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oremus-labs/docai-console/internal/metrics"
)

const doneSentinel = "[DONE]"

// startEventStream writes the SSE headers and returns the writer plus a flush
// func. Nothing may be rendered as JSON afterwards.
func startEventStream(c *gin.Context) (io.Writer, func()) {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	return c.Writer, c.Writer.Flush
}

// writeEvent frames payload as a single data line. Payloads must not contain
// line breaks.
func writeEvent(w io.Writer, payload string) error {
	if strings.ContainsAny(payload, "\r\n") {
		return fmt.Errorf("event payload spans lines")
	}
	_, err := fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}

func writeComment(w io.Writer, text string) error {
	_, err := fmt.Fprintf(w, ": %s\n\n", text)
	return err
}

func trackStream() func() {
	return metrics.StreamOpened()
}

// StreamEvents relays bus events to the caller as JSON payloads until the
// caller disconnects. Comment lines keep idle connections open.
func (s *Server) StreamEvents(c *gin.Context) {
	ctx := c.Request.Context()
	ch, cancel, err := s.bus.Subscribe(ctx)
	if err != nil {
		s.internalError(c, err)
		return
	}
	defer cancel()

	w, flush := startEventStream(c)
	defer trackStream()()
	if err := writeComment(w, "subscribed"); err != nil {
		return
	}
	flush()

	ticker := time.NewTicker(s.opts.KeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := writeComment(w, "keep-alive"); err != nil {
				return
			}
			flush()
		case evt, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				s.logger.Warn().Err(err).Str("event", evt.ID).Msg("encode event")
				continue
			}
			if err := writeEvent(w, string(payload)); err != nil {
				return
			}
			flush()
		}
	}
}
