package devserver

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/oremus-labs/docai-console/apiclient"
	"github.com/oremus-labs/docai-console/internal/events"
	"github.com/oremus-labs/docai-console/internal/queue"
	"github.com/oremus-labs/docai-console/internal/store"
	"github.com/oremus-labs/docai-console/internal/worker"
	"github.com/pkg/errors"
)

// ListDocuments returns documents newest first.
func (s *Server) ListDocuments(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	docs, total, err := s.store.ListDocuments(c.Request.Context(), limit)
	if err != nil {
		s.internalError(c, err)
		return
	}
	items := make([]apiclient.Document, 0, len(docs))
	for i := range docs {
		items = append(items, documentView(&docs[i]))
	}
	respond(c, http.StatusOK, apiclient.DocumentList{Items: items, Total: total})
}

// UploadDocument stores the multipart "file" field. With an ingest queue the
// document starts as "uploaded" and the worker finishes it; otherwise it is
// ready at once.
func (s *Server) UploadDocument(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, codeTooLarge, "document exceeds upload limit", gin.H{"limit": s.opts.MaxUploadBytes})
			return
		}
		badRequest(c, "multipart field \"file\" is required")
		return
	}
	f, err := header.Open()
	if err != nil {
		s.internalError(c, err)
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		s.internalError(c, err)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(content)
	}
	sum := sha256.Sum256(content)
	doc := &store.Document{
		ID:          uuid.NewString(),
		Name:        filepath.Base(header.Filename),
		ContentType: contentType,
		Checksum:    "sha256:" + hex.EncodeToString(sum[:]),
		Status:      worker.StatusReady,
		Owner:       currentSession(c).Username,
	}
	if s.opts.Ingest != nil {
		doc.Status = worker.StatusUploaded
	}
	if err := s.store.CreateDocument(c.Request.Context(), doc, content); err != nil {
		s.internalError(c, err)
		return
	}
	if s.opts.Ingest != nil {
		if err := s.opts.Ingest.Enqueue(c.Request.Context(), queue.Task{DocumentID: doc.ID}); err != nil {
			s.logger.Error().Err(err).Str("document", doc.ID).Msg("enqueue ingest failed")
			doc.Status = worker.StatusFailed
			if err := s.store.UpdateDocumentStatus(c.Request.Context(), doc.ID, doc.Status); err != nil {
				s.internalError(c, err)
				return
			}
		}
	}
	view := documentView(doc)
	s.publish(c, events.DocumentUploaded, view)
	respond(c, http.StatusCreated, view)
}

// GetDocument returns one document.
func (s *Server) GetDocument(c *gin.Context) {
	doc, err := s.store.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storeError(c, err, "document")
		return
	}
	respond(c, http.StatusOK, documentView(doc))
}

// DeleteDocument removes a document.
func (s *Server) DeleteDocument(c *gin.Context) {
	id := c.Param("id")
	if err := s.store.DeleteDocument(c.Request.Context(), id); err != nil {
		s.storeError(c, err, "document")
		return
	}
	s.publish(c, events.DocumentDeleted, gin.H{"id": id})
	respond(c, http.StatusOK, gin.H{"id": id, "deleted": true})
}

func documentView(doc *store.Document) apiclient.Document {
	return apiclient.Document{
		ID:          doc.ID,
		Name:        doc.Name,
		ContentType: doc.ContentType,
		Size:        doc.Size,
		Checksum:    doc.Checksum,
		Status:      doc.Status,
		CreatedAt:   doc.CreatedAt,
	}
}

func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		badRequest(c, "limit must be a positive integer")
		return 0, false
	}
	return limit, true
}

func (s *Server) storeError(c *gin.Context, err error, what string) {
	if errors.Is(err, store.ErrNotFound) {
		notFound(c, what)
		return
	}
	s.internalError(c, err)
}

// publish emits evt; failures are logged and never fail the request.
func (s *Server) publish(c *gin.Context, eventType string, data interface{}) {
	if err := s.bus.Publish(c.Request.Context(), events.Event{Type: eventType, Data: data}); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("publish failed")
	}
}
