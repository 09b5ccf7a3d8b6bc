package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

const documentColumns = `id, name, content_type, size, checksum, status, owner, created_at`

// CreateDocument stores a document and its content.
func (s *Store) CreateDocument(ctx context.Context, doc *Document, content []byte) error {
	if doc.ID == "" {
		return errors.New("document id required")
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.Size = int64(len(content))
	_, err := s.exec(ctx, `INSERT INTO documents (`+documentColumns+`, content) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Name, doc.ContentType, doc.Size, doc.Checksum, doc.Status, doc.Owner, doc.CreatedAt, content,
	)
	return errors.Wrapf(err, "insert document %s", doc.ID)
}

// GetDocument loads document metadata.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	var doc Document
	err := s.queryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=?`, id).
		Scan(&doc.ID, &doc.Name, &doc.ContentType, &doc.Size, &doc.Checksum, &doc.Status, &doc.Owner, &doc.CreatedAt)
	if err != nil {
		return nil, notFound(err, "document", id)
	}
	return &doc, nil
}

// GetDocumentContent loads the stored bytes of a document.
func (s *Store) GetDocumentContent(ctx context.Context, id string) ([]byte, error) {
	var content []byte
	if err := s.queryRow(ctx, `SELECT content FROM documents WHERE id=?`, id).Scan(&content); err != nil {
		return nil, notFound(err, "document", id)
	}
	return content, nil
}

// ListDocuments returns documents newest first along with the total count.
func (s *Store) ListDocuments(ctx context.Context, limit int) ([]Document, int, error) {
	var total int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count documents")
	}
	rows, err := s.query(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC, id`+limitClause(limit))
	if err != nil {
		return nil, 0, errors.Wrap(err, "list documents")
	}
	defer rows.Close()
	docs := []Document{}
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Name, &d.ContentType, &d.Size, &d.Checksum, &d.Status, &d.Owner, &d.CreatedAt); err != nil {
			return nil, 0, errors.Wrap(err, "scan document")
		}
		docs = append(docs, d)
	}
	return docs, total, rows.Err()
}

// DeleteDocument removes a document.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `DELETE FROM documents WHERE id=?`, id)
	if err != nil {
		return errors.Wrapf(err, "delete document %s", id)
	}
	return affected(res, "document", id)
}

// UpdateDocumentStatus moves a document to a new ingestion status.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id, status string) error {
	res, err := s.exec(ctx, `UPDATE documents SET status=? WHERE id=?`, status, id)
	if err != nil {
		return errors.Wrapf(err, "update document %s", id)
	}
	return affected(res, "document", id)
}
