package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Login exchanges console credentials for an access token. It does not
// install the token; callers decide whether to call SetCredential.
func (c *Client) Login(ctx context.Context, username, password string, opts ...CallOption) (*LoginResponse, error) {
	var resp LoginResponse
	req := &LoginRequest{Username: username, Password: password}
	if err := c.Post(ctx, APIPrefix+"/auth/login", req, &resp, opts...); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout revokes the current session on the server.
func (c *Client) Logout(ctx context.Context, opts ...CallOption) error {
	return c.Post(ctx, APIPrefix+"/auth/logout", map[string]string{}, nil, opts...)
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context, opts ...CallOption) (*User, error) {
	var user User
	if err := c.Get(ctx, APIPrefix+"/auth/me", &user, opts...); err != nil {
		return nil, err
	}
	return &user, nil
}

// Health returns the raw service health payload.
func (c *Client) Health(ctx context.Context, opts ...CallOption) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.Get(ctx, APIPrefix+"/health", &status, opts...); err != nil {
		return nil, err
	}
	return &status, nil
}

// ListDocuments lists uploaded documents, newest first. limit <= 0 uses the
// server default.
func (c *Client) ListDocuments(ctx context.Context, limit int, opts ...CallOption) (*DocumentList, error) {
	if limit > 0 {
		opts = append(opts, WithQuery(url.Values{"limit": {strconv.Itoa(limit)}}))
	}
	var list DocumentList
	if err := c.Get(ctx, APIPrefix+"/documents", &list, opts...); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetDocument fetches one document.
func (c *Client) GetDocument(ctx context.Context, id string, opts ...CallOption) (*Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("document id is required")
	}
	var doc Document
	if err := c.Get(ctx, APIPrefix+"/documents/"+url.PathEscape(id), &doc, opts...); err != nil {
		return nil, err
	}
	return &doc, nil
}

// UploadDocument uploads r as a document named name.
func (c *Client) UploadDocument(ctx context.Context, name string, r io.Reader, opts ...CallOption) (*Document, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("document name is required")
	}
	if r == nil {
		return nil, fmt.Errorf("reader is required")
	}
	form := NewForm().AddFile("file", name, r)
	var doc Document
	if err := c.Upload(ctx, APIPrefix+"/documents/upload", form, &doc, opts...); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DeleteDocument removes a document.
func (c *Client) DeleteDocument(ctx context.Context, id string, opts ...CallOption) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("document id is required")
	}
	return c.Delete(ctx, APIPrefix+"/documents/"+url.PathEscape(id), nil, opts...)
}

// ListConversations lists conversations, most recently updated first.
func (c *Client) ListConversations(ctx context.Context, limit int, opts ...CallOption) (*ConversationList, error) {
	if limit > 0 {
		opts = append(opts, WithQuery(url.Values{"limit": {strconv.Itoa(limit)}}))
	}
	var list ConversationList
	if err := c.Get(ctx, APIPrefix+"/conversations", &list, opts...); err != nil {
		return nil, err
	}
	return &list, nil
}

// CreateConversation starts a conversation.
func (c *Client) CreateConversation(ctx context.Context, title string, opts ...CallOption) (*Conversation, error) {
	var conv Conversation
	if err := c.Post(ctx, APIPrefix+"/conversations", &CreateConversationRequest{Title: title}, &conv, opts...); err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetConversation fetches a conversation and its transcript.
func (c *Client) GetConversation(ctx context.Context, id string, opts ...CallOption) (*ConversationDetail, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("conversation id is required")
	}
	var detail ConversationDetail
	if err := c.Get(ctx, conversationPath(id), &detail, opts...); err != nil {
		return nil, err
	}
	return &detail, nil
}

// DeleteConversation removes a conversation and its messages.
func (c *Client) DeleteConversation(ctx context.Context, id string, opts ...CallOption) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("conversation id is required")
	}
	return c.Delete(ctx, conversationPath(id), nil, opts...)
}

// SendMessage posts a message and waits for the complete reply.
func (c *Client) SendMessage(ctx context.Context, conversationID, content string, opts ...CallOption) (*SendMessageResponse, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, fmt.Errorf("conversation id is required")
	}
	var resp SendMessageResponse
	if err := c.Post(ctx, conversationPath(conversationID)+"/messages", &SendMessageRequest{Content: content}, &resp, opts...); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StreamMessage posts a message and streams the reply as text deltas.
func (c *Client) StreamMessage(ctx context.Context, conversationID, content string, opts ...CallOption) (*Stream, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, fmt.Errorf("conversation id is required")
	}
	return c.Stream(ctx, http.MethodPost, conversationPath(conversationID)+"/messages/stream", &SendMessageRequest{Content: content}, opts...)
}

// Events tails the service event feed. Each payload is a JSON event.
func (c *Client) Events(ctx context.Context, opts ...CallOption) (*Stream, error) {
	return c.Stream(ctx, http.MethodGet, APIPrefix+"/events", nil, opts...)
}

func conversationPath(id string) string {
	return APIPrefix + "/conversations/" + url.PathEscape(id)
}
