package apiclient

import "time"

// APIPrefix is the path prefix of every service endpoint.
const APIPrefix = "/api/v1"

// User is an authenticated principal.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}

// LoginRequest carries console credentials.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	User        User       `json:"user"`
}

// Document is an uploaded file known to the service.
type Document struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size"`
	Checksum    string    `json:"checksum,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// DocumentList is a page of documents.
type DocumentList struct {
	Items []Document `json:"items"`
	Total int        `json:"total"`
}

// Conversation is a chat thread.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ConversationDetail is a conversation with its transcript.
type ConversationDetail struct {
	Conversation
	Messages []Message `json:"messages"`
}

// ConversationList is a page of conversations.
type ConversationList struct {
	Items []Conversation `json:"items"`
	Total int            `json:"total"`
}

// Message is one turn of a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateConversationRequest creates a conversation.
type CreateConversationRequest struct {
	Title string `json:"title,omitempty"`
}

// SendMessageRequest posts a user message.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessageResponse holds both sides of a completed exchange.
type SendMessageResponse struct {
	Message Message `json:"message"`
	Reply   Message `json:"reply"`
}

// HealthStatus is the unenveloped health payload.
type HealthStatus struct {
	Status  string    `json:"status"`
	Version string    `json:"version,omitempty"`
	Time    time.Time `json:"time"`
}
