package devserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/oremus-labs/docai-console/apiclient"
	"github.com/oremus-labs/docai-console/internal/events"
	"github.com/oremus-labs/docai-console/internal/store"
)

const (
	roleUser      = "user"
	roleAssistant = "assistant"

	defaultTitle = "New conversation"
)

// ListConversations returns conversations most recently updated first.
func (s *Server) ListConversations(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	convs, total, err := s.store.ListConversations(c.Request.Context(), limit)
	if err != nil {
		s.internalError(c, err)
		return
	}
	items := make([]apiclient.Conversation, 0, len(convs))
	for i := range convs {
		items = append(items, conversationView(&convs[i]))
	}
	respond(c, http.StatusOK, apiclient.ConversationList{Items: items, Total: total})
}

// CreateConversation starts an empty conversation.
func (s *Server) CreateConversation(c *gin.Context) {
	var req apiclient.CreateConversationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid conversation payload")
			return
		}
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultTitle
	}
	conv := &store.Conversation{
		ID:    uuid.NewString(),
		Title: title,
		Owner: currentSession(c).Username,
	}
	if err := s.store.CreateConversation(c.Request.Context(), conv); err != nil {
		s.internalError(c, err)
		return
	}
	view := conversationView(conv)
	s.publish(c, events.ConversationCreated, view)
	respond(c, http.StatusCreated, view)
}

// GetConversation returns a conversation with its transcript.
func (s *Server) GetConversation(c *gin.Context) {
	ctx := c.Request.Context()
	conv, err := s.store.GetConversation(ctx, c.Param("id"))
	if err != nil {
		s.storeError(c, err, "conversation")
		return
	}
	msgs, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		s.internalError(c, err)
		return
	}
	respond(c, http.StatusOK, apiclient.ConversationDetail{
		Conversation: conversationView(conv),
		Messages:     messageViews(msgs),
	})
}

// DeleteConversation removes a conversation and its transcript.
func (s *Server) DeleteConversation(c *gin.Context) {
	id := c.Param("id")
	if err := s.store.DeleteConversation(c.Request.Context(), id); err != nil {
		s.storeError(c, err, "conversation")
		return
	}
	s.publish(c, events.ConversationDeleted, gin.H{"id": id})
	respond(c, http.StatusOK, gin.H{"id": id, "deleted": true})
}

// SendMessage records a user message and answers it in one response.
func (s *Server) SendMessage(c *gin.Context) {
	turn, ok := s.beginTurn(c)
	if !ok {
		return
	}
	reply, ok := s.finishTurn(c, turn.conversation.ID, turn.reply)
	if !ok {
		return
	}
	respond(c, http.StatusOK, apiclient.SendMessageResponse{
		Message: messageView(turn.message),
		Reply:   messageView(reply),
	})
}

// StreamMessage records a user message and streams the answer as text
// deltas, one event per word, terminated by the [DONE] sentinel. Failures
// detected before the first byte are reported as ordinary envelopes.
func (s *Server) StreamMessage(c *gin.Context) {
	turn, ok := s.beginTurn(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	w, flush := startEventStream(c)
	defer flush()
	defer trackStream()()

	for i, delta := range deltas(turn.reply) {
		if i > 0 && s.opts.StreamDelay > 0 {
			select {
			case <-ctx.Done():
				s.logger.Debug().Str("conversation", turn.conversation.ID).Msg("stream abandoned by client")
				return
			case <-time.After(s.opts.StreamDelay):
			}
		}
		if err := writeEvent(w, delta); err != nil {
			return
		}
		flush()
	}
	if _, ok := s.finishTurn(c, turn.conversation.ID, turn.reply); !ok {
		return
	}
	_ = writeEvent(w, doneSentinel)
}

type turn struct {
	conversation *store.Conversation
	message      *store.Message
	reply        string
}

func (s *Server) beginTurn(c *gin.Context) (*turn, bool) {
	ctx := c.Request.Context()
	var req apiclient.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid message payload")
		return nil, false
	}
	if strings.TrimSpace(req.Content) == "" {
		badRequest(c, "content is required")
		return nil, false
	}
	conv, err := s.store.GetConversation(ctx, c.Param("id"))
	if err != nil {
		s.storeError(c, err, "conversation")
		return nil, false
	}
	history, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		s.internalError(c, err)
		return nil, false
	}
	msg := &store.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           roleUser,
		Content:        req.Content,
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		s.storeError(c, err, "conversation")
		return nil, false
	}
	reply, err := s.opts.Assistant.Reply(ctx, history, req.Content)
	if err != nil {
		s.internalError(c, err)
		return nil, false
	}
	return &turn{conversation: conv, message: msg, reply: reply}, true
}

func (s *Server) finishTurn(c *gin.Context, conversationID, content string) (*store.Message, bool) {
	reply := &store.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           roleAssistant,
		Content:        content,
	}
	if err := s.store.AppendMessage(c.Request.Context(), reply); err != nil {
		if c.Writer.Written() {
			s.logger.Error().Err(err).Str("conversation", conversationID).Msg("store reply")
			return nil, false
		}
		s.storeError(c, err, "conversation")
		return nil, false
	}
	s.publish(c, events.ConversationMessage, messageView(reply))
	return reply, true
}

func conversationView(conv *store.Conversation) apiclient.Conversation {
	return apiclient.Conversation{
		ID:           conv.ID,
		Title:        conv.Title,
		MessageCount: conv.MessageCount,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
	}
}

func messageView(m *store.Message) apiclient.Message {
	return apiclient.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}

func messageViews(msgs []store.Message) []apiclient.Message {
	out := make([]apiclient.Message, 0, len(msgs))
	for i := range msgs {
		out = append(out, messageView(&msgs[i]))
	}
	return out
}
