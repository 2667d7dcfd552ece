package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/RichardoC/simple-chatbot/internal/chat"
	"github.com/RichardoC/simple-chatbot/internal/llm"
	"github.com/RichardoC/simple-chatbot/internal/models"
	"go.uber.org/zap"
)

// MaxRequestBytes caps the size of a chat request body.
const MaxRequestBytes = 1 << 20

type Handler struct {
	chat        *chat.Service
	logger      *zap.Logger
	turnTimeout time.Duration
}

func NewHandler(chatService *chat.Service, logger *zap.Logger, turnTimeout time.Duration) *Handler {
	return &Handler{
		chat:        chatService,
		logger:      logger,
		turnTimeout: turnTimeout,
	}
}

// ChatRequest mirrors models.TurnRequest with pointers so missing fields can
// be told apart from empty ones.
type ChatRequest struct {
	Message        *string `json:"message"`
	ConversationID *string `json:"conversation_id"`
	Role           string  `json:"role"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

type MessagesResponse struct {
	ConversationID string           `json:"conversation_id"`
	Messages       []models.Message `json:"messages"`
}

// Routes registers every endpoint on a new mux and wraps it in the
// request-ID and CORS middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.HandleRoot)
	mux.HandleFunc("/chat/", h.HandleChat)
	mux.HandleFunc("/messages", h.GetMessages)
	return RequestID(h.logger, CORS(mux))
}

func (h *Handler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "Chatbot API is running successfully"})
}

func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBytes)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		var sizeErr *http.MaxBytesError
		switch {
		case errors.As(err, &typeErr):
			writeError(w, http.StatusUnprocessableEntity,
				fmt.Sprintf("field %s: expected %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value))
		case errors.As(err, &sizeErr):
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", sizeErr.Limit))
		default:
			writeError(w, http.StatusBadRequest, "Invalid request body")
		}
		return
	}
	if req.Message == nil {
		writeError(w, http.StatusUnprocessableEntity, "field required: message")
		return
	}
	if req.ConversationID == nil {
		writeError(w, http.StatusUnprocessableEntity, "field required: conversation_id")
		return
	}

	ctx := r.Context()
	if h.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.turnTimeout)
		defer cancel()
	}

	resp, err := h.chat.Turn(ctx, models.TurnRequest{
		Message:        *req.Message,
		ConversationID: *req.ConversationID,
		Role:           req.Role,
	})
	if err != nil {
		logger := loggerFrom(r.Context(), h.logger)

		var ce *llm.CompletionError
		switch {
		case errors.As(err, &ce):
			logger.Error("Completion provider failed",
				zap.String("conversationID", *req.ConversationID),
				zap.Error(err))
			writeError(w, http.StatusBadGateway, ce.Description)
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			logger.Warn("Turn abandoned",
				zap.String("conversationID", *req.ConversationID),
				zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			logger.Error("Failed to process message", zap.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	convID := r.URL.Query().Get("conversation_id")
	if convID == "" {
		writeError(w, http.StatusBadRequest, "Query parameter 'conversation_id' is required")
		return
	}

	messages, ok := h.chat.History(convID)
	if !ok {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}

	writeJSON(w, http.StatusOK, MessagesResponse{ConversationID: convID, Messages: messages})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already out; nothing useful left to do on failure.
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}
