package handlers

import (
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/remindhealth/journal-api/internal/http/middleware"
)

// Uploads larger than this are rejected before reading the body.
const maxUploadBytes = 32 << 20

// Conversations dispatches /v1/conversations (create + list).
func (api *API) Conversations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		api.createConversation(w, r)
	case http.MethodGet:
		api.listConversations(w, r)
	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

// ConversationByID dispatches /v1/conversations/{id} and its
// sub-resources (transcript, continue).
func (api *API) ConversationByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/conversations/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		writeError(w, r, http.StatusNotFound, "not_found", "conversation not found")
		return
	}
	id := segments[0]

	switch {
	case len(segments) == 1 && r.Method == http.MethodGet:
		api.getConversation(w, r, id)
	case len(segments) == 1 && r.Method == http.MethodDelete:
		api.deleteConversation(w, r, id)
	case len(segments) == 2 && segments[1] == "transcript" && r.Method == http.MethodPatch:
		api.updateTranscript(w, r, id)
	case len(segments) == 2 && segments[1] == "continue" && r.Method == http.MethodPost:
		api.continueProcessing(w, r, id)
	case len(segments) > 2:
		writeError(w, r, http.StatusNotFound, "not_found", "unknown resource")
	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (api *API) createConversation(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "multipart form with an audio file is required")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "audio file is required")
		return
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "could not read audio file")
		return
	}

	conversation, err := api.conversations.CreateConversationWithAudio(
		r.Context(),
		middleware.GetUserID(r.Context()),
		audioData,
		audioFormatFromUpload(header),
		r.FormValue("note"),
	)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toConversationResponse(conversation))
}

func (api *API) listConversations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	conversations, err := api.conversations.ListRecentConversations(r.Context(), middleware.GetUserID(r.Context()), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	items := make([]conversationResponse, 0, len(conversations))
	for i := range conversations {
		items = append(items, toConversationResponse(&conversations[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": items})
}

func (api *API) getConversation(w http.ResponseWriter, r *http.Request, id string) {
	userID := middleware.GetUserID(r.Context())

	lookup := api.conversations.GetConversation
	if r.URL.Query().Get("details") == "true" {
		lookup = api.conversations.GetConversationWithDetails
	}

	conversation, err := lookup(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toConversationResponse(conversation))
}

func (api *API) updateTranscript(w http.ResponseWriter, r *http.Request, id string) {
	var request struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}
	if strings.TrimSpace(request.Text) == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}

	conversation, err := api.conversations.UpdateTranscriptionTextOnly(r.Context(), middleware.GetUserID(r.Context()), id, request.Text)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toConversationResponse(conversation))
}

func (api *API) continueProcessing(w http.ResponseWriter, r *http.Request, id string) {
	if err := api.conversations.ContinueProcessingFromTranscription(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"id":         id,
		"request_id": middleware.GetRequestID(r.Context()),
		"scheduled":  true,
	})
}

func (api *API) deleteConversation(w http.ResponseWriter, r *http.Request, id string) {
	if err := api.conversations.DeleteConversation(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// audioFormatFromUpload derives the storage format from the uploaded
// filename extension, defaulting to webm for browser recordings.
func audioFormatFromUpload(header *multipart.FileHeader) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	switch ext {
	case "webm", "wav", "mp3", "m4a", "ogg", "flac":
		return ext
	}
	return "webm"
}
