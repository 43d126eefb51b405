package handlers

import (
	"encoding/base64"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medichat-server/internal/logging"
	"medichat-server/internal/services"
	"medichat-server/internal/storage"
	"medichat-server/internal/utils"
)

// Sampling defaults applied when the client omits a value.
const (
	DefaultTemperature float32 = 0.7
	DefaultTopP        float32 = 1.0
	DefaultMaxTokens   int     = 1024
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// ChatHandler serves chat turns and message annotations.
type ChatHandler struct {
	Chat        *services.ChatService
	Messages    *services.MessageService
	Attachments storage.AttachmentStore // nil disables archiving
	Debug       bool
	Logger      *zap.Logger
}

// NewChatHandler creates a new ChatHandler. debug is the default for the
// debug parameter of chat requests.
func NewChatHandler(chat *services.ChatService, messages *services.MessageService, attachments storage.AttachmentStore, debug bool, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{Chat: chat, Messages: messages, Attachments: attachments, Debug: debug, Logger: logger}
}

// ChatForm holds the chat parameters, accepted from the query string or a
// (multipart) form body.
type ChatForm struct {
	SessionID     string   `form:"session_id" binding:"required"`
	CaseID        string   `form:"case_id" binding:"required"`
	PatientID     string   `form:"patient_id" binding:"required"`
	Prompt        string   `form:"prompt" binding:"required"`
	Model         string   `form:"model"`
	ModelProvider string   `form:"model_provider"`
	Temperature   *float32 `form:"temperature"`
	TopP          *float32 `form:"top_p"`
	MaxTokens     *int     `form:"max_tokens"`
	Debug         *bool    `form:"debug"`
}

// ChatResponse is the chat result plus the keys of archived attachments.
type ChatResponse struct {
	services.ChatResult
	Attachments []string `json:"attachments,omitempty"`
}

type upload struct {
	filename    string
	contentType string
	data        []byte
}

// Predict runs one chat turn.
func (h *ChatHandler) Predict(c *gin.Context) {
	var form ChatForm
	if !utils.BindFormAndValidate(c, &form) {
		return
	}

	uploads, err := readUploads(c)
	if err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	images := make([]string, 0, len(uploads))
	for _, u := range uploads {
		images = append(images, base64.StdEncoding.EncodeToString(u.data))
	}

	req := services.ChatRequest{
		SessionID:   form.SessionID,
		CaseID:      form.CaseID,
		PatientID:   form.PatientID,
		Prompt:      form.Prompt,
		Images:      images,
		Model:       form.Model,
		Provider:    form.ModelProvider,
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
		MaxTokens:   DefaultMaxTokens,
		Debug:       h.Debug,
	}
	if form.Temperature != nil {
		req.Temperature = *form.Temperature
	}
	if form.TopP != nil {
		req.TopP = *form.TopP
	}
	if form.MaxTokens != nil {
		req.MaxTokens = *form.MaxTokens
	}
	if form.Debug != nil {
		req.Debug = *form.Debug
	}

	result, err := h.Chat.Chat(c.Request.Context(), req)
	if err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}

	c.JSON(http.StatusOK, utils.ResponseData{
		Status:  http.StatusOK,
		Message: "Response generated successfully",
		Data:    ChatResponse{ChatResult: *result, Attachments: h.archive(c, form.SessionID, uploads)},
	})
}

// readUploads reads the "files" parts of a multipart request. Only JPEG and
// PNG images are accepted.
func readUploads(c *gin.Context) ([]upload, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, utils.ValidationError("Invalid multipart form")
	}

	files := form.File["files"]
	uploads := make([]upload, 0, len(files))
	for _, fh := range files {
		contentType := fh.Header.Get("Content-Type")
		if !allowedImageTypes[contentType] {
			return nil, utils.ValidationError("Invalid file type. Allowed types are: JPEG, PNG.")
		}
		data, err := readFile(fh)
		if err != nil {
			return nil, utils.ValidationError("Failed to read uploaded file " + fh.Filename)
		}
		uploads = append(uploads, upload{filename: fh.Filename, contentType: contentType, data: data})
	}
	return uploads, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// archive stores the uploads after the turn was persisted. Failures are
// logged and the affected files are left out of the returned keys.
func (h *ChatHandler) archive(c *gin.Context, sessionID string, uploads []upload) []string {
	if h.Attachments == nil || len(uploads) == 0 {
		return nil
	}
	ctx := c.Request.Context()
	keys := make([]string, 0, len(uploads))
	for _, u := range uploads {
		key, err := h.Attachments.PutAttachment(ctx, sessionID, u.filename, u.contentType, u.data)
		if err != nil {
			h.Logger.Warn("failed to archive attachment",
				zap.String("session_id", sessionID),
				zap.String("filename", u.filename),
				zap.String("request_id", logging.RequestID(ctx)),
				zap.Error(err))
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// GetMessage returns a single stored message.
func (h *ChatHandler) GetMessage(c *gin.Context) {
	entry, err := h.Messages.GetMessage(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	utils.Success(c, "Message fetched successfully", entry)
}

// LikeForm holds the like flag. Omitting it clears the rating.
type LikeForm struct {
	Like *bool `form:"like"`
}

// LikeMessage likes (true), dislikes (false) or clears the rating of a message.
func (h *ChatHandler) LikeMessage(c *gin.Context) {
	var form LikeForm
	if !utils.BindFormAndValidate(c, &form) {
		return
	}

	entry, err := h.Messages.LikeMessage(c.Request.Context(), c.Param("id"), form.Like)
	if err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	utils.Success(c, "Message rated successfully", entry)
}

// FeedbackForm holds feedback text and a star rating. Empty text and zero
// stars leave the stored values unchanged.
type FeedbackForm struct {
	Feedback string `form:"feedback"`
	Stars    int    `form:"stars" binding:"gte=0,lte=5"`
}

// SubmitFeedback records feedback for a message.
func (h *ChatHandler) SubmitFeedback(c *gin.Context) {
	var form FeedbackForm
	if !utils.BindFormAndValidate(c, &form) {
		return
	}

	entry, err := h.Messages.SubmitFeedback(c.Request.Context(), c.Param("id"), form.Feedback, form.Stars)
	if err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	utils.Success(c, "Feedback submitted successfully", entry)
}

// EditFeedback changes the feedback of a message.
func (h *ChatHandler) EditFeedback(c *gin.Context) {
	var form FeedbackForm
	if !utils.BindFormAndValidate(c, &form) {
		return
	}

	entry, err := h.Messages.EditFeedback(c.Request.Context(), c.Param("id"), form.Feedback, form.Stars)
	if err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	utils.Success(c, "Feedback updated successfully", entry)
}
