package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/doc-rag/internal/core/ask"
	"github.com/jinford/doc-rag/internal/core/document"
	"github.com/jinford/doc-rag/internal/core/ingestion"
)

// 利用者向けのエラーメッセージ
const (
	msgNoFile          = "Geen bestand gevonden"
	msgFileTooLarge    = "Bestand is te groot"
	msgUploadFailed    = "Fout bij uploaden van bestand"
	msgListFailed      = "Fout bij ophalen van documenten"
	msgNoDocumentID    = "Geen document ID opgegeven"
	msgInvalidID       = "Ongeldig document ID"
	msgNotFound        = "Document niet gevonden"
	msgDeleteFailed    = "Fout bij verwijderen van document"
	msgNoQuery         = "Geen zoekopdracht opgegeven"
	msgInvalidRequest  = "Ongeldig verzoek"
	msgSearchFailed    = "Fout bij zoeken in documenten"
	msgFileUnavailable = "Bestand niet beschikbaar"
	msgNoFileName      = "Geen bestandsnaam opgegeven"
	msgEmptyFile       = "Bestand is leeg"
	msgInvalidFileType = "Ongeldig bestandstype. Alleen PDF, Word (.docx) en Excel (.xlsx) worden ondersteund."
)

// validationMessages は ValidationError.Field ごとの利用者向けメッセージ
var validationMessages = map[string]string{
	"fileName":    msgNoFileName,
	"file":        msgEmptyFile,
	"fileType":    msgInvalidFileType,
	"contentType": msgInvalidFileType,
	"query":       msgNoQuery,
}

func (s *Server) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes+multipartOverhead)

	header, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": msgFileTooLarge})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": msgNoFile})
		return
	}

	file, err := header.Open()
	if err != nil {
		s.respondError(c, err, msgUploadFailed)
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		s.respondError(c, err, msgUploadFailed)
		return
	}

	result, err := s.docs.Upload(c.Request.Context(), ingestion.UploadParams{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Payload:     payload,
	})
	if err != nil {
		s.respondError(c, err, msgUploadFailed)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"document": result.Document,
		"status":   result.Status,
	})
}

func (s *Server) listDocuments(c *gin.Context) {
	docs, err := s.docs.List(c.Request.Context())
	if err != nil {
		s.respondError(c, err, msgListFailed)
		return
	}
	if docs == nil {
		docs = []*document.Document{}
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (s *Server) getDocument(c *gin.Context) {
	id, ok := s.documentID(c)
	if !ok {
		return
	}

	doc, err := s.docs.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err, msgListFailed)
		return
	}
	count, err := s.docs.ChunkCount(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err, msgListFailed)
		return
	}

	c.JSON(http.StatusOK, gin.H{"document": doc, "chunkCount": count})
}

func (s *Server) downloadDocument(c *gin.Context) {
	if s.blobs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": msgFileUnavailable})
		return
	}
	id, ok := s.documentID(c)
	if !ok {
		return
	}

	doc, err := s.docs.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err, msgFileUnavailable)
		return
	}
	data, err := s.blobs.Get(c.Request.Context(), doc.FilePath)
	if err != nil {
		s.respondError(c, err, msgFileUnavailable)
		return
	}

	contentType, _ := doc.Metadata[document.MetadataKeyDetectedMIME].(string)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(doc.FileName, `"`, "")+`"`)
	c.Data(http.StatusOK, contentType, data)
}

func (s *Server) deleteDocument(c *gin.Context) {
	id, ok := s.documentID(c)
	if !ok {
		return
	}

	if err := s.docs.Delete(c.Request.Context(), id); err != nil {
		s.respondError(c, err, msgDeleteFailed)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type searchRequest struct {
	Query    string `json:"query"`
	FileType string `json:"fileType"`
}

func (s *Server) search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidRequest})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgNoQuery})
		return
	}

	params := ask.AskParams{Query: req.Query}
	if strings.TrimSpace(req.FileType) != "" {
		ft, err := document.ParseFileType(req.FileType)
		if err != nil {
			s.respondError(c, err, msgSearchFailed)
			return
		}
		params.FileType = mo.Some(ft)
	}

	result, err := s.asker.Ask(c.Request.Context(), params)
	if err != nil {
		s.respondError(c, err, msgSearchFailed)
		return
	}
	c.JSON(http.StatusOK, result)
}

// documentID はパスまたはクエリの id を解析する。失敗時はレスポンスを書き込む
func (s *Server) documentID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.Param("id")
	if raw == "" {
		raw = c.Query("id")
	}
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgNoDocumentID})
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidID})
		return uuid.Nil, false
	}
	return id, true
}

// respondError はエラー分類に応じたステータスで応答する
func (s *Server) respondError(c *gin.Context, err error, fallback string) {
	var validationErr *document.ValidationError
	switch {
	case errors.Is(err, document.ErrFileTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": msgFileTooLarge})
	case errors.As(err, &validationErr):
		msg, ok := validationMessages[validationErr.Field]
		if !ok {
			msg = msgInvalidRequest
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
	case document.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": msgNotFound})
	case document.IsEmbedding(err):
		s.logger.Error("embedding provider failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": fallback})
	default:
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
