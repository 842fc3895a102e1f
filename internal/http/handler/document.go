package handler

import (
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"ragapi/internal/model"
	"ragapi/internal/service"
)

// ListDocuments godoc
// @Summary      List documents
// @Description  Metadata only, newest first.
// @Tags         documents
// @Produce      json
// @Success      200  {object}  map[string]any
// @Failure      500  {object}  errorPayload
// @Router       /documents [get]
func ListDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		docs, err := svc.List(c.UserContext())
		if err != nil {
			return writeServiceError(c, err)
		}
		if docs == nil {
			docs = []model.DocumentMeta{}
		}
		return c.JSON(fiber.Map{"ok": true, "documents": docs})
	}
}

// GetDocument godoc
// @Summary      Get a document
// @Tags         documents
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  map[string]any
// @Failure      404  {object}  errorPayload
// @Router       /documents/{id} [get]
func GetDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		doc, err := svc.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"ok": true, "document": doc})
	}
}

// UploadDocument godoc
// @Summary      Upload a text document
// @Description  Stores a .txt file and asks the RAG service to ingest it. On a 502 the
// @Description  document is kept and its ID is returned as documentId.
// @Tags         documents
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "Plain text file"
// @Success      201   {object}  map[string]any
// @Failure      400   {object}  errorPayload
// @Failure      502   {object}  errorPayload
// @Router       /documents [post]
func UploadDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		in, err := readUpload(c)
		if err != nil {
			return writeServiceError(c, err)
		}

		res, err := svc.Upload(c.UserContext(), in)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"ok":       true,
			"document": res.Document,
			"ingest":   res.Ingest,
		})
	}
}

// readUpload returns nil when no file was attached.
func readUpload(c *fiber.Ctx) (*service.UploadInput, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, nil
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &service.UploadInput{
		Filename:    filepath.Base(fh.Filename),
		ContentType: uploadContentType(fh),
		Data:        data,
	}, nil
}

// uploadContentType prefers the part's declared type and falls back to the extension.
func uploadContentType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get(fiber.HeaderContentType); ct != "" {
		return ct
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if ext == ".txt" {
		return model.MimeTextPlain
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return fiber.MIMEOctetStream
}

// DeleteDocument godoc
// @Summary      Delete a document
// @Tags         documents
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  map[string]any
// @Failure      404  {object}  errorPayload
// @Router       /documents/{id} [delete]
func DeleteDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Delete(c.UserContext(), c.Params("id")); err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"ok": true})
	}
}

// RawDocument godoc
// @Summary      Download the original upload
// @Description  Redirects to a short-lived link into object storage.
// @Tags         documents
// @Param        id   path  string  true  "Document ID"
// @Success      307
// @Failure      404  {object}  errorPayload
// @Router       /documents/{id}/raw [get]
func RawDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, err := svc.RawURL(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Redirect(u, fiber.StatusTemporaryRedirect)
	}
}
