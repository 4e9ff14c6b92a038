package controllers

import (
	"strconv"
	"strings"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"wishdoc/internal/perrors"
	"wishdoc/internal/services"
	"wishdoc/internal/services/document"
	"wishdoc/internal/services/user"
)

type DocumentResponse struct {
	ID        string          `json:"_id"`
	Rev       int64           `json:"_rev"`
	Owner     *user.User      `json:"user,omitempty"`
	Body      string          `json:"body"`
	Tos       []string        `json:"tos,omitempty"`
	Status    document.Status `json:"status"`
	Timestamp int64           `json:"timestamp"`
	Filename  string          `json:"filename,omitempty"`
	Hash      string          `json:"hash,omitempty"`
}

func documentResponse(d *document.Document) DocumentResponse {
	return DocumentResponse{
		ID:        d.ID,
		Rev:       d.Rev,
		Owner:     d.Owner,
		Body:      d.Body,
		Tos:       d.Tos,
		Status:    d.Status,
		Timestamp: d.Timestamp,
		Filename:  d.Filename,
		Hash:      d.ContentHash,
	}
}

func documentResponses(docs []*document.Document) []DocumentResponse {
	out := make([]DocumentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, documentResponse(d))
	}
	return out
}

func RegisterDocumentRoutes(r *router.Router, svc *services.Services) {
	// Create or update, multipart form post. An _id field means update.
	r.POST("/document", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)

		upload, err := formUpload(ctx)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to read uploaded file", perrors.NewErrInvalidRequest("Failed to read uploaded file", err))
			return
		}

		var tos []string
		if raw := string(ctx.FormValue("tos")); raw != "" {
			tos = strings.Split(raw, ",")
		}
		body := string(ctx.FormValue("body"))
		id := string(ctx.FormValue("_id"))

		if id == "" {
			doc, err := svc.Document.Create(stdCtx, actor(ctx), &document.CreateRequest{
				Body:       body,
				Tos:        tos,
				Attachment: upload,
			})
			if err != nil {
				writeError(ctx, stdCtx, "Failed to create document", err)
				return
			}
			writeOK(ctx, stdCtx, "", documentResponse(doc))
			return
		}

		patch := &document.UpdateRequest{Tos: tos, Attachment: upload}
		if body != "" {
			patch.Body = &body
		}
		if raw := string(ctx.FormValue("_rev")); raw != "" {
			if rev, err := strconv.ParseInt(raw, 10, 64); err == nil {
				patch.Rev = rev
			}
		}

		doc, err := svc.Document.Update(stdCtx, actor(ctx), id, patch)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to update document", err)
			return
		}
		writeOK(ctx, stdCtx, "", documentResponse(doc))
	})

	// Fetch one document
	r.GET("/document/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)

		id, err := pathParam(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "Document ID is required", perrors.NewErrInvalidRequest("Document ID is required", err))
			return
		}

		doc, err := svc.Document.Get(stdCtx, actor(ctx), id)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to get document", err)
			return
		}
		writeOK(ctx, stdCtx, "", documentResponse(doc))
	})

	// List documents visible to the actor, newest first
	r.GET("/docs", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)

		docs, err := svc.Document.List(stdCtx, actor(ctx), queryInt(ctx, "offset"), queryInt(ctx, "limit"))
		if err != nil {
			writeError(ctx, stdCtx, "Failed to list documents", err)
			return
		}
		writeOK(ctx, stdCtx, "", documentResponses(docs))
	})

	// Recipient accepts: draft becomes shared
	r.POST("/document/status/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)

		id, err := pathParam(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "Document ID is required", perrors.NewErrInvalidRequest("Document ID is required", err))
			return
		}

		doc, err := svc.Document.ChangeStatus(stdCtx, actor(ctx), id)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to change status", err)
			return
		}
		writeOK(ctx, stdCtx, "", documentResponse(doc))
	})

	// Delete a draft
	r.DELETE("/document/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)

		id, err := pathParam(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "Document ID is required", perrors.NewErrInvalidRequest("Document ID is required", err))
			return
		}

		if err := svc.Document.Remove(stdCtx, actor(ctx), id); err != nil {
			writeError(ctx, stdCtx, "Failed to delete document", err)
			return
		}
		writeOK[any](ctx, stdCtx, "", nil)
	})

	// Stream the attachment binary
	r.GET("/attachment/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)

		id, err := pathParam(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "Document ID is required", perrors.NewErrInvalidRequest("Document ID is required", err))
			return
		}

		att, err := svc.Document.FetchAttachment(stdCtx, actor(ctx), id)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to get attachment", err)
			return
		}

		if att.ContentType != "" {
			ctx.Response.Header.SetContentType(att.ContentType)
		}
		ctx.SetBody(att.Data)
	})

	// Full-text search over documents
	r.GET("/searchDocuments", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)

		q, err := requireStringQuery(ctx, "q")
		if err != nil {
			writeError(ctx, stdCtx, "parameter: q is required.", perrors.NewErrInvalidRequest("parameter: q is required.", err))
			return
		}

		docs, err := svc.Document.Search(stdCtx, q)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to search documents", err)
			return
		}
		writeOK(ctx, stdCtx, "", documentResponses(docs))
	})

	// Wipe every non-internal record (admin only)
	r.POST("/reset", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)

		n, err := svc.Admin.Reset(stdCtx, actor(ctx))
		if err != nil {
			writeError(ctx, stdCtx, "Failed to reset store", err)
			return
		}
		writeOK(ctx, stdCtx, "", map[string]int{"deleted": n})
	})
}
