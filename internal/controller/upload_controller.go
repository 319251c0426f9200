package controller

import (
	"io"
	"strconv"

	"ai-studykit-be/internal/apperr"
	"ai-studykit-be/internal/dto"
	"ai-studykit-be/internal/pkg/serverutils"
	"ai-studykit-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IUploadController interface {
	RegisterRoutes(r fiber.Router)
	SubmitChunk(ctx *fiber.Ctx) error
	Finalize(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	Retry(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	Results(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
}

type uploadController struct {
	uploadService service.IUploadService
}

func NewUploadController(uploadService service.IUploadService) IUploadController {
	return &uploadController{
		uploadService: uploadService,
	}
}

func (c *uploadController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/upload/v1")
	h.Use(serverutils.IdentityMiddleware) // anonymous allowed, bad tokens rejected
	h.Get("", c.List)
	h.Post("chunk", c.SubmitChunk)
	h.Post(":id/finalize", c.Finalize)
	h.Get(":id/status", c.Status)
	h.Post(":id/retry", c.Retry)
	h.Get(":id/results", c.Results)
	h.Delete(":id", c.Delete)
}

// SubmitChunk accepts one multipart chunk. The metadata travels as form
// fields next to the "chunk" file part.
func (c *uploadController) SubmitChunk(ctx *fiber.Ctx) error {
	ownerId := serverutils.OwnerFromContext(ctx)

	req, err := parseChunkForm(ctx)
	if err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(*req); err != nil {
		return err
	}

	fileHeader, err := ctx.FormFile("chunk")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "chunk file part is required"))
	}
	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	res, err := c.uploadService.SubmitChunk(ctx.Context(), ownerId, req, data)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Chunk accepted", res))
}

func (c *uploadController) Finalize(ctx *fiber.Ctx) error {
	ownerId := serverutils.OwnerFromContext(ctx)

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid session id"))
	}

	res, err := c.uploadService.Finalize(ctx.Context(), ownerId, id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Upload finalized, processing queued", res))
}

func (c *uploadController) Status(ctx *fiber.Ctx) error {
	ownerId := serverutils.OwnerFromContext(ctx)

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid session id"))
	}

	res, err := c.uploadService.QueryStatus(ctx.Context(), ownerId, id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Session status", res))
}

func (c *uploadController) Retry(ctx *fiber.Ctx) error {
	ownerId := serverutils.OwnerFromContext(ctx)

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid session id"))
	}

	res, err := c.uploadService.Retry(ctx.Context(), ownerId, id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Session requeued", res))
}

func (c *uploadController) Delete(ctx *fiber.Ctx) error {
	ownerId := serverutils.OwnerFromContext(ctx)

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid session id"))
	}

	if err := c.uploadService.Delete(ctx.Context(), ownerId, id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Session deleted", nil))
}

func (c *uploadController) Results(ctx *fiber.Ctx) error {
	ownerId := serverutils.OwnerFromContext(ctx)

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid session id"))
	}

	res, err := c.uploadService.Results(ctx.Context(), ownerId, id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Study kit", res))
}

func (c *uploadController) List(ctx *fiber.Ctx) error {
	ownerId := serverutils.OwnerFromContext(ctx)

	res, err := c.uploadService.List(ctx.Context(), ownerId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Sessions", res))
}

func parseChunkForm(ctx *fiber.Ctx) (*dto.SubmitChunkRequest, error) {
	req := &dto.SubmitChunkRequest{
		Filename: ctx.FormValue("filename"),
	}

	if raw := ctx.FormValue("session_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperr.InvalidInput("session_id is not a valid uuid")
		}
		req.SessionId = &id
	}

	var err error
	if req.ChunkIndex, err = strconv.Atoi(ctx.FormValue("chunk_index", "0")); err != nil {
		return nil, apperr.InvalidInput("chunk_index must be an integer")
	}
	if req.TotalChunks, err = strconv.Atoi(ctx.FormValue("total_chunks", "0")); err != nil {
		return nil, apperr.InvalidInput("total_chunks must be an integer")
	}
	if req.TotalSize, err = strconv.ParseInt(ctx.FormValue("total_size", "0"), 10, 64); err != nil {
		return nil, apperr.InvalidInput("total_size must be an integer")
	}
	return req, nil
}
