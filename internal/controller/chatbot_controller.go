package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"strive-chatbot-be/internal/dto"
	"strive-chatbot-be/internal/pkg/logger"
	"strive-chatbot-be/internal/pkg/serverutils"
	"strive-chatbot-be/internal/service"
	internalWS "strive-chatbot-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/valyala/fasthttp"
)

const (
	chatControllerModule = "ChatbotController"
	sseDone              = "data: [DONE]\n\n"
)

var errClientGone = errors.New("websocket client gone")

type IChatbotController interface {
	RegisterRoutes(r fiber.Router)
	Stream(ctx *fiber.Ctx) error
	ServeWs(ctx *fiber.Ctx) error
	MarkSuccess(ctx *fiber.Ctx) error
	FollowUps(ctx *fiber.Ctx) error
	FollowUp(ctx *fiber.Ctx) error
	Extract(ctx *fiber.Ctx) error
	GetMemory(ctx *fiber.Ctx) error
	RecordActivity(ctx *fiber.Ctx) error
	ResetMemory(ctx *fiber.Ctx) error
	ListTurns(ctx *fiber.Ctx) error
}

type chatbotController struct {
	service service.IChatbotService
	hub     *internalWS.Hub
	logger  logger.ILogger
}

func NewChatbotController(service service.IChatbotService, hub *internalWS.Hub, log logger.ILogger) IChatbotController {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &chatbotController{service: service, hub: hub, logger: log}
}

func (c *chatbotController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Post("/stream", c.Stream)
	h.Get("/ws/:sessionId", c.ServeWs)
	h.Post("/success", c.MarkSuccess)
	h.Post("/follow-ups", c.FollowUps)
	h.Post("/follow-ups/single", c.FollowUp)
	h.Post("/extract", c.Extract)
	h.Get("/memory/:sessionId", c.GetMemory)
	h.Delete("/memory/:sessionId", c.ResetMemory)
	h.Post("/memory/:sessionId/activity", c.RecordActivity)
	h.Get("/sessions/:sessionId/turns", c.ListTurns)
}

// Stream answers one turn as server-sent events, ending with "data: [DONE]".
func (c *chatbotController) Stream(ctx *fiber.Ctx) error {
	var req dto.StreamChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}
	if err := service.ValidateTurns(req.Messages); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	ctx.Set("Content-Type", "text/event-stream")
	ctx.Set("Cache-Control", "no-cache")
	ctx.Set("Connection", "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	// The fiber ctx is recycled once the handler returns; the writer only keeps plain values.
	streamCtx := context.WithoutCancel(ctx.UserContext())
	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		err := c.service.StreamChat(streamCtx, &req, func(event dto.StreamEvent) error {
			return writeSSE(w, event)
		})
		if err != nil {
			c.logger.Warn(chatControllerModule, "Stream ended with error", map[string]interface{}{
				"session_id": req.SessionId,
				"error":      err.Error(),
			})
			if writeSSE(w, dto.StreamEvent{Type: dto.StreamEventError, Content: "stream interrupted"}) != nil {
				return
			}
		}
		fmt.Fprint(w, sseDone)
		w.Flush()
	}))
	return nil
}

func writeSSE(w *bufio.Writer, event dto.StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	// A flush error means the client went away.
	return w.Flush()
}

// ServeWs upgrades to a websocket bound to one session. Each inbound text frame
// is a stream request; turn events and session lifecycle events share the connection.
func (c *chatbotController) ServeWs(ctx *fiber.Ctx) error {
	if c.hub == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Websocket transport disabled")
	}
	sessionId := ctx.Params("sessionId")
	if sessionId == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing session id")
	}
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}

	return websocket.New(func(conn *websocket.Conn) {
		c.logger.Info(chatControllerModule, "Starting websocket session", map[string]interface{}{"session_id": sessionId})
		internalWS.ServeWs(c.hub, conn, sessionId, c.handleWsMessage)
		c.logger.Info(chatControllerModule, "Websocket session ended", map[string]interface{}{"session_id": sessionId})
	})(ctx)
}

func (c *chatbotController) handleWsMessage(ctx context.Context, client *internalWS.Client, data []byte) {
	send := func(event dto.StreamEvent) error {
		frame, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if !client.Write(frame) {
			return errClientGone
		}
		return nil
	}

	var req dto.StreamChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		send(dto.StreamEvent{Type: dto.StreamEventError, Content: "invalid request"})
		return
	}
	req.SessionId = client.SessionId
	if err := serverutils.ValidateRequest(req); err != nil {
		send(dto.StreamEvent{Type: dto.StreamEventError, Content: err.Error()})
		return
	}

	if err := c.service.StreamChat(ctx, &req, send); err != nil {
		c.logger.Warn(chatControllerModule, "Websocket turn ended with error", map[string]interface{}{
			"session_id": req.SessionId,
			"error":      err.Error(),
		})
		msg := "stream interrupted"
		if errors.Is(err, service.ErrInvalidTurns) {
			msg = err.Error()
		}
		send(dto.StreamEvent{Type: dto.StreamEventError, Content: msg})
	}
}

func (c *chatbotController) MarkSuccess(ctx *fiber.Ctx) error {
	var req dto.MarkSuccessRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.MarkConversationSuccess(ctx.UserContext(), &req)
	if err != nil {
		return mapServiceError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Conversation marked as successful", res))
}

func (c *chatbotController) FollowUps(ctx *fiber.Ctx) error {
	var req dto.FollowUpRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.GenerateFollowUps(ctx.UserContext(), &req)
	if err != nil {
		return mapServiceError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success generate follow-ups", res))
}

func (c *chatbotController) FollowUp(ctx *fiber.Ctx) error {
	var req dto.FollowUpSingleRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.GenerateFollowUp(ctx.UserContext(), &req)
	if err != nil {
		return mapServiceError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success generate follow-up", res))
}

func (c *chatbotController) Extract(ctx *fiber.Ctx) error {
	var req dto.ExtractRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Extract(ctx.UserContext(), &req)
	if err != nil {
		return mapServiceError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success extract", res))
}

func (c *chatbotController) GetMemory(ctx *fiber.Ctx) error {
	res, err := c.service.GetMemory(ctx.UserContext(), ctx.Params("sessionId"))
	if err != nil {
		return mapServiceError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get memory", res))
}

func (c *chatbotController) RecordActivity(ctx *fiber.Ctx) error {
	var req dto.MemoryActivityRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.RecordActivity(ctx.UserContext(), ctx.Params("sessionId"), &req)
	if err != nil {
		return mapServiceError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Activity recorded", res))
}

func (c *chatbotController) ResetMemory(ctx *fiber.Ctx) error {
	if err := c.service.ResetMemory(ctx.UserContext(), ctx.Params("sessionId")); err != nil {
		return mapServiceError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Memory reset", nil))
}

func (c *chatbotController) ListTurns(ctx *fiber.Ctx) error {
	var req dto.ListTurnsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid query")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.ListTurns(ctx.UserContext(), ctx.Params("sessionId"), &req)
	if err != nil {
		return mapServiceError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list turns", res))
}

func mapServiceError(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidTurns), errors.Is(err, service.ErrInvalidActivity):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSessionNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return err
	}
}
