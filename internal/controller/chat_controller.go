package controller

import (
	"live-relay-be/internal/dto"
	"live-relay-be/internal/pkg/serverutils"
	"live-relay-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	History(ctx *fiber.Ctx) error
	Send(ctx *fiber.Ctx) error
}

type chatController struct {
	service service.IChatService
}

func NewChatController(service service.IChatService) IChatController {
	return &chatController{service: service}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/live/v1/sessions/:id/chat")
	h.Use(serverutils.JwtMiddleware)
	h.Get("", c.History)
	h.Post("", c.Send)
}

func (c *chatController) History(ctx *fiber.Ctx) error {
	id, err := sessionIdParam(ctx)
	if err != nil {
		return err
	}

	messages, err := c.service.RecentMessages(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	res := make([]dto.ChatMessageResponse, len(messages))
	for i, m := range messages {
		res[i] = dto.NewChatMessageResponse(m)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get chat history", res))
}

func (c *chatController) Send(ctx *fiber.Ctx) error {
	identity := serverutils.CurrentIdentity(ctx)
	id, err := sessionIdParam(ctx)
	if err != nil {
		return err
	}

	var req dto.SendChatMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	msg, err := c.service.SendMessage(ctx.UserContext(), id, service.ChatAuthor{
		UserId:    identity.UserId,
		UserName:  identity.Name,
		UserPhoto: optional(identity.Photo),
		Badges: dto.ChatBadges{
			IsAdmin:   identity.IsAdmin,
			IsPremium: identity.IsPremium,
		},
	}, &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success send chat message", dto.NewChatMessageResponse(msg)))
}
