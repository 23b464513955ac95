package controller

import (
	"live-relay-be/internal/dto"
	"live-relay-be/internal/entity"
	"live-relay-be/internal/pkg/serverutils"
	"live-relay-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	ListLive(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Members(ctx *fiber.Ctx) error
	Join(ctx *fiber.Ctx) error
	Leave(ctx *fiber.Ctx) error
	ClaimBroadcaster(ctx *fiber.Ctx) error
	ReleaseBroadcaster(ctx *fiber.Ctx) error
	TouchActivity(ctx *fiber.Ctx) error
	Reconcile(ctx *fiber.Ctx) error
	Close(ctx *fiber.Ctx) error
	UpsertChannel(ctx *fiber.Ctx) error
}

type sessionController struct {
	service    service.ISessionService
	liveness   service.ILivenessService
	broadcasts service.IBroadcastService
}

func NewSessionController(service service.ISessionService, liveness service.ILivenessService, broadcasts service.IBroadcastService) ISessionController {
	return &sessionController{service: service, liveness: liveness, broadcasts: broadcasts}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/live/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("/sessions", c.Create)
	h.Get("/sessions/live", c.ListLive)
	h.Get("/sessions/:id", c.Show)
	h.Get("/sessions/:id/members", c.Members)
	h.Post("/sessions/:id/join", c.Join)
	h.Post("/sessions/:id/leave", c.Leave)
	h.Post("/sessions/:id/broadcaster", c.ClaimBroadcaster)
	h.Delete("/sessions/:id/broadcaster", c.ReleaseBroadcaster)
	h.Post("/sessions/:id/activity", c.TouchActivity)
	h.Post("/sessions/:id/reconcile", c.Reconcile)
	h.Post("/sessions/:id/close", c.Close)
	h.Put("/channels/:channelId", c.UpsertChannel)
}

func sessionIdParam(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}
	return id, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (c *sessionController) Create(ctx *fiber.Ctx) error {
	identity := serverutils.CurrentIdentity(ctx)

	var req dto.CreateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	session, err := c.service.CreateSession(ctx.UserContext(), identity.UserId, optional(identity.Name), optional(identity.Photo), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create session", dto.NewSessionResponse(session)))
}

func (c *sessionController) ListLive(ctx *fiber.Ctx) error {
	listing, err := c.liveness.ListLive(ctx.UserContext())
	if err != nil {
		return err
	}

	toResponses := func(sessions []*entity.Session) []dto.SessionResponse {
		res := make([]dto.SessionResponse, len(sessions))
		for i, s := range sessions {
			res[i] = dto.NewSessionResponse(s)
		}
		return res
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get live sessions", dto.LiveSessionsResponse{
		Official:  toResponses(listing.Official),
		Community: toResponses(listing.Community),
	}))
}

func (c *sessionController) Show(ctx *fiber.Ctx) error {
	id, err := sessionIdParam(ctx)
	if err != nil {
		return err
	}

	session, err := c.service.GetSession(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session", dto.NewSessionResponse(session)))
}

func (c *sessionController) Members(ctx *fiber.Ctx) error {
	id, err := sessionIdParam(ctx)
	if err != nil {
		return err
	}

	members, err := c.service.ListMembers(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	res := make([]dto.MemberResponse, len(members))
	for i, m := range members {
		res[i] = dto.NewMemberResponse(m)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get members", res))
}

func (c *sessionController) Join(ctx *fiber.Ctx) error {
	identity := serverutils.CurrentIdentity(ctx)
	id, err := sessionIdParam(ctx)
	if err != nil {
		return err
	}

	var req dto.JoinSessionRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	result, err := c.service.JoinSession(ctx.UserContext(), id, identity.UserId, req.AsBroadcaster, req.ContactHint)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success join session", dto.JoinSessionResponse{
		Session: dto.NewSessionResponse(result.Session),
		Joined:  result.Joined,
	}))
}

// Leave always succeeds from the caller's point of view; failures are
// logged by the service.
func (c *sessionController) Leave(ctx *fiber.Ctx) error {
	identity := serverutils.CurrentIdentity(ctx)
	id, err := sessionIdParam(ctx)
	if err != nil {
		return err
	}

	_ = c.service.LeaveSession(ctx.UserContext(), id, identity.UserId)
	return ctx.JSON(serverutils.SuccessResponse[any]("Success leave session", nil))
}

func (c *sessionController) ClaimBroadcaster(ctx *fiber.Ctx) error {
	identity := serverutils.CurrentIdentity(ctx)
	id, err := sessionIdParam(ctx)
	if err != nil {
		return err
	}

	session, err := c.service.ClaimBroadcaster(ctx.UserContext(), id, identity.UserId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success claim broadcaster", dto.NewSessionResponse(session)))
}

func (c *sessionController) ReleaseBroadcaster(ctx *fiber.Ctx) error {
	identity := serverutils.CurrentIdentity(ctx)
	id, err := sessionIdParam(ctx)
	if err != nil {
		return err
	}

	session, err := c.service.ReleaseBroadcaster(ctx.UserContext(), id, identity.UserId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success release broadcaster", dto.NewSessionResponse(session)))
}

// TouchActivity only counts for the current slot holder; other callers
// get touched=false and the session is left alone.
func (c *sessionController) TouchActivity(ctx *fiber.Ctx) error {
	identity := serverutils.CurrentIdentity(ctx)
	id, err := sessionIdParam(ctx)
	if err != nil {
		return err
	}

	touched := c.broadcasts.TouchActivity(ctx.UserContext(), id, identity.UserId)
	return ctx.JSON(serverutils.SuccessResponse("Success touch activity", dto.TouchActivityResponse{Touched: touched}))
}

func (c *sessionController) Reconcile(ctx *fiber.Ctx) error {
	id, err := sessionIdParam(ctx)
	if err != nil {
		return err
	}

	repaired := c.service.ReconcileBroadcaster(ctx.UserContext(), id)
	return ctx.JSON(serverutils.SuccessResponse("Success reconcile", dto.ReconcileResponse{Repaired: repaired}))
}

func (c *sessionController) Close(ctx *fiber.Ctx) error {
	identity := serverutils.CurrentIdentity(ctx)
	id, err := sessionIdParam(ctx)
	if err != nil {
		return err
	}

	session, err := c.service.CloseSession(ctx.UserContext(), id, identity.UserId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success close session", dto.NewSessionResponse(session)))
}

// UpsertChannel returns the caller's persistent channel session, creating
// or reopening it.
func (c *sessionController) UpsertChannel(ctx *fiber.Ctx) error {
	identity := serverutils.CurrentIdentity(ctx)
	channelId := ctx.Params("channelId")

	var req dto.UpsertChannelRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	session, err := c.service.GetOrCreateChannel(ctx.UserContext(), identity.UserId, req.ChannelOwnerName, channelId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success upsert channel", dto.NewSessionResponse(session)))
}
