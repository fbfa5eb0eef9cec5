package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/maktabhq/maktab/core/access"
	"github.com/maktabhq/maktab/core/message"
)

type messageApi struct {
	svc      message.ServiceInterface
	validate *validator.Validate
}

func registerMessageAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := messageApi{
		svc:      deps.MessageSvc,
		validate: deps.Validate,
	}

	authedGate := gateMiddleware(deps.Gate, access.Requirements{})

	mg := g.Group("/messages", jwt, authedGate)
	mg.POST("", api.send)
	mg.GET("/inbox", api.inbox)
	mg.GET("/sent", api.sent)
	mg.GET("/:id", api.retrieve)
	mg.POST("/:id/read", api.markRead)
	mg.DELETE("/:id", api.destroy)
}

func (api *messageApi) send(ctx echo.Context) error {
	var data message.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	msg, err := api.svc.Send(ctx.Request().Context(), contextMadrassahID(ctx), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "sending message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *messageApi) inbox(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	messages, err := api.svc.Inbox(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "fetching inbox")
	}
	if messages == nil {
		messages = []message.Message{}
	}
	return ctx.JSON(http.StatusOK, messages)
}

func (api *messageApi) sent(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	messages, err := api.svc.Sent(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "fetching sent messages")
	}
	if messages == nil {
		messages = []message.Message{}
	}
	return ctx.JSON(http.StatusOK, messages)
}

func (api *messageApi) retrieve(ctx echo.Context) error {
	msg, err := api.getScoped(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, msg)
}

func (api *messageApi) markRead(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	msg, err := api.svc.MarkRead(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		switch errors.Cause(err) {
		case message.ErrNotFound:
			return errHttpNotFound
		case message.ErrNotRecipient:
			return errHttpForbidden
		}
		return errors.Wrap(err, "marking message read")
	}
	return ctx.JSON(http.StatusOK, msg)
}

func (api *messageApi) destroy(ctx echo.Context) error {
	msg, err := api.getScoped(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), msg.ID); err != nil {
		return errors.Wrap(err, "deleting message")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// getScoped fetches the message; only its sender or recipient may see it.
func (api *messageApi) getScoped(ctx echo.Context) (message.Message, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return message.Message{}, errors.Wrap(err, "getting context claims")
	}

	msg, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == message.ErrNotFound {
			return message.Message{}, errHttpNotFound
		}
		return message.Message{}, errors.Wrap(err, "finding message by ID")
	}
	if msg.SenderID != claims.Subject && msg.RecipientID != claims.Subject && !claims.IsAdmin {
		return message.Message{}, errHttpNotFound
	}
	return msg, nil
}
