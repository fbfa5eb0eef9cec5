package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/maktabhq/maktab/core/access"
	"github.com/maktabhq/maktab/core/attendance"
	"github.com/maktabhq/maktab/core/user"
)

type attendanceApi struct {
	svc      attendance.ServiceInterface
	validate *validator.Validate
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := attendanceApi{
		svc:      deps.AttendanceSvc,
		validate: deps.Validate,
	}

	takerGate := gateMiddleware(deps.Gate, access.Requirements{
		RequiredCapabilities: []string{user.CapAttendanceAccess},
	})
	adminGate := gateMiddleware(deps.Gate, access.Requirements{RequireAdmin: true})

	ag := g.Group("/attendance", jwt)
	ag.POST("", api.mark, takerGate)
	ag.GET("", api.query, takerGate)
	ag.GET("/:id", api.retrieve, takerGate)
	ag.DELETE("/:id", api.destroy, adminGate)
}

func (api *attendanceApi) mark(ctx echo.Context) error {
	var data attendance.MarkAttendance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkAttendance")
	}
	if mid := contextMadrassahID(ctx); mid != "" {
		data.MadrassahID = mid
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	rec, err := api.svc.Mark(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) query(ctx echo.Context) error {
	filter := new(attendance.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []attendance.Record{})
	}
	filter.MadrassahID = contextMadrassahID(ctx)
	ordering := new(Ordering)
	ordering.Bind(ctx)

	records, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying attendance records")
	}
	if records == nil {
		records = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) retrieve(ctx echo.Context) error {
	rec, err := api.getScoped(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) destroy(ctx echo.Context) error {
	rec, err := api.getScoped(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), rec.ID); err != nil {
		return errors.Wrap(err, "deleting attendance record")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attendanceApi) getScoped(ctx echo.Context) (attendance.Record, error) {
	rec, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == attendance.ErrNotFound {
			return attendance.Record{}, errHttpNotFound
		}
		return attendance.Record{}, errors.Wrap(err, "finding attendance record by ID")
	}
	if mid := contextMadrassahID(ctx); mid != "" && rec.MadrassahID != mid {
		return attendance.Record{}, errHttpNotFound
	}
	return rec, nil
}
