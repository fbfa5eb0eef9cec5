package echoapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/maktabhq/maktab/core/access"
	"github.com/maktabhq/maktab/core/activity"
	"github.com/maktabhq/maktab/core/stream"
)

type activityApi struct {
	svc      activity.ServiceInterface
	cache    *stream.QueryCache
	validate *validator.Validate
}

func registerActivityAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := activityApi{
		svc:      deps.ActivitySvc,
		cache:    deps.Cache,
		validate: deps.Validate,
	}

	authedGate := gateMiddleware(deps.Gate, access.Requirements{})
	staffGate := gateMiddleware(deps.Gate, access.Requirements{RequireTeacher: true})

	ag := g.Group("/activities", jwt)
	ag.POST("", api.log, staffGate)
	ag.GET("", api.query, authedGate)
	ag.GET("/leaderboard", api.leaderboard, authedGate)
	ag.GET("/:id", api.retrieve, authedGate)
	ag.PUT("/:id", api.update, staffGate)
	ag.DELETE("/:id", api.destroy, staffGate)
}

func (api *activityApi) log(ctx echo.Context) error {
	var data activity.NewRecord
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRecord")
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

	rec, err := api.svc.Log(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "logging activity")
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *activityApi) query(ctx echo.Context) error {
	filter := new(activity.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []activity.Record{})
	}
	filter.MadrassahID = contextMadrassahID(ctx)
	ordering := new(Ordering)
	ordering.Bind(ctx)

	records, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying activity records")
	}
	if records == nil {
		records = []activity.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *activityApi) leaderboard(ctx echo.Context) error {
	var filters activity.LeaderboardFilters
	if err := ctx.Bind(&filters); err != nil {
		return errors.Wrap(err, "binding to LeaderboardFilters")
	}
	filters.Clean()
	if err := api.validate.Struct(&filters); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	madrassahID := contextMadrassahID(ctx)

	teacherID := ctx.QueryParam("teacher_id")
	if teacherID == "" && claims.IsTeacher && !claims.IsAdmin {
		teacherID = claims.Subject
	}

	key := fmt.Sprintf("leaderboard:%s:%s:%s:%s:%s:%s",
		madrassahID, teacherID, filters.TimeRange, filters.MetricPriority, filters.Participation, filters.Completion)
	api.cache.RegisterDependency(stream.TableActivity, key)
	api.cache.RegisterDependency(stream.TableStudent, key)

	entries, err := api.cache.Get(ctx.Request().Context(), key, func(c context.Context) (interface{}, error) {
		return api.svc.Leaderboard(c, madrassahID, teacherID, filters)
	})
	if err != nil {
		return errors.Wrap(err, "building leaderboard")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *activityApi) retrieve(ctx echo.Context) error {
	rec, err := api.getScoped(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *activityApi) update(ctx echo.Context) error {
	rec, err := api.getScoped(ctx)
	if err != nil {
		return err
	}

	// only the author or an admin may touch a record
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if rec.AuthorID != claims.Subject && !claims.IsAdmin {
		return errHttpForbidden
	}

	var data activity.UpdateRecord
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRecord")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rec, err = api.svc.Update(ctx.Request().Context(), rec.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating activity record")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *activityApi) destroy(ctx echo.Context) error {
	rec, err := api.getScoped(ctx)
	if err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if rec.AuthorID != claims.Subject && !claims.IsAdmin {
		return errHttpForbidden
	}

	if err := api.svc.Delete(ctx.Request().Context(), rec.ID); err != nil {
		return errors.Wrap(err, "deleting activity record")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *activityApi) getScoped(ctx echo.Context) (activity.Record, error) {
	rec, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == activity.ErrNotFound {
			return activity.Record{}, errHttpNotFound
		}
		return activity.Record{}, errors.Wrap(err, "finding activity record by ID")
	}
	if mid := contextMadrassahID(ctx); mid != "" && rec.MadrassahID != mid {
		return activity.Record{}, errHttpNotFound
	}
	return rec, nil
}
