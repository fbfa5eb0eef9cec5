package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/maktabhq/maktab/core/access"
	"github.com/maktabhq/maktab/core/student"
)

type studentApi struct {
	svc      student.ServiceInterface
	validate *validator.Validate
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := studentApi{
		svc:      deps.StudentSvc,
		validate: deps.Validate,
	}

	staffGate := gateMiddleware(deps.Gate, access.Requirements{RequireTeacher: true})
	adminGate := gateMiddleware(deps.Gate, access.Requirements{RequireAdmin: true})

	sg := g.Group("/students", jwt)
	sg.POST("", api.create, adminGate)
	sg.GET("", api.query, staffGate)
	sg.GET("/roster", api.roster, staffGate)
	sg.GET("/:id", api.retrieve, staffGate)
	sg.PUT("/:id", api.update, adminGate)
	sg.DELETE("/:id", api.destroy, adminGate)
}

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	// non-owner admins stay within their own madrassah
	if mid := contextMadrassahID(ctx); mid != "" {
		data.MadrassahID = mid
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	std, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, std)
}

func (api *studentApi) query(ctx echo.Context) error {
	filter := new(student.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []student.Student{})
	}
	filter.MadrassahID = contextMadrassahID(ctx)
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) roster(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	teacherID := ctx.QueryParam("teacher_id")
	if teacherID == "" && !claims.IsAdmin {
		teacherID = claims.Subject
	}

	students, err := api.svc.Roster(ctx.Request().Context(), contextMadrassahID(ctx), teacherID)
	if err != nil {
		return errors.Wrap(err, "fetching roster")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	std, err := api.getScoped(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *studentApi) update(ctx echo.Context) error {
	std, err := api.getScoped(ctx)
	if err != nil {
		return err
	}

	var data student.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	std, err = api.svc.Update(ctx.Request().Context(), std.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	std, err := api.getScoped(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), std.ID); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// getScoped fetches the student and rejects cross-madrassah access.
func (api *studentApi) getScoped(ctx echo.Context) (student.Student, error) {
	std, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return student.Student{}, errHttpNotFound
		}
		return student.Student{}, errors.Wrap(err, "finding student by ID")
	}
	if mid := contextMadrassahID(ctx); mid != "" && std.MadrassahID != mid {
		return student.Student{}, errHttpNotFound
	}
	return std, nil
}
