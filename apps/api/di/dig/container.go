package dig_container

import (
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/maktabhq/maktab/apps/api/echo"
	"github.com/maktabhq/maktab/core"
	"github.com/maktabhq/maktab/core/access"
	"github.com/maktabhq/maktab/core/activity"
	"github.com/maktabhq/maktab/core/attendance"
	"github.com/maktabhq/maktab/core/message"
	"github.com/maktabhq/maktab/core/stream"
	"github.com/maktabhq/maktab/core/student"
	"github.com/maktabhq/maktab/core/user"
	emailsvc "github.com/maktabhq/maktab/services/email"
	logsvc "github.com/maktabhq/maktab/services/logger"
	realtimesvc "github.com/maktabhq/maktab/services/realtime"
	"github.com/maktabhq/maktab/storage/database"
	sqlxrepos "github.com/maktabhq/maktab/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal("setting up database", err)
	}
	return db, db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newServerDeps(
	conf *core.Config,
	logger core.Logger,
	usrSvc user.ServiceInterface,
	stdSvc student.ServiceInterface,
	actSvc activity.ServiceInterface,
	attSvc attendance.ServiceInterface,
	msgSvc message.ServiceInterface,
	gate *access.Gate,
	cache *stream.QueryCache,
	validate *validator.Validate,
	translator ut.Translator,
) echoapi.ServerDeps {
	return echoapi.ServerDeps{
		Conf:          conf,
		Logger:        logger,
		UserSvc:       usrSvc,
		StudentSvc:    stdSvc,
		ActivitySvc:   actSvc,
		AttendanceSvc: attSvc,
		MessageSvc:    msgSvc,
		Gate:          gate,
		Cache:         cache,
		Validate:      validate,
		Translator:    translator,
	}
}

func newResolver(usrSvc user.ServiceInterface, hints access.HintCache, conf *core.Config, logger core.Logger) *access.Resolver {
	return access.NewResolver(usrSvc, hints, conf, logger)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(sqlxrepos.NewStudentRepository, dig.As(new(student.Repository))))
	must(c.Provide(sqlxrepos.NewActivityRepository, dig.As(new(activity.Repository))))
	must(c.Provide(sqlxrepos.NewAttendanceRepository, dig.As(new(attendance.Repository))))
	must(c.Provide(sqlxrepos.NewMessageRepository, dig.As(new(message.Repository))))

	// change stream & cache
	must(c.Provide(stream.NewHub))
	must(c.Provide(stream.NewQueryCache))
	must(c.Provide(realtimesvc.NewBridge))

	// access gating
	must(c.Provide(access.NewMemHintCache))
	must(c.Provide(newResolver))
	must(c.Provide(access.NewGate))

	// services
	must(c.Provide(user.NewService, dig.As(new(user.ServiceInterface))))
	must(c.Provide(student.NewService, dig.As(new(student.ServiceInterface))))
	must(c.Provide(activity.NewService, dig.As(new(activity.ServiceInterface))))
	must(c.Provide(attendance.NewService, dig.As(new(attendance.ServiceInterface))))
	must(c.Provide(message.NewService, dig.As(new(message.ServiceInterface))))
	must(c.Provide(activity.NewDigestMailer))

	must(c.Provide(newServerDeps))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
