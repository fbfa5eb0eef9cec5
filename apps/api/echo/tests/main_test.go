package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

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
	dummydb "github.com/maktabhq/maktab/storage/database/dummy"
)

var (
	conf *core.Config
	db   *dummydb.DB
	app  *echoapi.Server
	hub  *stream.Hub

	usrRepo user.Repository
	stdRepo student.Repository
	actRepo activity.Repository
	attRepo attendance.Repository
	msgRepo message.Repository

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

func newTestConfig() *core.Config {
	var c core.Config
	c.TestMode = true
	c.AppName = "Maktab"
	c.SecretKey = []byte("secret")
	c.Server.JWTExpirationDelta = time.Hour
	c.Server.JWTRefreshExpirationDelta = 4 * time.Hour
	c.Server.PasswordResetTimeoutDelta = time.Hour
	c.Server.RoleResolveTimeout = time.Second
	c.Server.MaxAuthRedirects = 3
	return &c
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func TestMain(m *testing.M) {
	conf = newTestConfig()

	// set up DB & repos
	db, _ = dummydb.Open()
	usrRepo = dummydb.NewUserRepository(db)
	stdRepo = dummydb.NewStudentRepository(db)
	actRepo = dummydb.NewActivityRepository(db)
	attRepo = dummydb.NewAttendanceRepository(db)
	msgRepo = dummydb.NewMessageRepository(db)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewServiceMock(nil, usrRepo, mailSvc, conf)

	hub = stream.NewHub()
	stdSvc := student.NewService(nil, stdRepo, hub)
	actSvc := activity.NewService(nil, actRepo, stdSvc, hub, core.NopLogger{})
	attSvc := attendance.NewService(nil, attRepo, hub)
	msgSvc := message.NewService(nil, msgRepo, hub)

	// access gating & change stream
	hints := access.NewMemHintCache()
	resolver := access.NewResolver(usrSvc, hints, conf, core.NopLogger{})
	gate := access.NewGate(resolver, conf, core.NopLogger{})
	cache := stream.NewQueryCache(core.NopLogger{})
	cache.Watch(hub)

	// set up server
	app = echoapi.NewServer(echoapi.ServerDeps{
		Conf:          conf,
		Logger:        core.NopLogger{},
		UserSvc:       usrSvc,
		StudentSvc:    stdSvc,
		ActivitySvc:   actSvc,
		AttendanceSvc: attSvc,
		MessageSvc:    msgSvc,
		Gate:          gate,
		Cache:         cache,
		Validate:      validate,
		Translator:    translator,
	})

	// run tests
	code := m.Run()

	cache.Unwatch()
	hub.Close()
	os.Exit(code)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	claims := echoapi.GetUserClaims(conf, usr)
	token, err := echoapi.GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return false, nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
