package user

import (
	"context"

	"github.com/maktabhq/maktab/core"
)

type serviceMock struct {
	Service
}

// NewServiceMock returns a Service whose async side effects run synchronously,
// for use in tests.
func NewServiceMock(db core.DB, repo Repository, mailSvc core.EmailService, conf *core.Config) ServiceInterface {
	return &serviceMock{
		Service: Service{db: db, repo: repo, mailSvc: mailSvc, conf: conf},
	}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}
