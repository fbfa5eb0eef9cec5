package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/maktabhq/maktab/core/student"
	"github.com/maktabhq/maktab/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles, capabilities []string,
	madrassahID string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:         name,
		Username:     uname,
		Email:        email,
		Roles:        roles,
		Capabilities: capabilities,
		MadrassahID:  madrassahID,
		CreatedAt:    tstamp,
		UpdatedAt:    tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateStudent(
	t *testing.T,
	repo student.Repository,
	name, madrassahID, teacherID string,
	createdAt ...time.Time,
) student.Student {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	std := student.Student{
		Name:        name,
		MadrassahID: madrassahID,
		TeacherID:   teacherID,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	}
	std.SetActive(true)
	std, err := repo.CreateStudent(context.Background(), std)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return std
}
