package dummydb

import (
	"sync"

	"github.com/maktabhq/maktab/core/activity"
	"github.com/maktabhq/maktab/core/attendance"
	"github.com/maktabhq/maktab/core/message"
	"github.com/maktabhq/maktab/core/student"
	"github.com/maktabhq/maktab/core/user"
)

type (
	DB struct {
		user       *userTable
		student    *studentTable
		activity   *activityTable
		attendance *attendanceTable
		message    *messageTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	studentTable struct {
		sync.RWMutex
		table map[string]*student.Student
	}

	activityTable struct {
		sync.RWMutex
		table map[string]*activity.Record
	}

	attendanceTable struct {
		sync.RWMutex
		table map[string]*attendance.Record
	}

	messageTable struct {
		sync.RWMutex
		table map[string]*message.Message
	}
)

// Reset empties all tables; used between tests.
func (db *DB) Reset() {
	db.user.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.Unlock()

	db.student.Lock()
	db.student.table = make(map[string]*student.Student)
	db.student.Unlock()

	db.activity.Lock()
	db.activity.table = make(map[string]*activity.Record)
	db.activity.Unlock()

	db.attendance.Lock()
	db.attendance.table = make(map[string]*attendance.Record)
	db.attendance.Unlock()

	db.message.Lock()
	db.message.table = make(map[string]*message.Message)
	db.message.Unlock()
}

func Open() (*DB, error) {
	db := &DB{
		user:       &userTable{table: make(map[string]*user.User)},
		student:    &studentTable{table: make(map[string]*student.Student)},
		activity:   &activityTable{table: make(map[string]*activity.Record)},
		attendance: &attendanceTable{table: make(map[string]*attendance.Record)},
		message:    &messageTable{table: make(map[string]*message.Message)},
	}
	return db, nil
}
