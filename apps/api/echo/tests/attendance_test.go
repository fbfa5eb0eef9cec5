package tests

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/maktabhq/maktab/core/attendance"
	"github.com/maktabhq/maktab/core/user"
	testutil "github.com/maktabhq/maktab/tests"
)

func Test_attendanceApi_mark(t *testing.T) {
	db.Reset()

	taker := testutil.CreateUser(t, usrRepo, "Taker", "taker1", "taker@maktab.cd", "",
		[]string{user.RoleTeacher}, []string{user.CapAttendanceAccess}, madID, true)
	plain := testutil.CreateUser(t, usrRepo, "Plain", "teach1", "plain@maktab.cd", "",
		[]string{user.RoleTeacher}, nil, madID, true)
	std := testutil.CreateStudent(t, stdRepo, "Aisha", madID, taker.ID)

	date := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	mark := func(status attendance.Status, note string) []byte {
		return marchallObj(t, attendance.MarkAttendance{
			MadrassahID: madID, StudentID: std.ID, Status: status, Note: note, Date: date,
		})
	}

	t.Run("capability required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance", getToken(t, plain), mark(attendance.StatusPresent, ""))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusForbidden)
		}
	})

	var first attendance.Record
	t.Run("taker can mark", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance", getToken(t, taker), mark(attendance.StatusPresent, ""))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
			t.Fatalf("unmarshaling Record: %v", err)
		}
		if first.Status != attendance.StatusPresent || first.TakenBy != taker.ID {
			t.Errorf("unexpected record: %+v", first)
		}
	})

	t.Run("same day re-mark upserts", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance", getToken(t, taker), mark(attendance.StatusLate, "overslept"))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}

		var second attendance.Record
		if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
			t.Fatalf("unmarshaling Record: %v", err)
		}
		// keyed on (student, date): same row, updated in place
		if second.ID != first.ID {
			t.Errorf("upsert created a new row: first %q, second %q", first.ID, second.ID)
		}
		if second.Status != attendance.StatusLate || second.Note != "overslept" {
			t.Errorf("unexpected record: %+v", second)
		}
	})

	t.Run("query returns the single row", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/attendance", getToken(t, taker))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var records []attendance.Record
		if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
			t.Fatalf("unmarshaling records: %v", err)
		}
		if len(records) != 1 {
			t.Errorf("failed! got %d records; want 1", len(records))
		}
	})
}

func Test_attendanceApi_destroy(t *testing.T) {
	db.Reset()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin1", "admin@maktab.cd", "",
		[]string{user.RoleAdmin}, nil, madID, true)
	taker := testutil.CreateUser(t, usrRepo, "Taker", "taker1", "taker@maktab.cd", "",
		[]string{user.RoleTeacher}, []string{user.CapAttendanceAccess}, madID, true)
	std := testutil.CreateStudent(t, stdRepo, "Aisha", madID, taker.ID)

	body := marchallObj(t, attendance.MarkAttendance{
		MadrassahID: madID, StudentID: std.ID, Status: attendance.StatusAbsent,
		Date: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	})
	req, rec := newAuthRequest(http.MethodPost, "/v1/attendance", getToken(t, taker), body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("marking attendance: code = %v; body %s", rec.Code, rec.Body.String())
	}
	var marked attendance.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &marked); err != nil {
		t.Fatalf("unmarshaling Record: %v", err)
	}

	t.Run("Admin required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/attendance/"+marked.ID, getToken(t, taker))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("Admin can delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/attendance/"+marked.ID, getToken(t, admin))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusNoContent)
		}
	})
}
