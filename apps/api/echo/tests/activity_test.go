package tests

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/maktabhq/maktab/core/activity"
	"github.com/maktabhq/maktab/core/user"
	testutil "github.com/maktabhq/maktab/tests"
)

func Test_activityApi_log(t *testing.T) {
	db.Reset()

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teach1", "teacher@maktab.cd", "", []string{user.RoleTeacher}, nil, madID, true)
	parent := testutil.CreateUser(t, usrRepo, "Parent", "parent1", "parent@maktab.cd", "", []string{user.RoleParent}, nil, madID, true)
	std := testutil.CreateStudent(t, stdRepo, "Aisha", madID, teacher.ID)

	body := marchallObj(t, activity.NewRecord{
		MadrassahID: madID,
		StudentID:   std.ID,
		Type:        activity.TypeSabaq,
		Quality:     "good",
		Date:        time.Now().UTC(),
	})

	t.Run("Teacher or admin required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/activities", getToken(t, parent), body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("Teacher can log", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/activities", getToken(t, teacher), body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}

		var rec2 activity.Record
		if err := json.Unmarshal(rec.Body.Bytes(), &rec2); err != nil {
			t.Fatalf("unmarshaling Record: %v", err)
		}
		if rec2.AuthorID != teacher.ID || rec2.Type != activity.TypeSabaq {
			t.Errorf("unexpected record returned: %+v", rec2)
		}
	})
}

func Test_activityApi_authorship(t *testing.T) {
	db.Reset()

	author := testutil.CreateUser(t, usrRepo, "Author", "teach1", "author@maktab.cd", "", []string{user.RoleTeacher}, nil, madID, true)
	rival := testutil.CreateUser(t, usrRepo, "Rival", "teach2", "rival@maktab.cd", "", []string{user.RoleTeacher}, nil, madID, true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin1", "admin@maktab.cd", "", []string{user.RoleAdmin}, nil, madID, true)
	std := testutil.CreateStudent(t, stdRepo, "Aisha", madID, author.ID)

	logOne := func(t *testing.T) activity.Record {
		t.Helper()
		body := marchallObj(t, activity.NewRecord{
			MadrassahID: madID, StudentID: std.ID, Type: activity.TypeDhor, Date: time.Now().UTC(),
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/activities", getToken(t, author), body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("logging record: code = %v; body %s", rec.Code, rec.Body.String())
		}
		var r activity.Record
		if err := json.Unmarshal(rec.Body.Bytes(), &r); err != nil {
			t.Fatalf("unmarshaling Record: %v", err)
		}
		return r
	}

	update := marchallObj(t, activity.UpdateRecord{Quality: "excellent"})

	t.Run("non-author cannot update", func(t *testing.T) {
		r := logOne(t)
		req, rec := newAuthRequest(http.MethodPut, "/v1/activities/"+r.ID, getToken(t, rival), update)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("author can update", func(t *testing.T) {
		r := logOne(t)
		req, rec := newAuthRequest(http.MethodPut, "/v1/activities/"+r.ID, getToken(t, author), update)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
	})

	t.Run("admin can delete", func(t *testing.T) {
		r := logOne(t)
		req, rec := newAuthRequest(http.MethodDelete, "/v1/activities/"+r.ID, getToken(t, admin))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusNoContent)
		}
	})
}

func Test_activityApi_leaderboard(t *testing.T) {
	db.Reset()

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teach1", "teacher@maktab.cd", "", []string{user.RoleTeacher}, nil, madID, true)
	std := testutil.CreateStudent(t, stdRepo, "Aisha", madID, teacher.ID)
	token := getToken(t, teacher)

	fetch := func(t *testing.T) []activity.LeaderboardEntry {
		t.Helper()
		req, rec := newAuthRequest(http.MethodGet, "/v1/activities/leaderboard", token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("leaderboard: code = %v; body %s", rec.Code, rec.Body.String())
		}
		var entries []activity.LeaderboardEntry
		if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
			t.Fatalf("unmarshaling entries: %v", err)
		}
		return entries
	}

	// prime the cache with the empty board
	entries := fetch(t)
	if len(entries) != 1 || entries[0].TotalPoints != 0 {
		t.Fatalf("unexpected initial leaderboard: %+v", entries)
	}

	// log an activity; the change event must invalidate the cached board
	body := marchallObj(t, activity.NewRecord{
		MadrassahID: madID, StudentID: std.ID, Type: activity.TypeSabaq, Date: time.Now().UTC(),
	})
	req, rec := newAuthRequest(http.MethodPost, "/v1/activities", token, body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("logging record: code = %v; body %s", rec.Code, rec.Body.String())
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		entries = fetch(t)
		if len(entries) == 1 && entries[0].Sabaqs == 1 && entries[0].Rank == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("leaderboard never refreshed: %+v", entries)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
