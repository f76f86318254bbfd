package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func envelopeHandler(t *testing.T, status int, body string, check func(r *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

func TestStartSession(t *testing.T) {
	ts := httptest.NewServer(envelopeHandler(t, http.StatusCreated,
		`{"success":true,"data":{"session":{"id":"s-1","state":"active"},"question":{"id":"two-sum","entry_point":"twoSum"}}}`,
		func(r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/api/v1/sessions" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			var req StartRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.TimeLimit != 30 || req.QuestionCount != 3 {
				t.Errorf("unexpected body: %+v", req)
			}
		}))
	defer ts.Close()

	c := NewClient(ts.URL + "/")
	started, err := c.StartSession(context.Background(), StartRequest{TimeLimit: 30, QuestionCount: 3})
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if started.Session.ID != "s-1" || started.Question.EntryPoint != "twoSum" {
		t.Errorf("unexpected response: %+v", started)
	}
}

func TestAPIErrorIsDecoded(t *testing.T) {
	ts := httptest.NewServer(envelopeHandler(t, http.StatusConflict,
		`{"success":false,"error":{"code":"not_submitted","message":"current question has not been submitted"}}`, nil))
	defer ts.Close()

	_, err := NewClient(ts.URL).Next(context.Background(), "s-1")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsCode(err, "not_submitted") {
		t.Errorf("expected not_submitted, got %v", err)
	}
	apiErr := err.(*APIError)
	if apiErr.Status != http.StatusConflict {
		t.Errorf("status = %d, want 409", apiErr.Status)
	}
}

func TestNonEnvelopeResponse(t *testing.T) {
	ts := httptest.NewServer(envelopeHandler(t, http.StatusBadGateway, "<html>bad gateway</html>", nil))
	defer ts.Close()

	if err := NewClient(ts.URL).Health(context.Background()); err == nil {
		t.Fatal("expected error for non-JSON response")
	}
}

func TestListSessionsQuery(t *testing.T) {
	ts := httptest.NewServer(envelopeHandler(t, http.StatusOK,
		`{"success":true,"data":{"sessions":[{"id":"a"},{"id":"b"}],"total":2}}`,
		func(r *http.Request) {
			q := r.URL.Query()
			if q.Get("topic") != "arrays" || q.Get("limit") != "2" || q.Has("offset") {
				t.Errorf("unexpected query: %s", r.URL.RawQuery)
			}
		}))
	defer ts.Close()

	sessions, err := NewClient(ts.URL).ListSessions(context.Background(), ListOptions{Topic: "arrays", Limit: 2})
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 2 || sessions[1].ID != "b" {
		t.Errorf("unexpected sessions: %+v", sessions)
	}
}

func TestSubmitPath(t *testing.T) {
	ts := httptest.NewServer(envelopeHandler(t, http.StatusOK,
		`{"success":true,"data":{"result":{"question_id":"two-sum","correct":true},"affordance":"end_session"}}`,
		func(r *http.Request) {
			if r.URL.Path != "/api/v1/sessions/s-1/submit" {
				t.Errorf("path = %s", r.URL.Path)
			}
		}))
	defer ts.Close()

	out, err := NewClient(ts.URL).Submit(context.Background(), "s-1", "function twoSum() {}")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !out.Result.Correct || out.Affordance != "end_session" {
		t.Errorf("unexpected outcome: %+v", out)
	}
}
