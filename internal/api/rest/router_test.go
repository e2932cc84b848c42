package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/stylematch/internal/auth"
	"github.com/louisbranch/stylematch/internal/broadcast"
	"github.com/louisbranch/stylematch/internal/matchmaking/engine"
	"github.com/louisbranch/stylematch/internal/matchmaking/storage/sqlite"
)

type testAPI struct {
	server *httptest.Server
	tokens *auth.Service
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "matchmaking.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	tokens, err := auth.NewService([]byte("test-secret"), time.Hour)
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}

	eng, err := engine.New(engine.Config{Store: store})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	hub := broadcast.NewHub()
	t.Cleanup(hub.Close)

	router := NewRouter(&Container{
		Tokens: tokens,
		Engine: eng,
		Store:  store,
		Hub:    hub,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testAPI{server: server, tokens: tokens}
}

func (a *testAPI) guestToken(t *testing.T) string {
	t.Helper()
	guest, err := a.tokens.IssueGuest()
	if err != nil {
		t.Fatalf("issue guest: %v", err)
	}
	return guest.Token
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, buf.Bytes()
}

func decodeInto(t *testing.T, data []byte, out any) {
	t.Helper()
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
}

func TestGuestEndpointIssuesToken(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.do(t, http.MethodPost, "/v1/auth/guest", "", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}

	var guest auth.Guest
	decodeInto(t, body, &guest)
	if guest.UserID == "" || guest.Token == "" {
		t.Fatalf("expected populated guest, got %s", body)
	}

	if _, err := api.tokens.Validate(guest.Token); err != nil {
		t.Fatalf("issued token failed validation: %v", err)
	}
}

func TestJoinRequiresToken(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.do(t, http.MethodPost, "/v1/join", "", JoinRequest{})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", resp.StatusCode, body)
	}

	var errResp errorBody
	decodeInto(t, body, &errResp)
	if errResp.Code != "AUTH_REQUIRED" {
		t.Fatalf("expected AUTH_REQUIRED, got %q", errResp.Code)
	}
}

func TestJoinCreatesWaitingSession(t *testing.T) {
	api := newTestAPI(t)
	token := api.guestToken(t)

	resp, body := api.do(t, http.MethodPost, "/v1/join", token, JoinRequest{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var joined JoinResponse
	decodeInto(t, body, &joined)
	if joined.Role != "A" {
		t.Fatalf("expected creator role A, got %q", joined.Role)
	}
	if joined.Status != "waiting" {
		t.Fatalf("expected waiting, got %q", joined.Status)
	}
	if joined.InviteCode == "" {
		t.Fatal("expected invite code for waiting session")
	}
	if joined.QueueETASeconds <= 0 {
		t.Fatalf("expected positive queue eta, got %d", joined.QueueETASeconds)
	}
}

func TestSecondJoinerActivatesSession(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.do(t, http.MethodPost, "/v1/join", api.guestToken(t), JoinRequest{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first join: %d: %s", resp.StatusCode, body)
	}
	var creator JoinResponse
	decodeInto(t, body, &creator)

	resp, body = api.do(t, http.MethodPost, "/v1/join", api.guestToken(t), JoinRequest{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second join: %d: %s", resp.StatusCode, body)
	}
	var joiner JoinResponse
	decodeInto(t, body, &joiner)

	if joiner.SessionID != creator.SessionID {
		t.Fatalf("expected attach to %s, got %s", creator.SessionID, joiner.SessionID)
	}
	if joiner.Role != "B" {
		t.Fatalf("expected role B, got %q", joiner.Role)
	}
	if joiner.Status != "active" {
		t.Fatalf("expected active, got %q", joiner.Status)
	}
}

func TestInviteJoinAttachesToPrivateSession(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.do(t, http.MethodPost, "/v1/join", api.guestToken(t), JoinRequest{IsPrivate: true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("private join: %d: %s", resp.StatusCode, body)
	}
	var creator JoinResponse
	decodeInto(t, body, &creator)
	if creator.InviteCode == "" {
		t.Fatal("expected invite code for private session")
	}

	resp, body = api.do(t, http.MethodPost, "/v1/join", api.guestToken(t), JoinRequest{InviteCode: creator.InviteCode})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("invite join: %d: %s", resp.StatusCode, body)
	}
	var joiner JoinResponse
	decodeInto(t, body, &joiner)
	if joiner.SessionID != creator.SessionID {
		t.Fatalf("expected attach to %s, got %s", creator.SessionID, joiner.SessionID)
	}
	if joiner.Status != "active" {
		t.Fatalf("expected active, got %q", joiner.Status)
	}
}

func TestGetSessionReturnsFullView(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.do(t, http.MethodPost, "/v1/join", api.guestToken(t), JoinRequest{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first join: %d: %s", resp.StatusCode, body)
	}
	var creator JoinResponse
	decodeInto(t, body, &creator)

	resp, body = api.do(t, http.MethodPost, "/v1/join", api.guestToken(t), JoinRequest{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second join: %d: %s", resp.StatusCode, body)
	}

	resp, body = api.do(t, http.MethodGet, "/v1/sessions/"+creator.SessionID, api.guestToken(t), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get session: %d: %s", resp.StatusCode, body)
	}

	var view SessionView
	decodeInto(t, body, &view)
	if view.Status != "active" {
		t.Fatalf("expected active, got %q", view.Status)
	}
	if view.InviteCode != "" {
		t.Fatal("expected invite code hidden after activation")
	}
	if len(view.Participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(view.Participants))
	}
	if len(view.Rounds) != 3 {
		t.Fatalf("expected 3 rounds, got %d", len(view.Rounds))
	}
	if view.Rounds[0].Topic != "attire" || view.Rounds[1].Topic != "hair" || view.Rounds[2].Topic != "location" {
		t.Fatalf("unexpected round topics: %+v", view.Rounds)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.do(t, http.MethodGet, "/v1/sessions/nope", api.guestToken(t), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", resp.StatusCode, body)
	}
}

func TestBotDemoPairsImmediately(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.do(t, http.MethodPost, "/v1/bot-demo", api.guestToken(t), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bot demo: %d: %s", resp.StatusCode, body)
	}

	var joined JoinResponse
	decodeInto(t, body, &joined)
	if !joined.BotDemo {
		t.Fatal("expected bot demo flag")
	}
	if joined.Status != "active" {
		t.Fatalf("expected active, got %q", joined.Status)
	}

	resp, body = api.do(t, http.MethodGet, "/v1/sessions/"+joined.SessionID, api.guestToken(t), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get session: %d: %s", resp.StatusCode, body)
	}
	var view SessionView
	decodeInto(t, body, &view)
	bots := 0
	for _, p := range view.Participants {
		if p.IsBot {
			bots++
		}
	}
	if bots != 1 {
		t.Fatalf("expected exactly one bot participant, got %d", bots)
	}
}

func TestAdvanceStatusEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := api.guestToken(t)

	resp, body := api.do(t, http.MethodPost, "/v1/bot-demo", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bot demo: %d: %s", resp.StatusCode, body)
	}
	var joined JoinResponse
	decodeInto(t, body, &joined)

	resp, body = api.do(t, http.MethodPost, "/v1/sessions/"+joined.SessionID+"/status", token, AdvanceStatusRequest{Status: "reveal"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("advance to reveal: %d: %s", resp.StatusCode, body)
	}

	// Moving backwards is rejected.
	resp, body = api.do(t, http.MethodPost, "/v1/sessions/"+joined.SessionID+"/status", token, AdvanceStatusRequest{Status: "waiting"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for regression, got %d: %s", resp.StatusCode, body)
	}

	resp, body = api.do(t, http.MethodPost, "/v1/sessions/"+joined.SessionID+"/status", token, AdvanceStatusRequest{Status: "nonsense"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d: %s", resp.StatusCode, body)
	}
}

func TestCompleteRoundEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := api.guestToken(t)

	resp, body := api.do(t, http.MethodPost, "/v1/bot-demo", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bot demo: %d: %s", resp.StatusCode, body)
	}
	var joined JoinResponse
	decodeInto(t, body, &joined)

	resp, body = api.do(t, http.MethodPost, "/v1/sessions/"+joined.SessionID+"/rounds/1/complete", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete round: %d: %s", resp.StatusCode, body)
	}

	resp, body = api.do(t, http.MethodPost, "/v1/sessions/"+joined.SessionID+"/rounds/99/complete", token, nil)
	if resp.StatusCode == http.StatusOK {
		t.Fatalf("expected error for unknown round, got 200: %s", body)
	}
}
