package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/pricepulse-project/backend/internal/models"
)

func castPayload(roundID, address, direction string) fiber.Map {
	return fiber.Map{
		"round_id":     roundID,
		"token_symbol": "BTC",
		"user_address": address,
		"direction":    direction,
	}
}

func TestCastVoteLifecycle(t *testing.T) {
	app, st := newRoundApp()

	round, err := st.CreateRound(context.Background(), "BTC", 300)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	resp := postJSON(t, app, "/api/v1/votes", castPayload(round.ID.String(), voterA, "up"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status=%d want 201", resp.StatusCode)
	}
	var vote models.Vote
	decodeBody(t, resp, &vote)
	if vote.Direction != models.VoteUp || vote.RoundID != round.ID {
		t.Fatalf("vote=%+v", vote)
	}

	// The recorded vote is readable back through the API
	resp = getPath(t, app, "/api/v1/rounds/"+round.ID.String()+"/votes/"+voterA)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lookup status=%d", resp.StatusCode)
	}

	// One vote per round per account
	resp = postJSON(t, app, "/api/v1/votes", castPayload(round.ID.String(), voterA, "down"))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("repeat status=%d want 409", resp.StatusCode)
	}
	var rejection struct {
		Error string `json:"error"`
	}
	decodeBody(t, resp, &rejection)
	if rejection.Error != "You have already voted in this round" {
		t.Fatalf("rejection=%q", rejection.Error)
	}
}

func TestCastVoteRejectsBadDirection(t *testing.T) {
	app, st := newRoundApp()

	round, err := st.CreateRound(context.Background(), "BTC", 300)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	resp := postJSON(t, app, "/api/v1/votes", castPayload(round.ID.String(), voterA, "sideways"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", resp.StatusCode)
	}
}

func TestCastVoteRejectsInvalidAddress(t *testing.T) {
	app, st := newRoundApp()

	round, err := st.CreateRound(context.Background(), "BTC", 300)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	resp := postJSON(t, app, "/api/v1/votes", castPayload(round.ID.String(), "not-a-wallet", "up"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", resp.StatusCode)
	}
}

func TestCastVoteRejectsStaleRound(t *testing.T) {
	app, st := newRoundApp()
	ctx := context.Background()

	stale, err := st.CreateRound(ctx, "BTC", 300)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := st.CloseRound(ctx, stale.ID); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := st.CreateRound(ctx, "BTC", 300); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// A client still holding the ended round casts into it
	resp := postJSON(t, app, "/api/v1/votes", castPayload(stale.ID.String(), voterA, "up"))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status=%d want 409", resp.StatusCode)
	}
}

func TestGetVoteNotFound(t *testing.T) {
	app, st := newRoundApp()

	round, err := st.CreateRound(context.Background(), "BTC", 300)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	resp := getPath(t, app, "/api/v1/rounds/"+round.ID.String()+"/votes/"+voterA)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status=%d want 404", resp.StatusCode)
	}
}
