package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/pricepulse-project/backend/internal/models"
	"github.com/pricepulse-project/backend/internal/store"
)

func newActivityApp() (*fiber.App, *store.Memory) {
	st := store.NewMemory(nil)
	handler := NewActivityHandler(st, nil, 0)

	app := fiber.New()
	app.Get("/api/v1/activity", handler.GetRecentActivity)
	app.Post("/api/v1/wallet/connect", handler.ConnectWallet)
	return app, st
}

func TestConnectWalletRecordsJoin(t *testing.T) {
	app, st := newActivityApp()

	resp := postJSON(t, app, "/api/v1/wallet/connect", fiber.Map{
		"address":      "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
		"token_symbol": "btc",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status=%d", resp.StatusCode)
	}

	var body struct {
		Address string `json:"address"`
	}
	decodeBody(t, resp, &body)
	if body.Address != "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed" {
		t.Fatalf("address=%s want checksum form", body.Address)
	}

	// The handler goes through the same join path as the session wallet,
	// so the feed entry carries the checksummed address and uppercased symbol
	entries, err := st.ListRecentActivity(context.Background(), 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Kind != models.ActivityJoin {
		t.Fatalf("activity=%+v want one join", entries)
	}
	if entries[0].UserAddress != body.Address || entries[0].TokenSymbol != "BTC" {
		t.Fatalf("join entry=%+v", entries[0])
	}
}

func TestConnectWalletRejectsInvalidAddress(t *testing.T) {
	app, st := newActivityApp()

	resp := postJSON(t, app, "/api/v1/wallet/connect", fiber.Map{
		"address":      "not-an-address",
		"token_symbol": "BTC",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", resp.StatusCode)
	}

	entries, err := st.ListRecentActivity(context.Background(), 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected connect left activity: %+v", entries)
	}
}
