package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STOCK_MATCH_THRESHOLD", "")
	t.Setenv("STOCK_FETCH_ATTEMPTS", "0")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StockMatchThreshold != 80 {
		t.Fatalf("threshold=%d", cfg.StockMatchThreshold)
	}
	if cfg.StockFetchAttempts != 1 {
		t.Fatalf("attempts=%d", cfg.StockFetchAttempts)
	}
}

func TestThresholdOutOfRange(t *testing.T) {
	t.Setenv("STOCK_MATCH_THRESHOLD", "140")
	t.Setenv("SHIPMENT_MATCH_THRESHOLD", "65")
	cfg, _ := Load()
	if cfg.StockMatchThreshold != 80 {
		t.Fatalf("threshold=%d", cfg.StockMatchThreshold)
	}
	if cfg.ShipmentMatchThreshold != 65 {
		t.Fatalf("shipment threshold=%d", cfg.ShipmentMatchThreshold)
	}
}

func TestGoogleConfigured(t *testing.T) {
	cfg := Config{GoogleClientID: "id", GoogleClientSecret: "secret"}
	if cfg.GoogleConfigured() {
		t.Fatal("configured without refresh token")
	}
	cfg.GoogleRefreshToken = "token"
	if !cfg.GoogleConfigured() {
		t.Fatal("expected configured")
	}
}
