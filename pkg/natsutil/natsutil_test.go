package natsutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/skillswaphq/skillswap-search/engine/domain"
)

func TestNatsHeaderCarrier(t *testing.T) {
	msg := &nats.Msg{}
	carrier := (*natsHeaderCarrier)(msg)

	carrier.Set("traceparent", "00-abc-def-01")
	if got := carrier.Get("traceparent"); got != "00-abc-def-01" {
		t.Fatalf("expected traceparent, got %q", got)
	}

	keys := carrier.Keys()
	if len(keys) != 1 {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestNatsHeaderCarrierNilHeader(t *testing.T) {
	msg := &nats.Msg{}
	carrier := (*natsHeaderCarrier)(msg)

	if got := carrier.Get("missing"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	if keys := carrier.Keys(); keys != nil {
		t.Fatalf("expected nil keys, got %v", keys)
	}
}

func TestSyncRunRoundTripsAsJSON(t *testing.T) {
	run := domain.SyncRun{
		Attempted:    3,
		SuccessCount: 2,
		ErrorCount:   1,
		Errors:       []domain.SyncError{{RecordID: "r2", Reason: "EmbeddingError"}},
		StartedAt:    time.Unix(1700000000, 0).UTC(),
	}
	data, err := json.Marshal(run)
	if err != nil {
		t.Fatal(err)
	}

	var decoded domain.SyncRun
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Attempted != 3 || decoded.Errors[0].Reason != "EmbeddingError" {
		t.Fatalf("unexpected: %+v", decoded)
	}
}
