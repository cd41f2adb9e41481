package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/spllit/spllit-backend/internal/models"
)

func TestNotifyMatchRequested_DeliversToBothParties(t *testing.T) {
	hub := newTestHub()
	owner := connect(hub, 10, "owner")
	requester := connect(hub, 20, "requester")

	match := &models.Match{
		RideID:      5,
		RequesterID: 20,
		OwnerID:     10,
		Status:      models.MatchStatusPending,
	}
	match.ID = 7

	NotifyMatchRequested(hub, match, "requester")

	ownerEvents := receivedTypes(t, owner)
	if len(ownerEvents) != 1 || ownerEvents[0] != "match_request_10" {
		t.Fatalf("owner should get match_request_10, got %v", ownerEvents)
	}
	requesterEvents := receivedTypes(t, requester)
	if len(requesterEvents) != 1 || requesterEvents[0] != "match_created_20" {
		t.Fatalf("requester should get match_created_20, got %v", requesterEvents)
	}
}

// Offline targets are dropped, not queued, and must never panic.
func TestNotifyMatchRequested_OfflineTargetsDropped(t *testing.T) {
	hub := newTestHub()

	match := &models.Match{RideID: 5, RequesterID: 20, OwnerID: 10, Status: models.MatchStatusPending}
	match.ID = 7

	NotifyMatchRequested(hub, match, "requester") // nobody connected
}

func TestNotifyMatchAccepted_CarriesChatRoom(t *testing.T) {
	hub := newTestHub()
	requester := connect(hub, 20, "requester")

	match := &models.Match{RideID: 5, RequesterID: 20, OwnerID: 10, Status: models.MatchStatusAccepted}
	match.ID = 7
	match.ChatRoomID = ChatRoomID(7)

	NotifyMatchAccepted(hub, match)

	raw := <-requester.Send
	var event WebSocketMessage
	if err := json.Unmarshal(raw, &event); err != nil {
		t.Fatalf("undecodable event: %v", err)
	}
	if event.Type != fmt.Sprintf("match_accepted_%d", match.RequesterID) {
		t.Fatalf("unexpected event type %q", event.Type)
	}
	data, ok := event.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected payload shape %T", event.Data)
	}
	if data["chatRoomId"] != "match_7" {
		t.Fatalf("payload should carry the chat room id, got %v", data["chatRoomId"])
	}
}

func TestNotifyMatchRejected_OnlyRequesterNotified(t *testing.T) {
	hub := newTestHub()
	owner := connect(hub, 10, "owner")
	requester := connect(hub, 20, "requester")

	match := &models.Match{RideID: 5, RequesterID: 20, OwnerID: 10, Status: models.MatchStatusRejected}
	match.ID = 7

	NotifyMatchRejected(hub, match)

	if got := receivedTypes(t, owner); len(got) != 0 {
		t.Fatalf("owner should not be notified of a rejection they issued, got %v", got)
	}
	if got := receivedTypes(t, requester); len(got) != 1 || got[0] != "match_rejected_20" {
		t.Fatalf("requester should get match_rejected_20, got %v", got)
	}
}

func TestNotifyRideCreated_ExcludesCreator(t *testing.T) {
	hub := newTestHub()
	creator := connect(hub, 1, "creator")
	other := connect(hub, 2, "other")

	ride := &models.Ride{OwnerID: 1, Origin: "Velachery", Destination: "Tambaram", Seats: 2}
	ride.ID = 3

	NotifyRideCreated(hub, ride)

	if got := receivedTypes(t, creator); len(got) != 0 {
		t.Fatalf("creator must not receive their own announcement, got %v", got)
	}
	if got := receivedTypes(t, other); len(got) != 1 || got[0] != "new-ride-created" {
		t.Fatalf("other users should get new-ride-created, got %v", got)
	}
}

func TestPreview_TruncatesLongContent(t *testing.T) {
	short := "see you at the gate"
	if preview(short) != short {
		t.Fatal("short content should pass through unchanged")
	}

	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	got := preview(string(long))
	if len(got) >= 200 {
		t.Fatalf("long content should be truncated, got %d bytes", len(got))
	}
}

// Truncation must never split a multi-byte rune.
func TestPreview_KeepsMultiByteContentValid(t *testing.T) {
	long := strings.Repeat("வணக்கம் ", 30)
	got := preview(long)
	if !utf8.ValidString(got) {
		t.Fatalf("preview produced invalid UTF-8: %q", got)
	}
	if utf8.RuneCountInString(got) > 81 { // 80 runes plus the ellipsis
		t.Fatalf("preview too long: %d runes", utf8.RuneCountInString(got))
	}
}
