package messaging_test

import (
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/service/messaging"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
)

func newService() (*messaging.Service, domain.NotificationRepository) {
	notifications := memory.NewNotificationRepository()
	svc := messaging.NewService(
		memory.NewConversationRepository(),
		notifications,
		log.New().WithField("test", "messaging"),
	)
	return svc, notifications
}

func TestEnsureConversation_Idempotent(t *testing.T) {
	svc, _ := newService()

	first, err := svc.EnsureConversation("buyer-1", "seller-1", "request-1")
	if err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected generated conversation id")
	}

	// Повторный вызов для той же пары возвращает тот же диалог.
	second, err := svc.EnsureConversation("buyer-1", "seller-1", "request-1")
	if err != nil {
		t.Fatalf("second ensure failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected conversation reuse, got %s and %s", first.ID, second.ID)
	}

	// Порядок участников не важен.
	reversed, err := svc.EnsureConversation("seller-1", "buyer-1", "")
	if err != nil {
		t.Fatalf("reversed ensure failed: %v", err)
	}
	if reversed.ID != first.ID {
		t.Fatalf("expected reuse for reversed pair, got %s", reversed.ID)
	}
}

func TestEnsureConversation_RequestTag(t *testing.T) {
	svc, _ := newService()

	conversation, err := svc.EnsureConversation("buyer-1", "seller-1", "request-1")
	if err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if conversation.RequestID == nil || *conversation.RequestID != "request-1" {
		t.Fatalf("expected request tag, got %v", conversation.RequestID)
	}
}

func TestNotify(t *testing.T) {
	svc, notifications := newService()

	err := svc.Notify(domain.Notification{
		UserID:  "seller-1",
		Type:    domain.NotificationTypeOfferAccepted,
		Title:   "Offer Accepted",
		Message: "your offer was accepted",
		Link:    "/requests/request-1",
	})
	if err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	list, err := notifications.ListByUser("seller-1", 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(list))
	}
	if list[0].ID == "" || list[0].CreatedAt.IsZero() {
		t.Fatal("expected id and created_at to be filled")
	}
}

func TestNotify_RequiresAddressee(t *testing.T) {
	svc, _ := newService()

	if err := svc.Notify(domain.Notification{Type: domain.NotificationTypeOfferRejected}); err == nil {
		t.Fatal("expected error for notification without addressee")
	}
}
