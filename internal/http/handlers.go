package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	svix "github.com/svix/svix-webhooks/go"
	"go.uber.org/zap"

	"github.com/blogware/user-sync-service/internal/clerk"
	"github.com/blogware/user-sync-service/internal/domain"
	"github.com/blogware/user-sync-service/internal/log"
	"github.com/blogware/user-sync-service/internal/metrics"
	"github.com/blogware/user-sync-service/internal/usersync"
)

// MetadataPatcher writes derived fields back into the identity provider.
// *clerk.Client implements it.
type MetadataPatcher interface {
	PatchPublicMetadata(ctx context.Context, clerkID string, md clerk.PublicMetadata) error
}

// DeliveryLog remembers which svix message ids were fully processed.
// *repo.Redis implements it.
type DeliveryLog interface {
	WebhookSeen(ctx context.Context, msgID string) (bool, error)
	MarkWebhook(ctx context.Context, msgID string, ttl time.Duration) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Sync     *usersync.Service
	Webhook  *svix.Webhook
	Clerk    MetadataPatcher // nil: metadata write-back disabled
	Dedup    DeliveryLog     // nil: delivery dedupe disabled
	DB       Pinger
	DedupTTL time.Duration
}

func NewHandler(sync *usersync.Service, wh *svix.Webhook, patcher MetadataPatcher, dedup DeliveryLog, db Pinger, dedupTTL time.Duration) *Handler {
	return &Handler{
		Sync:     sync,
		Webhook:  wh,
		Clerk:    patcher,
		Dedup:    dedup,
		DB:       db,
		DedupTTL: dedupTTL,
	}
}

// Clerk webhook envelope. Data stays raw until the type is known.
type webhookEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type userEventData struct {
	ID             string  `json:"id"`
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	ImageURL       *string `json:"image_url"`
	EmailAddresses []struct {
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
	Username *string `json:"username"`
}

// ClerkWebhook handles POST /api/webhooks. The raw body is verified against
// the svix headers before anything is parsed; nothing below the Verify call
// runs for an unauthenticated payload. A delivery is only marked processed
// after it succeeded: svix retries a 400 under the same message id, and that
// retry must not be swallowed as a duplicate.
func (h *Handler) ClerkWebhook(c *gin.Context) {
	if h.Webhook == nil {
		log.L.Error("webhook received but signing secret is not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signing secret not configured"})
		return
	}

	svixID := c.GetHeader("svix-id")
	if svixID == "" || c.GetHeader("svix-timestamp") == "" || c.GetHeader("svix-signature") == "" {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "missing_headers").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing svix headers"})
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read body"})
		return
	}

	if err := h.Webhook.Verify(body, c.Request.Header); err != nil {
		log.L.Warn("webhook verification failed", zap.String("svix_id", svixID), zap.Error(err))
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "bad_signature").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "verification failed"})
		return
	}

	ctx := c.Request.Context()

	if h.Dedup != nil {
		seen, err := h.Dedup.WebhookSeen(ctx, svixID)
		if err != nil {
			// dedupe is best-effort; the upsert is idempotent anyway
			log.L.Warn("webhook dedupe check failed", zap.String("svix_id", svixID), zap.Error(err))
		} else if seen {
			log.L.Info("duplicate webhook delivery", zap.String("svix_id", svixID))
			metrics.WebhookEventsTotal.WithLabelValues("unknown", "duplicate").Inc()
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
	}

	var evt webhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "bad_payload").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	reqID := requestID(c)

	switch evt.Type {
	case "user.created", "user.updated":
		var data userEventData
		if err := json.Unmarshal(evt.Data, &data); err != nil || data.ID == "" {
			metrics.WebhookEventsTotal.WithLabelValues(evt.Type, "bad_payload").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user payload"})
			return
		}
		if len(data.EmailAddresses) == 0 || data.EmailAddresses[0].EmailAddress == "" {
			metrics.WebhookEventsTotal.WithLabelValues(evt.Type, "bad_payload").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing email address"})
			return
		}

		username := strOrEmpty(data.Username)
		if username == "" {
			username = "user_" + data.ID
		}

		u, err := h.Sync.CreateOrUpdateUser(ctx, domain.UserFields{
			ClerkID:        data.ID,
			Email:          data.EmailAddresses[0].EmailAddress,
			FirstName:      strOrEmpty(data.FirstName),
			LastName:       strOrEmpty(data.LastName),
			Username:       username,
			ProfilePicture: strOrEmpty(data.ImageURL),
		}, reqID)
		if err != nil {
			log.L.Error("user sync failed", zap.String("clerk_id", data.ID), zap.String("type", evt.Type), zap.Error(err))
			metrics.WebhookEventsTotal.WithLabelValues(evt.Type, "error").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not sync user"})
			return
		}

		if evt.Type == "user.created" && h.Clerk != nil {
			md := clerk.PublicMetadata{UserMongoID: u.ID.Hex(), IsAdmin: u.IsAdmin}
			if err := h.Clerk.PatchPublicMetadata(ctx, u.ClerkID, md); err != nil {
				// best-effort: the mirrored record stands either way
				log.L.Warn("clerk metadata patch failed", zap.String("clerk_id", u.ClerkID), zap.Error(err))
				metrics.MetadataPatchFailures.Inc()
			}
		}

		log.L.Info("user synced",
			zap.String("clerk_id", data.ID),
			zap.String("type", evt.Type),
			zap.String("username", u.Username),
		)
		metrics.WebhookEventsTotal.WithLabelValues(evt.Type, "ok").Inc()

	case "user.deleted":
		var data userEventData
		if err := json.Unmarshal(evt.Data, &data); err != nil || data.ID == "" {
			metrics.WebhookEventsTotal.WithLabelValues(evt.Type, "bad_payload").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing user id"})
			return
		}
		if err := h.Sync.DeleteUser(ctx, data.ID, reqID); err != nil {
			log.L.Error("user delete failed", zap.String("clerk_id", data.ID), zap.Error(err))
			metrics.WebhookEventsTotal.WithLabelValues(evt.Type, "error").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not delete user"})
			return
		}
		log.L.Info("user deleted", zap.String("clerk_id", data.ID))
		metrics.WebhookEventsTotal.WithLabelValues(evt.Type, "ok").Inc()

	default:
		log.L.Info("ignoring webhook event", zap.String("type", evt.Type), zap.String("svix_id", svixID))
		metrics.WebhookEventsTotal.WithLabelValues(evt.Type, "ignored").Inc()
	}

	// every path past the switch processed the delivery; only now is the
	// id recorded, so a failed delivery stays retryable under the same id
	if h.Dedup != nil {
		if err := h.Dedup.MarkWebhook(ctx, svixID, h.DedupTTL); err != nil {
			log.L.Warn("webhook dedupe mark failed", zap.String("svix_id", svixID), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Healthz(c *gin.Context) {
	if h.DB != nil {
		if err := h.DB.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
