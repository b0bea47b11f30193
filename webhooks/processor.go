package webhooks

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-shopify-provisioner/core"
)

const (
	HeaderHMAC      = "X-Shopify-Hmac-Sha256"
	HeaderTopic     = "X-Shopify-Topic"
	HeaderShop      = "X-Shopify-Shop-Domain"
	HeaderWebhookID = "X-Shopify-Webhook-Id"

	TopicAppUninstalled = "app/uninstalled"
)

// Delivery is one webhook request as received.
type Delivery struct {
	ID        string
	Topic     string
	Shop      string
	Signature string
	Body      []byte
}

// DeliveryFromRequest reads the Shopify headers off an inbound request. The
// body is passed in because it must be read once, before verification.
func DeliveryFromRequest(header http.Header, body []byte) Delivery {
	return Delivery{
		ID:        strings.TrimSpace(header.Get(HeaderWebhookID)),
		Topic:     strings.ToLower(strings.TrimSpace(header.Get(HeaderTopic))),
		Shop:      strings.TrimSpace(header.Get(HeaderShop)),
		Signature: strings.TrimSpace(header.Get(HeaderHMAC)),
		Body:      body,
	}
}

// Verifier is satisfied by shopify.WebhookVerifier.
type Verifier interface {
	VerifyWebhook(body []byte, signature string) error
}

type Handler interface {
	Handle(ctx context.Context, tenant core.TenantID, delivery Delivery) error
}

type HandlerFunc func(ctx context.Context, tenant core.TenantID, delivery Delivery) error

func (f HandlerFunc) Handle(ctx context.Context, tenant core.TenantID, delivery Delivery) error {
	return f(ctx, tenant, delivery)
}

type Result struct {
	Tenant  core.TenantID
	Topic   string
	Deduped bool
	Ignored bool
}

type Option func(*Processor)

func WithObserver(observer *core.Observer) Option {
	return func(p *Processor) {
		if observer != nil {
			p.observer = observer
		}
	}
}

func WithClaimLease(lease time.Duration) Option {
	return func(p *Processor) {
		if lease > 0 {
			p.claimLease = lease
		}
	}
}

type Processor struct {
	verifier   Verifier
	ledger     DeliveryLedger
	observer   *core.Observer
	claimLease time.Duration

	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewProcessor(verifier Verifier, ledger DeliveryLedger, opts ...Option) (*Processor, error) {
	if verifier == nil {
		return nil, fmt.Errorf("webhooks: verifier is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("webhooks: delivery ledger is required")
	}
	p := &Processor{
		verifier:   verifier,
		ledger:     ledger,
		observer:   core.NewObserver("webhook", nil, nil),
		claimLease: 30 * time.Second,
		handlers:   map[string]Handler{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

func (p *Processor) Register(topic string, handler Handler) error {
	if p == nil {
		return fmt.Errorf("webhooks: processor is nil")
	}
	topic = strings.ToLower(strings.TrimSpace(topic))
	if topic == "" {
		return fmt.Errorf("webhooks: topic is required")
	}
	if handler == nil {
		return fmt.Errorf("webhooks: handler for %q is nil", topic)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.handlers[topic]; exists {
		return fmt.Errorf("webhooks: topic %q already registered", topic)
	}
	p.handlers[topic] = handler
	return nil
}

// Process verifies, dedupes and dispatches one delivery. Topics without a
// handler are acknowledged and ignored.
func (p *Processor) Process(ctx context.Context, delivery Delivery) (Result, error) {
	startedAt := time.Now()
	fields := map[string]any{"shop": delivery.Shop, "topic": delivery.Topic, "webhook_id": delivery.ID}
	result, err := p.process(ctx, delivery)
	if result.Tenant != "" {
		fields["shop"] = result.Tenant.String()
	}
	fields["deduped"] = result.Deduped
	fields["ignored"] = result.Ignored
	p.observer.Observe(ctx, startedAt, "process", err, fields)
	return result, err
}

func (p *Processor) process(ctx context.Context, delivery Delivery) (Result, error) {
	result := Result{Topic: delivery.Topic}
	if err := p.verifier.VerifyWebhook(delivery.Body, delivery.Signature); err != nil {
		return result, core.NewOAuthInvalidError("webhook signature rejected")
	}
	tenant, err := core.NormalizeTenantID(delivery.Shop)
	if err != nil {
		return result, core.NewBadInputError("invalid webhook shop", map[string]string{"shop": err.Error()})
	}
	result.Tenant = tenant
	if delivery.ID == "" {
		return result, core.NewBadInputError("webhook id is required", map[string]string{"webhookId": "missing " + HeaderWebhookID})
	}

	p.mu.RLock()
	handler, ok := p.handlers[delivery.Topic]
	p.mu.RUnlock()
	if !ok {
		result.Ignored = true
		return result, nil
	}

	_, claimed, err := p.ledger.Claim(ctx, delivery.ID, delivery.Topic, p.claimLease)
	if err != nil {
		return result, core.NewStorageError(err, "webhooks: claim delivery")
	}
	if !claimed {
		result.Deduped = true
		return result, nil
	}

	if err := handler.Handle(ctx, tenant, delivery); err != nil {
		_ = p.ledger.Release(ctx, delivery.ID)
		return result, err
	}
	if err := p.ledger.Complete(ctx, delivery.ID); err != nil {
		return result, core.NewStorageError(err, "webhooks: complete delivery")
	}
	return result, nil
}

// UninstallHandler forgets the shop's credential. The shop is back to
// Unauthorized and must install again.
func UninstallHandler(store core.CredentialStore) Handler {
	return HandlerFunc(func(ctx context.Context, tenant core.TenantID, _ Delivery) error {
		if store == nil {
			return fmt.Errorf("webhooks: credential store is required")
		}
		if err := store.Delete(ctx, tenant); err != nil {
			return core.NewStorageError(err, "webhooks: delete credential")
		}
		return nil
	})
}
