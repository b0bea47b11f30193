package sqlstore

import (
	"github.com/goliatone/go-shopify-provisioner/core"
	"github.com/goliatone/go-shopify-provisioner/ratelimit"
	"github.com/goliatone/go-shopify-provisioner/webhooks"
)

var (
	_ core.CredentialStore    = (*CredentialStore)(nil)
	_ core.RunRecorder        = (*ProvisioningRunStore)(nil)
	_ core.RunReader          = (*ProvisioningRunStore)(nil)
	_ webhooks.DeliveryLedger = (*WebhookDeliveryStore)(nil)
	_ ratelimit.StateStore    = (*ThrottleStateStore)(nil)
)
