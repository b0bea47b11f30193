package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// keyedRecord is a row with a uuid string primary key and one natural key
// column the repository resolves identifiers against.
type keyedRecord interface {
	rowID() *string
	naturalKey() string
}

func (r *shopCredentialRecord) rowID() *string     { return &r.ID }
func (r *shopCredentialRecord) naturalKey() string { return r.Shop }

func (r *provisioningRunRecord) rowID() *string     { return &r.ID }
func (r *provisioningRunRecord) naturalKey() string { return r.ID }

func (r *webhookDeliveryRecord) rowID() *string     { return &r.ID }
func (r *webhookDeliveryRecord) naturalKey() string { return r.DeliveryID }

func (r *shopThrottleRecord) rowID() *string     { return &r.ID }
func (r *shopThrottleRecord) naturalKey() string { return r.Shop }

func keyedHandlers[T any, R interface {
	*T
	keyedRecord
}](column string) repository.ModelHandlers[R] {
	return repository.ModelHandlers[R]{
		NewRecord: func() R {
			return R(new(T))
		},
		GetID: func(record R) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(*record.rowID())
		},
		SetID: func(record R, id uuid.UUID) {
			if record != nil {
				*record.rowID() = id.String()
			}
		},
		GetIdentifier: func() string {
			return column
		},
		GetIdentifierValue: func(record R) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.naturalKey())
		},
	}
}

func shopCredentialHandlers() repository.ModelHandlers[*shopCredentialRecord] {
	return keyedHandlers[shopCredentialRecord]("shop")
}

func provisioningRunHandlers() repository.ModelHandlers[*provisioningRunRecord] {
	return keyedHandlers[provisioningRunRecord]("id")
}

func webhookDeliveryHandlers() repository.ModelHandlers[*webhookDeliveryRecord] {
	return keyedHandlers[webhookDeliveryRecord]("delivery_id")
}

func shopThrottleHandlers() repository.ModelHandlers[*shopThrottleRecord] {
	return keyedHandlers[shopThrottleRecord]("shop")
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
