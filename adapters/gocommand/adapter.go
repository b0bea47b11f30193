package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	provcommand "github.com/goliatone/go-shopify-provisioner/command"
	"github.com/goliatone/go-shopify-provisioner/core"
	"github.com/goliatone/go-shopify-provisioner/query"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry      *command.Registry
	subscriptions []commanddispatcher.Subscription
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

// Close drops every dispatcher subscription made through this adapter.
func (a *RegistryAdapter) Close() {
	if a == nil {
		return
	}
	for _, sub := range a.subscriptions {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
	a.subscriptions = nil
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) error {
	if adapter == nil || adapter.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return fmt.Errorf("gocommand: command is required")
	}
	subscription := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return err
	}
	adapter.subscriptions = append(adapter.subscriptions, subscription)
	return nil
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) error {
	if adapter == nil || adapter.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return fmt.Errorf("gocommand: query is required")
	}
	subscription := commanddispatcher.SubscribeQuery(qry, runnerOpts...)
	if err := adapter.RegisterCommand(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return err
	}
	adapter.subscriptions = append(adapter.subscriptions, subscription)
	return nil
}

// Handlers lists the provisioner handlers to expose on the dispatcher. Nil
// entries are skipped.
type Handlers struct {
	ProvisionProduct *provcommand.ProvisionProductQuery
	CreateProduct    *provcommand.CreateProductQuery
	CompleteInstall  *provcommand.CompleteInstallCommand
	PutCredential    *provcommand.PutCredentialCommand
	ListRuns         *query.ListRunsQuery
	InstallStatus    *query.InstallStatusQuery
	ListTenants      *query.ListTenantsQuery
}

// RegisterHandlers subscribes every configured handler and initializes the
// registry. A failed registration drops the subscriptions made so far.
func RegisterHandlers(adapter *RegistryAdapter, handlers Handlers, opts ...runner.Option) error {
	steps := []func() error{
		func() error {
			if handlers.ProvisionProduct == nil {
				return nil
			}
			return RegisterAndSubscribeQuery[provcommand.ProvisionProductMessage, core.SagaResult](adapter, handlers.ProvisionProduct, opts...)
		},
		func() error {
			if handlers.CreateProduct == nil {
				return nil
			}
			return RegisterAndSubscribeQuery[provcommand.CreateProductMessage, core.SagaResult](adapter, handlers.CreateProduct, opts...)
		},
		func() error {
			if handlers.CompleteInstall == nil {
				return nil
			}
			return RegisterAndSubscribe[provcommand.CompleteInstallMessage](adapter, handlers.CompleteInstall, opts...)
		},
		func() error {
			if handlers.PutCredential == nil {
				return nil
			}
			return RegisterAndSubscribe[provcommand.PutCredentialMessage](adapter, handlers.PutCredential, opts...)
		},
		func() error {
			if handlers.ListRuns == nil {
				return nil
			}
			return RegisterAndSubscribeQuery[query.ListRunsMessage, []core.ProvisioningRun](adapter, handlers.ListRuns, opts...)
		},
		func() error {
			if handlers.InstallStatus == nil {
				return nil
			}
			return RegisterAndSubscribeQuery[query.InstallStatusMessage, core.InstallState](adapter, handlers.InstallStatus, opts...)
		},
		func() error {
			if handlers.ListTenants == nil {
				return nil
			}
			return RegisterAndSubscribeQuery[query.ListTenantsMessage, []core.TenantID](adapter, handlers.ListTenants, opts...)
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			adapter.Close()
			return err
		}
	}
	return adapter.Initialize()
}
