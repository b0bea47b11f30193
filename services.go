package provisioner

import "github.com/goliatone/go-shopify-provisioner/core"

type TenantID = core.TenantID

type CredentialRecord = core.CredentialRecord

type CredentialStore = core.CredentialStore

type ProvisionRequest = core.ProvisionRequest

type SagaResult = core.SagaResult

type ProvisioningRun = core.ProvisioningRun

type RunFilter = core.RunFilter

type RunReader = core.RunReader

type RunRecorder = core.RunRecorder

type InstallState = core.InstallState

type OAuthStateStore = core.OAuthStateStore

type SecretProvider = core.SecretProvider

type MetricsRecorder = core.MetricsRecorder

type Logger = core.Logger

const (
	InstallStateUnauthorized    = core.InstallStateUnauthorized
	InstallStatePendingCallback = core.InstallStatePendingCallback
	InstallStateInstalled       = core.InstallStateInstalled
)

var (
	ErrCredentialNotFound = core.ErrCredentialNotFound
	ErrRemoteValidation   = core.ErrRemoteValidation
	ErrRemoteTransport    = core.ErrRemoteTransport
	ErrMalformedResponse  = core.ErrMalformedResponse
	ErrOAuthInvalid       = core.ErrOAuthInvalid
	ErrInstallFailed      = core.ErrInstallFailed
)

var (
	NormalizeTenantID = core.NormalizeTenantID
	MapError          = core.MapError
	HTTPStatus        = core.HTTPStatus
	FailedStep        = core.FailedStep
)
