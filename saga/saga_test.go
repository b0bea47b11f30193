package saga

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"

	"github.com/goliatone/go-shopify-provisioner/core"
)

type fakeClient struct {
	createPayload core.ProductCreatePayload
	createErr     error
	updatePayload core.VariantsBulkUpdatePayload
	updateErr     error
	adjustPayload core.InventoryAdjustPayload
	adjustErr     error

	createCalls int
	updateCalls int
	adjustCalls int

	createInputs []core.ProductCreateInput
	updateInputs [][]core.VariantPriceInput
	adjustInputs []core.InventoryAdjustInput
}

func (f *fakeClient) ProductCreate(_ context.Context, input core.ProductCreateInput) (core.ProductCreatePayload, error) {
	f.createCalls++
	f.createInputs = append(f.createInputs, input)
	return f.createPayload, f.createErr
}

func (f *fakeClient) ProductVariantsBulkUpdate(_ context.Context, _ string, variants []core.VariantPriceInput) (core.VariantsBulkUpdatePayload, error) {
	f.updateCalls++
	f.updateInputs = append(f.updateInputs, variants)
	return f.updatePayload, f.updateErr
}

func (f *fakeClient) InventoryAdjustQuantities(_ context.Context, input core.InventoryAdjustInput) (core.InventoryAdjustPayload, error) {
	f.adjustCalls++
	f.adjustInputs = append(f.adjustInputs, input)
	return f.adjustPayload, f.adjustErr
}

func succeedingClient() *fakeClient {
	return &fakeClient{
		createPayload: core.ProductCreatePayload{
			ProductID:       "prod-1",
			Title:           "T",
			VariantID:       "var-1",
			InventoryItemID: "inv-1",
		},
		updatePayload: core.VariantsBulkUpdatePayload{VariantIDs: []string{"var-1"}},
		adjustPayload: core.InventoryAdjustPayload{AdjustmentGroupID: "grp-1"},
	}
}

func testRequest() core.ProvisionRequest {
	return core.ProvisionRequest{
		Title:      "T",
		Price:      "1000",
		SKU:        "SKU-1",
		Quantity:   5,
		LocationID: "loc-1",
	}
}

func newTestSaga() *Saga {
	return New(WithRunIDGenerator(func() string { return "run-1" }))
}

func TestSaga_EndToEndSuccess(t *testing.T) {
	client := succeedingClient()

	result := newTestSaga().Run(context.Background(), client, testRequest())
	if !result.OK {
		t.Fatalf("expected success, got %#v", result)
	}
	if result.ProductID != "prod-1" || result.VariantID != "var-1" || result.InventoryItemID != "inv-1" {
		t.Fatalf("unexpected ids %#v", result)
	}
	if result.StepsCompleted != core.StepsCompletedDone {
		t.Fatalf("expected done, got %q", result.StepsCompleted)
	}
	if client.adjustCalls != 1 {
		t.Fatalf("expected exactly one inventory call, got %d", client.adjustCalls)
	}
	adjust := client.adjustInputs[0]
	if adjust.Delta != 5 || adjust.LocationID != "loc-1" || adjust.InventoryItemID != "inv-1" {
		t.Fatalf("unexpected inventory input %#v", adjust)
	}
	if adjust.Reason != "correction" || adjust.Name != "available" {
		t.Fatalf("unexpected reason/name %#v", adjust)
	}
	if adjust.ReferenceDocumentURI != "logistics://provisioner/saga/run-1" {
		t.Fatalf("unexpected reference uri %q", adjust.ReferenceDocumentURI)
	}

	wantTransitions := []core.SagaState{
		core.SagaStateStart,
		core.SagaStateProductCreated,
		core.SagaStateVariantPriced,
		core.SagaStateInventoryAdjusted,
		core.SagaStateDone,
	}
	if !reflect.DeepEqual(result.Transitions, wantTransitions) {
		t.Fatalf("unexpected transitions %#v", result.Transitions)
	}
}

func TestSaga_ProductCreateSendsTitleOnlyAndVariantCarriesPrice(t *testing.T) {
	client := succeedingClient()
	newTestSaga().Run(context.Background(), client, testRequest())

	if client.createInputs[0] != (core.ProductCreateInput{Title: "T"}) {
		t.Fatalf("expected title-only create input, got %#v", client.createInputs[0])
	}
	variants := client.updateInputs[0]
	if len(variants) != 1 {
		t.Fatalf("expected one variant, got %d", len(variants))
	}
	want := core.VariantPriceInput{ID: "var-1", Price: "1000", CurrencyCode: core.DefaultCurrencyCode, SKU: "SKU-1"}
	if variants[0] != want {
		t.Fatalf("unexpected variant input %#v", variants[0])
	}
}

func TestSaga_ResultCarriesRequestCurrency(t *testing.T) {
	req := testRequest()
	req.CurrencyCode = " usd "
	result := newTestSaga().Run(context.Background(), succeedingClient(), req)
	if result.CurrencyCode != "USD" {
		t.Fatalf("expected normalized currency on the result, got %q", result.CurrencyCode)
	}

	failing := succeedingClient()
	failing.createErr = errors.New("connection reset")
	failed := newTestSaga().CreateProductOnly(context.Background(), failing, testRequest())
	if failed.OK || failed.CurrencyCode != core.DefaultCurrencyCode {
		t.Fatalf("expected default currency on a failed run, got %#v", failed)
	}
}

func TestSaga_ProductCreateUserErrorsStopTheRun(t *testing.T) {
	client := succeedingClient()
	client.createPayload = core.ProductCreatePayload{
		UserErrors: []core.UserError{{Field: []string{"title"}, Message: "Title can't be blank"}},
	}

	result := newTestSaga().Run(context.Background(), client, testRequest())
	if result.OK {
		t.Fatalf("expected failure")
	}
	if result.FailedStep != core.StepProductCreate {
		t.Fatalf("expected productCreate failure, got %q", result.FailedStep)
	}
	if client.updateCalls != 0 || client.adjustCalls != 0 {
		t.Fatalf("expected no later calls, got update=%d adjust=%d", client.updateCalls, client.adjustCalls)
	}
	if len(result.UserErrors) != 1 || result.UserErrors[0].Message != "Title can't be blank" {
		t.Fatalf("expected user errors carried verbatim, got %#v", result.UserErrors)
	}
	if !errors.Is(result.Err, core.ErrRemoteValidation) {
		t.Fatalf("expected remote validation error, got %v", result.Err)
	}
	if core.HTTPStatus(result.Err) != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", core.HTTPStatus(result.Err))
	}
	if result.State() != core.SagaStateFailed {
		t.Fatalf("expected failed state, got %q", result.State())
	}
}

func TestSaga_ProductCreateMissingVariantIsMalformed(t *testing.T) {
	client := succeedingClient()
	client.createPayload = core.ProductCreatePayload{ProductID: "prod-1"}

	result := newTestSaga().Run(context.Background(), client, testRequest())
	if result.OK || result.FailedStep != core.StepProductCreate {
		t.Fatalf("expected productCreate failure, got %#v", result)
	}
	if !errors.Is(result.Err, core.ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", result.Err)
	}
	if result.PartialIDs.ProductID != "prod-1" {
		t.Fatalf("expected product id surfaced, got %#v", result.PartialIDs)
	}
	if client.updateCalls != 0 {
		t.Fatalf("expected no variant update")
	}
}

func TestSaga_VariantUpdateFailureCarriesPartialIDs(t *testing.T) {
	client := succeedingClient()
	client.updatePayload = core.VariantsBulkUpdatePayload{
		UserErrors: []core.UserError{{Field: []string{"variants", "0", "price"}, Message: "invalid", Code: "INVALID"}},
	}

	result := newTestSaga().Run(context.Background(), client, testRequest())
	if result.OK || result.FailedStep != core.StepProductVariantsBulkUpdate {
		t.Fatalf("expected productVariantsBulkUpdate failure, got %#v", result)
	}
	want := core.PartialIDs{ProductID: "prod-1", VariantID: "var-1", InventoryItemID: "inv-1"}
	if result.PartialIDs != want {
		t.Fatalf("expected every id returned by productCreate, got %#v", result.PartialIDs)
	}
	if client.adjustCalls != 0 {
		t.Fatalf("expected inventory never invoked, got %d", client.adjustCalls)
	}
	wantTransitions := []core.SagaState{core.SagaStateStart, core.SagaStateProductCreated, core.SagaStateFailed}
	if !reflect.DeepEqual(result.Transitions, wantTransitions) {
		t.Fatalf("unexpected transitions %#v", result.Transitions)
	}
}

func TestSaga_VariantUpdateTransportFailure(t *testing.T) {
	client := succeedingClient()
	client.updateErr = errors.New("connection reset")

	result := newTestSaga().Run(context.Background(), client, testRequest())
	if result.FailedStep != core.StepProductVariantsBulkUpdate {
		t.Fatalf("expected variant step failure, got %q", result.FailedStep)
	}
	if !errors.Is(result.Err, core.ErrRemoteTransport) {
		t.Fatalf("expected transport error, got %v", result.Err)
	}
	if core.HTTPStatus(result.Err) != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", core.HTTPStatus(result.Err))
	}
	if result.Message == "" {
		t.Fatalf("expected failure message")
	}
}

func TestSaga_ZeroQuantitySkipsInventory(t *testing.T) {
	client := succeedingClient()
	req := testRequest()
	req.Quantity = 0

	result := newTestSaga().Run(context.Background(), client, req)
	if !result.OK || result.StepsCompleted != core.StepsCompletedWithoutInventory {
		t.Fatalf("expected done_without_inventory_adjust, got %#v", result)
	}
	if client.adjustCalls != 0 {
		t.Fatalf("expected inventory never invoked, got %d", client.adjustCalls)
	}
	if result.Transitions[len(result.Transitions)-2] != core.SagaStateInventorySkipped {
		t.Fatalf("expected inventory skipped transition, got %#v", result.Transitions)
	}
}

func TestSaga_MissingInventoryItemSkipsInventory(t *testing.T) {
	client := succeedingClient()
	client.createPayload.InventoryItemID = ""

	result := newTestSaga().Run(context.Background(), client, testRequest())
	if !result.OK || result.StepsCompleted != core.StepsCompletedWithoutInventory {
		t.Fatalf("expected skip without inventory item, got %#v", result)
	}
	if client.adjustCalls != 0 {
		t.Fatalf("expected inventory never invoked")
	}
}

func TestSaga_InventoryFailureCarriesAllPartialIDs(t *testing.T) {
	client := succeedingClient()
	client.adjustPayload = core.InventoryAdjustPayload{
		UserErrors: []core.UserError{{Field: []string{"input", "changes", "0", "locationId"}, Message: "location not found"}},
	}

	result := newTestSaga().Run(context.Background(), client, testRequest())
	if result.OK || result.FailedStep != core.StepInventoryAdjustQuantities {
		t.Fatalf("expected inventory failure, got %#v", result)
	}
	want := core.PartialIDs{ProductID: "prod-1", VariantID: "var-1", InventoryItemID: "inv-1"}
	if result.PartialIDs != want {
		t.Fatalf("expected all partial ids, got %#v", result.PartialIDs)
	}
}

func TestSaga_CreateProductOnly(t *testing.T) {
	client := succeedingClient()

	result := newTestSaga().CreateProductOnly(context.Background(), client, core.ProvisionRequest{Title: "T", SKU: "SKU-1"})
	if !result.OK || result.StepsCompleted != core.StepsCompletedProductOnly {
		t.Fatalf("expected product-only success, got %#v", result)
	}
	if client.updateCalls != 0 || client.adjustCalls != 0 {
		t.Fatalf("expected only productCreate to run")
	}
}

func TestSaga_ProductDefaultsKeepRequestTitle(t *testing.T) {
	client := succeedingClient()
	s := New(WithProductDefaults(core.ProductCreateInput{Title: "ignored", Status: "DRAFT", Vendor: "Acme"}))

	s.Run(context.Background(), client, testRequest())
	got := client.createInputs[0]
	if got.Title != "T" || got.Status != "DRAFT" || got.Vendor != "Acme" {
		t.Fatalf("unexpected create input %#v", got)
	}
}

func TestSaga_NilClientFailsFirstStep(t *testing.T) {
	result := newTestSaga().Run(context.Background(), nil, testRequest())
	if result.OK || result.FailedStep != core.StepProductCreate {
		t.Fatalf("expected productCreate failure, got %#v", result)
	}
}
