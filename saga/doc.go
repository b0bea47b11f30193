// Package saga provisions a product in three forward-only steps: create the
// product, price and tag its default variant, then seed inventory. A failed
// step stops the run and reports which ids already exist on the platform.
// Nothing is rolled back.
package saga
