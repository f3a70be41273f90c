// Package storage provides the key-value persistence gateway the stores write
// through. The gateway is an opaque string-keyed blob store; each store
// serializes its own snapshot and owns its key.
package storage

import "context"

// Well-known gateway keys, one per store snapshot. KeySavedCarts is a legacy
// read-model derived from KeyCartState; it is written on every cart mutation
// but never read back.
const (
	KeyMenuItems  = "menu:items"
	KeyCartState  = "cart:state"
	KeySavedCarts = "cart:saved"
	KeyOrders     = "orders:history"
)

// Gateway is an asynchronous get/set of a named string blob. A missing key on
// Get is (_, false, nil), not an error: every store falls back to its empty
// initial state.
type Gateway interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}
