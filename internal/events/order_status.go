package events

const (
	OrderStatusChangedName    = "order.status.changed"
	OrderStatusChangedVersion = 1
)

// OrderStatusChanged is emitted by the storefront backend whenever an order
// moves through its lifecycle. PartitionKey is the order id.
type OrderStatusChanged struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}
