package handlers

// OrderResponse exposes the response shape to the external test package.
type OrderResponse = orderResponse
