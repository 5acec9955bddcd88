package writer

import "server/internal/pipeline"

// Services returns the content services the platform sells, all backed by the
// given handler. Registered identically by the API and the worker so an order
// accepted by one is always executable by the other.
func Services(h *Handler) []pipeline.Service {
	return []pipeline.Service{
		{
			ID:             "seo-article",
			RequiredFields: []string{"topic", "language"},
			Handler:        h,
		},
		{
			ID:             "product-description",
			RequiredFields: []string{"product_name", "language"},
			Handler:        h,
		},
		{
			ID:             "social-caption",
			RequiredFields: []string{"topic", "platform"},
			Handler:        h,
		},
	}
}
