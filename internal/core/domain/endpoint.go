package domain

// Endpoint is a static upstream target.
type Endpoint struct {
	Name   string
	URL    string
	APIKey string
	Weight int
	// QPS caps requests per second sent to this endpoint, 0 = unlimited.
	QPS float64
}
