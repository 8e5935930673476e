package inventory

import "time"

// SetReferenceGenerator swaps the reference generator until restore is called
func SetReferenceGenerator(fn func(prefix string, at time.Time) string) (restore func()) {
	prev := generateReference
	generateReference = fn
	return func() { generateReference = prev }
}
