package model

// CheckoutResult represents the result of a source archive download and extraction
type CheckoutResult struct {
	Dir   string // Path to the extracted work tree
	Files int    // Number of extracted files
	Size  int64  // Total size in bytes
}
