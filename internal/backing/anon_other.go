//go:build !unix

package backing

// mapAnon reports no mapping; New falls back to heap storage.
func mapAnon(int) ([]byte, func([]byte) error, error) {
	return nil, nil, nil
}
