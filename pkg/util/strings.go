package util

// Prefix returns the first n bytes of s, or s itself when shorter.
// Instrument ids are ASCII ISINs, so byte slicing is safe.
func Prefix(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
