package value

// Wrap32 reduces n modulo 2^32 and reinterprets the high bit as the sign.
func Wrap32(n int64) int32 {
	return int32(uint32(n)) //nolint:gosec // G115: intentional two's-complement truncation.
}
