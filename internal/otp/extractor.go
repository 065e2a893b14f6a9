// Package otp holds the text matching used to spot one-time passwords in
// message bodies.
package otp

// ExtractOTP returns the first maximal run of ASCII digits whose length lies
// in [minLength, maxLength]. Runs are considered in order of appearance; the
// boolean is false when no run qualifies.
func ExtractOTP(message string, minLength, maxLength int) (string, bool) {
	start := -1
	for i := 0; i <= len(message); i++ {
		if i < len(message) && isDigit(message[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if n := i - start; n >= minLength && n <= maxLength {
				return message[start:i], true
			}
			start = -1
		}
	}
	return "", false
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
