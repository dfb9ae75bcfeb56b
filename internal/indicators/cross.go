package indicators

// IsGoldenCross reports whether fast crossed above slow at index i
func IsGoldenCross(fast, slow Series, i int) bool {
	f0, s0, f1, s1, ok := crossPoints(fast, slow, i)
	return ok && f0 <= s0 && f1 > s1
}

// IsDeathCross reports whether fast crossed below slow at index i
func IsDeathCross(fast, slow Series, i int) bool {
	f0, s0, f1, s1, ok := crossPoints(fast, slow, i)
	return ok && f0 >= s0 && f1 < s1
}

func crossPoints(fast, slow Series, i int) (f0, s0, f1, s1 float64, ok bool) {
	var ok0, ok1, ok2, ok3 bool
	f0, ok0 = fast.At(i - 1)
	s0, ok1 = slow.At(i - 1)
	f1, ok2 = fast.At(i)
	s1, ok3 = slow.At(i)
	return f0, s0, f1, s1, ok0 && ok1 && ok2 && ok3
}
