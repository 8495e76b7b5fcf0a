package heapstack

// roundUp rounds n up to the next multiple of m.
func roundUp(n, m uintptr) uintptr {
	return (n + m - 1) / m * m
}

func gcd(a, b uintptr) uintptr {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
