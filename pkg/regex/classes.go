package regex

var digitClass = buildClass(func(b byte) bool { return b >= '0' && b <= '9' })

var wordClass = buildClass(func(b byte) bool {
	return b == '_' ||
		(b >= '0' && b <= '9') ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z')
})

var spaceClass = buildClass(func(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
})

func buildClass(pred func(byte) bool) classNode {
	var c classNode
	for i := 0; i < 256; i++ {
		if pred(byte(i)) {
			c.set[i] = true
		}
	}
	return c
}
