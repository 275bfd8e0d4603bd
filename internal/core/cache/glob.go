package cache

import "strings"

// matchGlob reports whether key matches a Redis-style glob pattern:
// '*' any run, '?' any byte, '[a-z]' / '[^abc]' classes, '\' escapes.
func matchGlob(pattern, key string) bool {
	px, kx := 0, 0
	nextPx, nextKx := 0, 0
	for px < len(pattern) || kx < len(key) {
		if px < len(pattern) {
			switch c := pattern[px]; c {
			case '*':
				nextPx, nextKx = px, kx+1
				px++
				continue
			case '?':
				if kx < len(key) {
					px++
					kx++
					continue
				}
			case '[':
				if kx < len(key) {
					if n, ok := matchClass(pattern[px:], key[kx]); ok {
						px += n
						kx++
						continue
					}
				}
			case '\\':
				if px+1 < len(pattern) && kx < len(key) && pattern[px+1] == key[kx] {
					px += 2
					kx++
					continue
				}
			default:
				if kx < len(key) && key[kx] == c {
					px++
					kx++
					continue
				}
			}
		}
		if 0 < nextKx && nextKx <= len(key) {
			px, kx = nextPx, nextKx
			continue
		}
		return false
	}
	return true
}

// matchClass matches ch against the class at the start of p and returns the
// class length. An unterminated '[' is a literal.
func matchClass(p string, ch byte) (int, bool) {
	end := strings.IndexByte(p[1:], ']')
	if end < 0 {
		return 1, ch == '['
	}
	end++

	class := p[1:end]
	negate := false
	if len(class) > 0 && class[0] == '^' {
		negate = true
		class = class[1:]
	}

	matched := false
	for i := 0; i < len(class); i++ {
		if i+2 < len(class) && class[i+1] == '-' {
			if class[i] <= ch && ch <= class[i+2] {
				matched = true
			}
			i += 2
			continue
		}
		if class[i] == ch {
			matched = true
		}
	}
	return end + 1, matched != negate
}
