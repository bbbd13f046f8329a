package dbutils

import (
	"strconv"
	"strings"
)

// placeholderStyle selects how positional placeholders are written.
type placeholderStyle int

const (
	questionPlaceholders placeholderStyle = iota // ?, ?, ?
	dollarPlaceholders                           // $1, $2, $3
)

// scanPlaceholders walks query outside of string literals, quoted identifiers
// and comments, calling fn for every positional placeholder found. Each
// placeholder is reported as its byte range and, for $n, its number.
func scanPlaceholders(query string, fn func(start, end, n int)) {
	for i := 0; i < len(query); i++ {
		switch c := query[i]; c {
		case '\'', '"', '`':
			// Skip to the closing quote; doubled quotes stay inside the literal.
			j := i + 1
			for j < len(query) {
				if query[j] == c {
					if j+1 < len(query) && query[j+1] == c {
						j += 2
						continue
					}
					break
				}
				j++
			}
			i = j
		case '-':
			if i+1 < len(query) && query[i+1] == '-' {
				if nl := strings.IndexByte(query[i:], '\n'); nl >= 0 {
					i += nl
				} else {
					i = len(query)
				}
			}
		case '/':
			if i+1 < len(query) && query[i+1] == '*' {
				if end := strings.Index(query[i+2:], "*/"); end >= 0 {
					i += end + 3
				} else {
					i = len(query)
				}
			}
		case '?':
			fn(i, i+1, 0)
		case '$':
			j := i + 1
			for j < len(query) && query[j] >= '0' && query[j] <= '9' {
				j++
			}
			if j > i+1 {
				n, _ := strconv.Atoi(query[i+1 : j])
				fn(i, j, n)
				i = j - 1
			}
		}
	}
}

// countPlaceholders returns the number of positional parameters query expects:
// the count of ? markers, or the highest $n. It returns 0 when none are found.
func countPlaceholders(query string) int {
	questions, highest := 0, 0
	scanPlaceholders(query, func(_, _, n int) {
		if n == 0 {
			questions++
		} else if n > highest {
			highest = n
		}
	})
	if highest > questions {
		return highest
	}
	return questions
}

// rebind rewrites ? placeholders into the given style.
func rebind(query string, style placeholderStyle) string {
	if style != dollarPlaceholders || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	last, n := 0, 0
	scanPlaceholders(query, func(start, end, num int) {
		if num != 0 {
			return
		}
		n++
		b.WriteString(query[last:start])
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
		last = end
	})
	b.WriteString(query[last:])
	return b.String()
}
