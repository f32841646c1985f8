// Package lipsum generates lorem ipsum filler text for synthetic conversation
// traffic.
package lipsum

import "strings"

// MinWords is the smallest chunk Message appends at a time.
const MinWords = 5

var corpus = strings.Fields(`Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do
eiusmod tempor incididunt ut labore et dolore magna aliqua. Ut enim ad minim
veniam, quis nostrud exercitation ullamco laboris nisi ut aliquip ex ea commodo
consequat. Duis aute irure dolor in reprehenderit in voluptate velit esse cillum
dolore eu fugiat nulla pariatur. Excepteur sint occaecat cupidatat non proident,
sunt in culpa qui officia deserunt mollit anim id est laborum.`)

// Words returns n words of lorem ipsum, always starting at "Lorem ipsum" and
// wrapping around the classic passage as needed.
func Words(n int) string {
	if n <= 0 {
		return ""
	}

	var b strings.Builder
	for i := range n {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(corpus[i%len(corpus)])
	}
	return b.String()
}

// Message builds a message of at least size bytes. It appends chunks of
// max(MinWords, remaining/5) words until the target is reached, so the result
// overshoots size by less than one chunk.
func Message(size int) string {
	var b strings.Builder
	for b.Len() < size {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(Words(max(MinWords, (size-b.Len())/5)))
	}
	return b.String()
}
