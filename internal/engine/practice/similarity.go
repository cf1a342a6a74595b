// internal/engine/practice/similarity.go
package practice

import "strings"

// editSimilarity is 1 - normalized Damerau-Levenshtein distance,
// normalized by the longer string's length.
func editSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	// Rune counts, matching the distance's unit of work.
	la := len([]rune(a))
	lb := len([]rune(b))
	if la == 0 || lb == 0 {
		return 0.0
	}
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	dist := damerauLevenshtein(a, b)
	return 1.0 - float64(dist)/float64(maxLen)
}

// damerauLevenshtein computes edit distance with adjacent-transposition
// support (optimal string alignment variant).
func damerauLevenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	la := len(ra)
	lb := len(rb)

	d := make([][]int, la+1)
	for i := range d {
		d[i] = make([]int, lb+1)
		d[i][0] = i
	}
	for j := 0; j <= lb; j++ {
		d[0][j] = j
	}

	for i := 1; i <= la; i++ {
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}

			del := d[i-1][j] + 1
			ins := d[i][j-1] + 1
			sub := d[i-1][j-1] + cost

			min := del
			if ins < min {
				min = ins
			}
			if sub < min {
				min = sub
			}

			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				if tr := d[i-2][j-2] + 1; tr < min {
					min = tr
				}
			}

			d[i][j] = min
		}
	}
	return d[la][lb]
}

// soundex returns the classic four-character Soundex code for a word.
func soundex(word string) string {
	word = strings.ToUpper(strings.TrimSpace(word))
	if word == "" {
		return ""
	}

	codeOf := func(r rune) byte {
		switch r {
		case 'B', 'F', 'P', 'V':
			return '1'
		case 'C', 'G', 'J', 'K', 'Q', 'S', 'X', 'Z':
			return '2'
		case 'D', 'T':
			return '3'
		case 'L':
			return '4'
		case 'M', 'N':
			return '5'
		case 'R':
			return '6'
		}
		return 0
	}

	runes := []rune(word)
	result := []byte{byte(runes[0])}
	prev := codeOf(runes[0])

	for _, r := range runes[1:] {
		if len(result) == 4 {
			break
		}
		c := codeOf(r)
		if c == 0 {
			// H and W are transparent to the previous code; vowels reset it.
			if r != 'H' && r != 'W' {
				prev = 0
			}
			continue
		}
		if c != prev {
			result = append(result, c)
		}
		prev = c
	}

	for len(result) < 4 {
		result = append(result, '0')
	}
	return string(result)
}
