// Package sanitize turns tag values into portable ASCII file names.
package sanitize

import (
	"strings"
)

// untitled replaces the placeholder some rippers write for empty titles.
const (
	placeholder = "( )"
	untitled    = "Untitled"
)

const latinBegin = 0xC0

// latinMap transliterates U+00C0 through U+017F. Empty entries are dropped.
var latinMap = [...]string{
	// Latin-1 Supplement
	"A", "A", "A", "A", "A", "A", "AE", "C",
	"E", "E", "E", "E", "I", "I", "I", "I",
	"DH", "N", "O", "O", "O", "O", "O", "",
	"O", "U", "U", "U", "U", "Y", "th", "ss",
	"a", "a", "a", "a", "a", "a", "ae", "c",
	"e", "e", "e", "e", "i", "i", "i", "i",
	"dh", "n", "o", "o", "o", "o", "o", "",
	"o", "u", "u", "u", "u", "y", "th", "y",

	// Latin Extended-A
	"A", "a", "A", "a", "A", "a",
	"C", "c", "C", "c", "C", "c", "C", "c",
	"D", "d", "D", "d",
	"E", "e", "E", "e", "E", "e", "E", "e", "E", "e",
	"G", "g", "G", "g", "G", "g", "G", "g",
	"H", "h", "H", "h",
	"I", "i", "I", "i", "I", "i", "I", "i", "I", "i",
	"IJ", "ij",
	"J", "j",
	"K", "k", "k",
	"L", "l", "L", "l", "L", "l", "L", "l", "L", "l",
	"N", "n", "N", "n", "N", "n", "n", "N", "n",
	"O", "o", "O", "o", "O", "o",
	"OE", "oe",
	"R", "r", "R", "r", "R", "r",
	"S", "s", "S", "s", "S", "s", "S", "s",
	"T", "t", "T", "t", "T", "t",
	"U", "u", "U", "u", "U", "u", "U", "u", "U", "u", "U", "u",
	"W", "w",
	"Y", "y", "Y",
	"Z", "z", "Z", "z", "Z", "z",
	"s",
}

const latinEnd = latinBegin + len(latinMap)

// Name transliterates a Latin-script value to ASCII letters, digits and
// spaces. Other characters are dropped.
//
// Uppercase digraphs such as "AE" are a guess at the original case: the
// second letter is lowered unless the next output letter is uppercase too,
// so "Æther" becomes "Aether" while "ÆTHER" stays "AETHER".
func Name(value string) string {
	if value == placeholder {
		return untitled
	}

	out := make([]byte, 0, len(value))
	var guessed []int

	for _, r := range value {
		switch {
		case isASCIIAlnum(r) || r == ' ':
			out = append(out, byte(r))
		case r == '\t':
			out = append(out, ' ')
		case r >= latinBegin && r < latinEnd:
			mapped := latinMap[r-latinBegin]
			out = append(out, mapped...)
			if len(mapped) >= 2 && isUpper(mapped[1]) {
				guessed = append(guessed, len(out)-1)
			}
		}
	}

	for _, idx := range guessed {
		if idx != len(out)-1 && !isUpper(out[idx+1]) {
			out[idx] += 'a' - 'A'
		}
	}

	return string(out)
}

// Path sanitizes every element of a slash-separated path.
func Path(elems ...string) []string {
	out := make([]string, len(elems))
	for i, e := range elems {
		out[i] = strings.TrimSpace(Name(e))
	}
	return out
}

func isASCIIAlnum(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
}

func isUpper(b byte) bool {
	return b >= 'A' && b <= 'Z'
}
