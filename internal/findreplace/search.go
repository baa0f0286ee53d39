/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package findreplace

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// span is a rune range [start,end).
type span struct{ start, end int }

// findAll returns the non-overlapping occurrences of query in text as rune
// offsets, scanning left to right.
func findAll(text, query string, opts Options) []span {
	if query == "" || text == "" {
		return nil
	}
	if opts.WholeWord {
		return findWholeWord(text, query, opts.CaseSensitive)
	}
	if opts.CaseSensitive {
		return findLiteral(text, query)
	}
	return findFolded(text, query)
}

func findWholeWord(text, query string, caseSensitive bool) []span {
	expr := `\b` + regexp.QuoteMeta(query) + `\b`
	if !caseSensitive {
		expr = `(?i)` + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil
	}
	var out []span
	for _, loc := range re.FindAllStringIndex(text, -1) {
		out = append(out, span{runeOffset(text, loc[0]), runeOffset(text, loc[1])})
	}
	return out
}

func findLiteral(text, query string) []span {
	var out []span
	pos := 0
	for {
		i := strings.Index(text[pos:], query)
		if i < 0 {
			return out
		}
		b := pos + i
		out = append(out, span{runeOffset(text, b), runeOffset(text, b+len(query))})
		pos = b + len(query)
	}
}

// findFolded compares case-folded runes. Folding can expand a rune (ß -> ss),
// so each folded rune remembers which original rune produced it.
func findFolded(text, query string) []span {
	folder := cases.Fold()
	var folded []rune
	var origin []int
	i := 0
	for _, r := range text {
		for _, fr := range folder.String(string(r)) {
			folded = append(folded, fr)
			origin = append(origin, i)
		}
		i++
	}
	q := []rune(folder.String(query))
	if len(q) == 0 {
		return nil
	}
	var out []span
	for s := 0; s+len(q) <= len(folded); {
		if equalRunes(folded[s:s+len(q)], q) {
			out = append(out, span{origin[s], origin[s+len(q)-1] + 1})
			s += len(q)
			continue
		}
		s++
	}
	return out
}

func equalRunes(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func runeOffset(s string, byteOff int) int { return utf8.RuneCountInString(s[:byteOff]) }
