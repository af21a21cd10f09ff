package manager

import (
	"strings"
	"unicode/utf8"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// PositionToOffset computes the byte offset of an LSP position. Characters
// count UTF-16 code units; positions past the end are clamped.
func PositionToOffset(document string, pos protocol.Position) int {
	lines := strings.Split(document, "\n")
	line := int(pos.Line)
	if line >= len(lines) {
		line = len(lines) - 1
	}
	offset := 0
	// Sum bytes for all lines before the target line (including newline)
	for i := 0; i < line; i++ {
		offset += len(lines[i]) + 1
	}
	var charCount int
	for _, r := range lines[line] {
		unitCount := 1
		if r > 0xFFFF {
			unitCount = 2
		}
		if protocol.UInteger(charCount+unitCount) > pos.Character {
			break
		}
		charCount += unitCount
		offset += utf8.RuneLen(r)
	}
	return offset
}

// ApplyTextEdit replaces the text covered by r.
func ApplyTextEdit(r protocol.Range, text, document string) string {
	start := PositionToOffset(document, r.Start)
	end := PositionToOffset(document, r.End)
	if end < start {
		end = start
	}
	return document[:start] + text + document[end:]
}

// Line returns the text of a 0-based line, without its terminator.
func Line(document string, line int) string {
	lines := strings.Split(document, "\n")
	if line < 0 || line >= len(lines) {
		return ""
	}
	return strings.TrimSuffix(lines[line], "\r")
}

// UTF16Len counts the UTF-16 code units of s.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		if r > 0xFFFF {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// RuneColumn converts a UTF-16 column of line into a count of runes.
func RuneColumn(line string, character int) int {
	units, runes := 0, 0
	for _, r := range line {
		n := 1
		if r > 0xFFFF {
			n = 2
		}
		if units+n > character {
			break
		}
		units += n
		runes++
	}
	if character > units {
		runes += character - units
	}
	return runes
}

// Splice inserts text at an LSP position.
func Splice(document string, pos protocol.Position, text string) string {
	offset := PositionToOffset(document, pos)
	return document[:offset] + text + document[offset:]
}
