package biff

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// HexCharDump writes data[ofs:ofs+dlen] as offset, hex and character
// columns, 16 bytes per line. NUL shows as '~', other control bytes as '?'.
func HexCharDump(data []byte, ofs, dlen, base int, w io.Writer, unnumbered bool) {
	end := min(ofs+dlen, len(data))
	for pos := ofs; pos < end; pos += 16 {
		chunk := data[pos:min(pos+16, end)]
		hex := make([]string, len(chunk))
		var chars strings.Builder
		for i, c := range chunk {
			hex[i] = fmt.Sprintf("%02x", c)
			switch {
			case c == 0:
				chars.WriteByte('~')
			case c < 0x20 || c > 0x7E:
				chars.WriteByte('?')
			default:
				chars.WriteByte(c)
			}
		}
		if unnumbered {
			fmt.Fprintf(w, "     %-48s %s\n", strings.Join(hex, " "), chars.String())
		} else {
			fmt.Fprintf(w, "%5x: %-48s %s\n", base+pos-ofs, strings.Join(hex, " "), chars.String())
		}
	}
}

// Dump writes every record of a BIFF stream in char & hex format for
// debugging. With unnumbered set, stream offsets are omitted so dumps of
// different files diff cleanly.
func Dump(stream []byte, w io.Writer, unnumbered bool) error {
	d := NewDecoder(stream)
	for {
		pos := d.Offset()
		rec, err := d.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			fmt.Fprintf(w, "!!! %v\n", err)
			return err
		}
		if unnumbered {
			fmt.Fprintf(w, "%04x %s len = %04x\n", rec.Opcode, RecordName(rec.Opcode), len(rec.Data))
		} else {
			fmt.Fprintf(w, "%8d: %04x %s len = %04x\n", pos, rec.Opcode, RecordName(rec.Opcode), len(rec.Data))
		}
		HexCharDump(rec.Data, 0, len(rec.Data), pos+4, w, unnumbered)
	}
}

// CountRecords writes a sorted (record name, count) summary of a BIFF stream.
func CountRecords(stream []byte, w io.Writer) error {
	counts := make(map[string]int)
	var failed error
	for rec, err := range NewDecoder(stream).All() {
		if err != nil {
			failed = err
			break
		}
		counts[RecordName(rec.Opcode)]++
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%8d %s\n", counts[name], name)
	}
	return failed
}
