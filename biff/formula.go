package biff

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormulaError represents an error met while rendering a formula.
type FormulaError struct {
	Message string
}

func (e *FormulaError) Error() string {
	return e.Message
}

// TextOptions resolves context while a token array is rendered.
type TextOptions struct {
	// Row and Col locate the cell that uses the formula; relative-offset
	// tokens are resolved against them.
	Row, Col int
	// SheetName names the sheet range of an EXTERNSHEET index.
	SheetName func(ixti int) string
	// Name returns the defined name with the given 1-based index.
	Name func(index int) string
}

var binaryOps = map[byte]string{
	0x03: "+", 0x04: "-", 0x05: "*", 0x06: "/", 0x07: "^", 0x08: "&",
	0x09: "<", 0x0A: "<=", 0x0B: "=", 0x0C: ">=", 0x0D: ">", 0x0E: "<>",
	0x0F: " ", 0x10: ",", 0x11: ":",
}

// Colname returns the A1 column letters of a 0-based column index.
func Colname(colx int) string {
	name := ""
	for colx++; colx > 0; colx = (colx - 1) / 26 {
		name = string(rune('A'+(colx-1)%26)) + name
	}
	return name
}

func cellText(a CellAddr) string {
	var sb strings.Builder
	if !a.ColRel {
		sb.WriteByte('$')
	}
	sb.WriteString(Colname(a.Col))
	if !a.RowRel {
		sb.WriteByte('$')
	}
	sb.WriteString(strconv.Itoa(a.Row + 1))
	return sb.String()
}

func (o *TextOptions) resolve(a CellAddr) CellAddr {
	if a.RowRel {
		a.Row = (o.Row + a.Row) & 0xFFFF
	}
	if a.ColRel {
		a.Col = (o.Col + a.Col) & 0xFF
	}
	return a
}

func (o *TextOptions) sheet(ixti int) string {
	if o.SheetName != nil {
		return o.SheetName(ixti)
	}
	return fmt.Sprintf("Sheet%d", ixti+1)
}

// QuoteSheetName quotes a sheet name for use in a 3-D reference when it
// is not a plain identifier.
func QuoteSheetName(name string) string {
	plain := name != ""
	for i, r := range name {
		if !(r == '_' || r == '.' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r > 0x7F || i > 0 && r >= '0' && r <= '9') {
			plain = false
			break
		}
	}
	if plain {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// FormulaText renders a BIFF8 token array as formula text, without the
// leading equals sign.
func FormulaText(rgce []byte, opts *TextOptions) (string, error) {
	if opts == nil {
		opts = &TextOptions{}
	}
	le := binary.LittleEndian
	var stack []string
	pop := func(n int) ([]string, error) {
		if n > len(stack) {
			return nil, &FormulaError{Message: fmt.Sprintf("formula stack underflow: need %d, have %d", n, len(stack))}
		}
		args := append([]string(nil), stack[len(stack)-n:]...)
		stack = stack[:len(stack)-n]
		return args, nil
	}
	push := func(s string) { stack = append(stack, s) }

	err := WalkTokens(rgce, func(pos int, op byte) error {
		base := baseToken(op)
		if sym, ok := binaryOps[base]; ok {
			args, err := pop(2)
			if err != nil {
				return err
			}
			push(args[0] + sym + args[1])
			return nil
		}
		switch base {
		case ptgExp, ptgTbl:
			what := "shared"
			if base == ptgTbl {
				what = "table"
			}
			row, col := int(le.Uint16(rgce[pos+1:])), int(le.Uint16(rgce[pos+3:]))
			push(fmt.Sprintf("{%s %s%d}", what, Colname(col), row+1))
		case ptgUplus, ptgUminus, ptgPercent, ptgParen:
			args, err := pop(1)
			if err != nil {
				return err
			}
			switch base {
			case ptgUplus:
				push("+" + args[0])
			case ptgUminus:
				push("-" + args[0])
			case ptgPercent:
				push(args[0] + "%")
			default:
				push("(" + args[0] + ")")
			}
		case ptgMissArg:
			push("")
		case ptgStr:
			n := int(rgce[pos+1])
			var s string
			if rgce[pos+2]&strUncompressed != 0 {
				s = decodeUTF16(rgce[pos+3 : pos+3+2*n])
			} else {
				var err error
				if s, err = decodeLatin1(rgce[pos+3 : pos+3+n]); err != nil {
					return err
				}
			}
			push(`"` + strings.ReplaceAll(s, `"`, `""`) + `"`)
		case ptgAttr:
			if rgce[pos+1]&0x10 != 0 { // SUM with one argument
				args, err := pop(1)
				if err != nil {
					return err
				}
				push("SUM(" + args[0] + ")")
			}
		case ptgErr:
			push(ErrorTextFromCode[rgce[pos+1]])
		case ptgBool:
			if rgce[pos+1] != 0 {
				push("TRUE")
			} else {
				push("FALSE")
			}
		case ptgInt:
			push(strconv.Itoa(int(le.Uint16(rgce[pos+1:]))))
		case ptgNum:
			push(strconv.FormatFloat(math.Float64frombits(le.Uint64(rgce[pos+1:])), 'g', -1, 64))
		case ptgArray:
			push("{array}")
		case ptgFunc, ptgFuncVar:
			var idx, nargs int
			if base == ptgFunc {
				idx = int(le.Uint16(rgce[pos+1:]))
				def, ok := funcDefs[idx]
				if !ok || def.MinArgs != def.MaxArgs {
					return &FormulaError{Message: fmt.Sprintf("unknown fixed-argument function %d", idx)}
				}
				nargs = def.MinArgs
			} else {
				nargs = int(rgce[pos+1] & 0x7F)
				idx = int(le.Uint16(rgce[pos+2:]) & 0x7FFF)
			}
			args, err := pop(nargs)
			if err != nil {
				return err
			}
			name := fmt.Sprintf("FUNC%d", idx)
			if def, ok := funcDefs[idx]; ok {
				name = def.Name
			}
			if idx == 255 && len(args) > 0 { // add-in or macro: name comes first
				name, args = args[0], args[1:]
			}
			push(name + "(" + strings.Join(args, ",") + ")")
		case ptgName:
			idx := int(le.Uint16(rgce[pos+1:]))
			if opts.Name != nil {
				push(opts.Name(idx))
			} else {
				push(fmt.Sprintf("NAME%d", idx))
			}
		case ptgNameX:
			push(fmt.Sprintf("%s!NAME%d", opts.sheet(int(le.Uint16(rgce[pos+1:]))), le.Uint16(rgce[pos+3:])))
		case ptgRef:
			push(cellText(GetCellAddr(rgce, pos+1, false)))
		case ptgRefN:
			push(cellText(opts.resolve(GetCellAddr(rgce, pos+1, true))))
		case ptgArea:
			a, b := GetCellRangeAddr(rgce, pos+1, false)
			push(cellText(a) + ":" + cellText(b))
		case ptgAreaN:
			a, b := GetCellRangeAddr(rgce, pos+1, true)
			push(cellText(opts.resolve(a)) + ":" + cellText(opts.resolve(b)))
		case ptgRefErr, ptgAreaErr:
			push("#REF!")
		case ptgRef3d:
			push(opts.sheet(int(le.Uint16(rgce[pos+1:]))) + "!" + cellText(GetCellAddr(rgce, pos+3, false)))
		case ptgArea3d:
			a, b := GetCellRangeAddr(rgce, pos+3, false)
			push(opts.sheet(int(le.Uint16(rgce[pos+1:]))) + "!" + cellText(a) + ":" + cellText(b))
		case ptgRefErr3d, ptgAreaErr3d:
			push(opts.sheet(int(le.Uint16(rgce[pos+1:]))) + "!#REF!")
		case ptgMemArea, ptgMemErr, ptgMemNoMem, ptgMemFunc, ptgMemAreaN, ptgMemNoMemN:
			// the sub-expression that follows carries the value
		default:
			return &FormulaError{Message: fmt.Sprintf("cannot render token %s (0x%02X)", TokenName(op), op)}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if len(stack) != 1 {
		return "", &FormulaError{Message: fmt.Sprintf("formula leaves %d values on the stack", len(stack))}
	}
	return stack[0], nil
}
