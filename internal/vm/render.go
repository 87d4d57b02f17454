package vm

import (
	"strconv"
	"strings"

	"dlvm/internal/heap"
	"dlvm/internal/value"
)

const errorMarker = "ERROR"

// renderPiece is either literal text or an item still to be rendered.
type renderPiece struct {
	text   string
	item   value.Item
	isItem bool
}

// Render converts a result item to text: "()" for Unit, decimal Int,
// "true"/"false", "reference" for any HeapRef and "(l, r)" for a pointer to a
// pair. Anything else, at any depth, makes the whole result "ERROR". Nesting
// depth is limited only by memory.
func Render(mem heap.Memory, it value.Item) string {
	var sb strings.Builder
	work := []renderPiece{{item: it, isItem: true}}
	for len(work) > 0 {
		p := work[len(work)-1]
		work = work[:len(work)-1]
		if !p.isItem {
			sb.WriteString(p.text)
			continue
		}
		switch p.item.Tag {
		case value.Unit:
			sb.WriteString("()")
		case value.Int:
			sb.WriteString(strconv.FormatInt(int64(p.item.Val), 10))
		case value.Bool:
			switch p.item.Val {
			case 0:
				sb.WriteString("false")
			case 1:
				sb.WriteString("true")
			default:
				return errorMarker
			}
		case value.HeapRef:
			sb.WriteString("reference")
		case value.HeapIndex:
			obj, err := mem.Load(p.item.Ptr)
			if err != nil || obj.Tag != value.PairHeader || len(obj.Body) != 2 {
				return errorMarker
			}
			sb.WriteByte('(')
			work = append(work,
				renderPiece{text: ")"},
				renderPiece{item: obj.Body[1], isItem: true},
				renderPiece{text: ", "},
				renderPiece{item: obj.Body[0], isItem: true},
			)
		default:
			return errorMarker
		}
	}
	return sb.String()
}
