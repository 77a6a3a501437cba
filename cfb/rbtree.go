package cfb

import "math/bits"

// buildSiblingTree links nodes, already in directory order, as a balanced
// binary search tree and returns the id of its root. Every level is black
// except the deepest one of an incomplete tree, which is red: black height
// is then equal on all paths and no red node has a red child.
func buildSiblingTree(nodes []*dirRecord, ids map[*Entry]uint32) uint32 {
	redDepth := -1
	if n := len(nodes); n&(n+1) != 0 {
		redDepth = bits.Len(uint(n)) - 1
	}
	var link func(part []*dirRecord, depth int) uint32
	link = func(part []*dirRecord, depth int) uint32 {
		if len(part) == 0 {
			return NoStream
		}
		mid := len(part) / 2
		node := part[mid]
		node.left = link(part[:mid], depth+1)
		node.right = link(part[mid+1:], depth+1)
		node.color = colorBlack
		if depth == redDepth {
			node.color = colorRed
		}
		return ids[node.e]
	}
	return link(nodes, 0)
}
