// Package menu holds the HUD's core searchable data model: the StringList
// path type, its derived Token/TokenList forms, and the Item/Result pair
// that the query pipeline ranks.
package menu

import "strings"

// StringList is an immutable, head-first cons-list of label segments
// representing a path from a leaf menu item (the head) up to a root menu
// (the tail). Two StringLists may share a tail; callers never mutate one
// in place, they build a new head node on top of an existing tail.
type StringList struct {
	Label string
	Tail  *StringList
}

// Cons builds a new StringList whose head is label and whose tail is the
// given list, which may be nil for a top-level item.
func Cons(label string, tail *StringList) *StringList {
	return &StringList{Label: label, Tail: tail}
}

// Segments returns the path's labels in root-to-leaf order.
func (s *StringList) Segments() []string {
	var reversed []string
	for n := s; n != nil; n = n.Tail {
		reversed = append(reversed, n.Label)
	}
	segs := make([]string, len(reversed))
	for i, label := range reversed {
		segs[len(reversed)-1-i] = label
	}
	return segs
}

// String pretty-prints the path root-to-leaf, joined with " > ".
func (s *StringList) String() string {
	return strings.Join(s.Segments(), " > ")
}

// Len reports the number of segments in the path.
func (s *StringList) Len() int {
	n := 0
	for c := s; c != nil; c = c.Tail {
		n++
	}
	return n
}
