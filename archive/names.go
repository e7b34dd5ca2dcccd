package archive

import (
	"fmt"
	"path"
	"strings"
)

// NameResolver hands out unique entry names. The first claim of a name keeps it; later
// claims get "-2", "-3", ... inserted before the extension.
type NameResolver struct {
	taken    map[string]bool
	counters map[string]int // requested name -> next suffix to try
}

func NewNameResolver() *NameResolver {
	return &NameResolver{
		taken:    make(map[string]bool),
		counters: make(map[string]int),
	}
}

// Resolve claims and returns a unique variant of name.
func (n *NameResolver) Resolve(name string) string {
	if !n.taken[name] {
		n.taken[name] = true
		return name
	}

	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	counter := n.counters[name]
	if counter == 0 {
		counter = 2
	}
	for {
		candidate := fmt.Sprintf("%s-%d%s", stem, counter, ext)
		counter++
		if !n.taken[candidate] {
			n.counters[name] = counter
			n.taken[candidate] = true
			return candidate
		}
	}
}
