package output

import (
	"fmt"
	"io"
	"strconv"
)

type treeNode struct {
	name     string
	children []*treeNode
}

func (n *treeNode) findOrCreate(name string) *treeNode {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	child := &treeNode{name: name}
	n.children = append(n.children, child)
	return child
}

// PrintTree renders discovered services as host -> port -> service.
// Discoveries are expected in generation order, which keeps hosts in input
// order and ports ascending.
func PrintTree(w io.Writer, discovered []Discovery) {
	if len(discovered) == 0 {
		return
	}

	root := &treeNode{}
	for _, d := range discovered {
		port := root.findOrCreate(d.Endpoint.Host).findOrCreate(":" + strconv.Itoa(d.Endpoint.Port))
		for _, svc := range d.Services {
			port.findOrCreate(svc)
		}
	}

	fmt.Fprintf(w, "\n  Discovered services:\n")
	printChildren(w, root, "  ")
}

func printChildren(w io.Writer, node *treeNode, prefix string) {
	for i, child := range node.children {
		isLast := i == len(node.children)-1
		connector := "├── "
		if isLast {
			connector = "└── "
		}
		fmt.Fprintf(w, "%s%s%s\n", prefix, connector, child.name)
		nextPrefix := prefix + "│   "
		if isLast {
			nextPrefix = prefix + "    "
		}
		printChildren(w, child, nextPrefix)
	}
}
