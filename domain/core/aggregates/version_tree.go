package aggregates

import (
	"errors"
	"sort"

	"imagio-backend/domain/core/entities"
	"imagio-backend/domain/core/valueobjects"
)

// VersionTree is the aggregate assembled from one image's full version
// history. It gives tree-level answers (root, ordered versions, history
// paths) that no single node can provide.
//
// The tree tolerates inconsistent child links: traversal tracks visited
// nodes so a corrupt back-reference cannot loop forever.
type VersionTree struct {
	nodes map[string]*entities.ImageNode
	root  *entities.ImageNode
}

// BuildVersionTree assembles a tree from a set of nodes that belong to the
// same lineage. Exactly one node must be the root (no parent).
func BuildVersionTree(nodes []*entities.ImageNode) (*VersionTree, error) {
	if len(nodes) == 0 {
		return nil, errors.New("version tree requires at least one node")
	}

	tree := &VersionTree{nodes: make(map[string]*entities.ImageNode, len(nodes))}

	for _, node := range nodes {
		if node == nil {
			continue
		}
		tree.nodes[node.ID().String()] = node
		if node.ParentID() == nil {
			if tree.root != nil {
				return nil, errors.New("version tree has multiple roots")
			}
			tree.root = node
		}
	}

	if tree.root == nil {
		return nil, errors.New("version tree has no root")
	}

	return tree, nil
}

// Root returns the original image the tree grew from
func (t *VersionTree) Root() *entities.ImageNode {
	return t.root
}

// Size returns the number of nodes in the tree, deleted ones included
func (t *VersionTree) Size() int {
	return len(t.nodes)
}

// Get returns a node by ID, or nil if it is not part of this tree
func (t *VersionTree) Get(id valueobjects.ImageID) *entities.ImageNode {
	return t.nodes[id.String()]
}

// AllVersions returns every node in the tree ordered by creation time.
// Soft-deleted nodes are included; history stays complete.
func (t *VersionTree) AllVersions() []*entities.ImageNode {
	collected := make([]*entities.ImageNode, 0, len(t.nodes))
	visited := make(map[string]bool, len(t.nodes))
	t.collect(t.root, visited, &collected)

	sort.SliceStable(collected, func(i, j int) bool {
		return collected[i].CreatedAt().Before(collected[j].CreatedAt())
	})

	return collected
}

// ActiveVersions returns the non-deleted nodes ordered by creation time
func (t *VersionTree) ActiveVersions() []*entities.ImageNode {
	all := t.AllVersions()
	active := make([]*entities.ImageNode, 0, len(all))
	for _, node := range all {
		if !node.IsDeleted() {
			active = append(active, node)
		}
	}
	return active
}

// History returns the path from the root to the given node, inclusive.
// The node itself may be deleted; deleted ancestors are kept as well so
// the chain of edits is never broken.
func (t *VersionTree) History(id valueobjects.ImageID) ([]*entities.ImageNode, error) {
	node := t.nodes[id.String()]
	if node == nil {
		return nil, errors.New("node is not part of this tree")
	}

	var path []*entities.ImageNode
	visited := make(map[string]bool)
	for node != nil {
		if visited[node.ID().String()] {
			return nil, errors.New("parent chain contains a cycle")
		}
		visited[node.ID().String()] = true
		path = append(path, node)

		parentID := node.ParentID()
		if parentID == nil {
			break
		}
		node = t.nodes[parentID.String()]
	}

	// Reverse into root-first order
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	return path, nil
}

// Depth returns the longest root-to-leaf version count
func (t *VersionTree) Depth() int {
	visited := make(map[string]bool, len(t.nodes))
	return t.depth(t.root, visited)
}

func (t *VersionTree) depth(node *entities.ImageNode, visited map[string]bool) int {
	if node == nil || visited[node.ID().String()] {
		return 0
	}
	visited[node.ID().String()] = true

	deepest := 0
	for _, childID := range node.Children() {
		child := t.nodes[childID.String()]
		if d := t.depth(child, visited); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

func (t *VersionTree) collect(node *entities.ImageNode, visited map[string]bool, out *[]*entities.ImageNode) {
	if node == nil || visited[node.ID().String()] {
		return
	}
	visited[node.ID().String()] = true
	*out = append(*out, node)

	for _, childID := range node.Children() {
		t.collect(t.nodes[childID.String()], visited, out)
	}
}
