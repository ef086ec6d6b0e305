// Package cluster groups nearby text boxes into candidate code regions.
//
// Grouping is density-based with a minimum neighbourhood of one: two boxes
// are neighbours when their centres are at most eps apart, and a region is
// the transitive closure of that relation. Isolated boxes form singleton
// regions and are never dropped as noise.
package cluster

import (
	"slices"

	"github.com/MeKo-Tech/codespot/internal/utils"
	"gonum.org/v1/gonum/floats"
)

// Cluster is one group of input boxes and their merged envelope.
type Cluster struct {
	// Members holds indices into the input slice, ascending.
	Members []int
	Box     utils.Box
}

// Group partitions boxes into clusters. Membership does not depend on input
// order. Clusters are returned in order of their lowest member index, which
// is stable for a given input but not part of the contract.
func Group(boxes []utils.Box, eps float64) []Cluster {
	if len(boxes) == 0 {
		return []Cluster{}
	}

	centers := make([][]float64, len(boxes))
	for i, b := range boxes {
		c := b.Center()
		centers[i] = []float64{c.X, c.Y}
	}

	assigned := make([]bool, len(boxes))
	var out []Cluster
	for seed := range boxes {
		if assigned[seed] {
			continue
		}
		members := expand(centers, assigned, seed, eps)
		out = append(out, newCluster(boxes, members))
	}
	return out
}

// MergeBoxes returns only the merged envelopes of Group(boxes, eps).
func MergeBoxes(boxes []utils.Box, eps float64) []utils.Box {
	clusters := Group(boxes, eps)
	merged := make([]utils.Box, len(clusters))
	for i, c := range clusters {
		merged[i] = c.Box
	}
	return merged
}

// expand collects every centre reachable from seed through links of length <= eps.
func expand(centers [][]float64, assigned []bool, seed int, eps float64) []int {
	assigned[seed] = true
	queue := []int{seed}
	members := []int{seed}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for j := range centers {
			if assigned[j] {
				continue
			}
			if floats.Distance(centers[cur], centers[j], 2) <= eps {
				assigned[j] = true
				queue = append(queue, j)
				members = append(members, j)
			}
		}
	}
	slices.Sort(members)
	return members
}

func newCluster(boxes []utils.Box, members []int) Cluster {
	own := make([]utils.Box, len(members))
	for i, m := range members {
		own[i] = boxes[m]
	}
	return Cluster{Members: members, Box: utils.UnionAll(own)}
}
