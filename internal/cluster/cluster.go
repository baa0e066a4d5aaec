// Package cluster groups article vectors into candidate stories with
// complete-linkage agglomerative clustering and a tightening pass.
package cluster

import (
	"log/slog"
	"math"
	"sort"
)

// Options configures clustering.
type Options struct {
	// Threshold is the largest complete-linkage merge cost (cosine
	// distance) accepted by the first pass.
	Threshold float64
	// TightenThreshold is the spread above which a cluster is split again.
	TightenThreshold float64
	// MinSize drops clusters with fewer members.
	MinSize int
}

// Cluster groups vectors and returns clusters of indices into vectors.
// Members are ascending within a cluster; clusters are ordered by size,
// largest first, then by their first member.
func Cluster(vectors [][]float64, opts Options) [][]int {
	if len(vectors) == 0 {
		return nil
	}
	if opts.MinSize < 1 {
		opts.MinSize = 1
	}

	dist := CosineDistances(vectors)
	all := make([]int, len(vectors))
	for i := range all {
		all[i] = i
	}

	first := filterSize(Linkage(dist, all, opts.Threshold), opts.MinSize)

	var out [][]int
	split := 0
	for _, c := range first {
		if opts.TightenThreshold <= 0 || Spread(dist, c) <= opts.TightenThreshold {
			out = append(out, c)
			continue
		}
		split++
		out = append(out, filterSize(Linkage(dist, c, opts.TightenThreshold), opts.MinSize)...)
	}

	sortClusters(out)
	slog.Info("clustered articles",
		"articles", len(vectors),
		"first_pass", len(first),
		"tightened", split,
		"clusters", len(out),
	)
	return out
}

// CosineDistances returns the symmetric matrix of 1 - cos(a, b). Pairs
// involving a zero vector have distance 1.
func CosineDistances(vectors [][]float64) [][]float64 {
	n := len(vectors)
	norms := make([]float64, n)
	for i, v := range vectors {
		var s float64
		for _, x := range v {
			s += x * x
		}
		norms[i] = math.Sqrt(s)
	}

	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := 1.0
			if norms[i] > 0 && norms[j] > 0 {
				var dot float64
				for k := range vectors[i] {
					dot += vectors[i][k] * vectors[j][k]
				}
				cos := math.Max(-1, math.Min(1, dot/(norms[i]*norms[j])))
				d = 1 - cos
			}
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}

// Linkage runs complete-linkage agglomerative clustering over the given
// members of dist. The cheapest merge is applied while its cost, the
// largest pairwise distance of the merged cluster, does not exceed
// threshold. Equal costs are broken by the lowest pair of first members.
func Linkage(dist [][]float64, members []int, threshold float64) [][]int {
	type group struct {
		first   int
		members []int
	}

	groups := make([]*group, len(members))
	for i, m := range members {
		groups[i] = &group{first: m, members: []int{m}}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].first < groups[j].first })

	// cost[i][j] is the complete-linkage distance between groups i and j.
	n := len(groups)
	cost := make([][]float64, n)
	for i := range cost {
		cost[i] = make([]float64, n)
		for j := range cost[i] {
			cost[i][j] = dist[groups[i].first][groups[j].first]
		}
	}
	alive := make([]bool, n)
	for i := range alive {
		alive[i] = true
	}

	for {
		bi, bj := -1, -1
		best := math.Inf(1)
		for i := 0; i < n; i++ {
			if !alive[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if !alive[j] {
					continue
				}
				// Groups stay ordered by first member, so scanning i<j in
				// index order visits pairs in first-member order and a
				// strict comparison keeps the lowest pair on ties.
				if cost[i][j] < best {
					best, bi, bj = cost[i][j], i, j
				}
			}
		}
		if bi < 0 || best > threshold {
			break
		}

		groups[bi].members = append(groups[bi].members, groups[bj].members...)
		alive[bj] = false
		for k := 0; k < n; k++ {
			if !alive[k] || k == bi {
				continue
			}
			c := math.Max(cost[bi][k], cost[bj][k])
			cost[bi][k] = c
			cost[k][bi] = c
		}
	}

	var out [][]int
	for i, g := range groups {
		if !alive[i] {
			continue
		}
		m := append([]int(nil), g.members...)
		sort.Ints(m)
		out = append(out, m)
	}
	return out
}

// Spread is the largest pairwise distance between members.
func Spread(dist [][]float64, members []int) float64 {
	var s float64
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			s = math.Max(s, dist[members[i]][members[j]])
		}
	}
	return s
}

func filterSize(clusters [][]int, minSize int) [][]int {
	var out [][]int
	for _, c := range clusters {
		if len(c) >= minSize {
			out = append(out, c)
		}
	}
	return out
}

func sortClusters(clusters [][]int) {
	sort.SliceStable(clusters, func(i, j int) bool {
		if len(clusters[i]) != len(clusters[j]) {
			return len(clusters[i]) > len(clusters[j])
		}
		return clusters[i][0] < clusters[j][0]
	})
}
