// Package assign solves the rectangular minimum cost assignment problem for
// track pairing. It is self contained so the matching core stays portable.
package assign

import "math"

// indexBias nudges otherwise equal pairings toward ones that preserve the
// original ordering, which keeps ties deterministic.
const indexBias = 1e-9

// Assign pairs rows with columns of a rectangular cost matrix so the total
// cost is minimal. Slots with no counterpart take padCost. It returns the
// pairing in both directions, -1 meaning unmatched, and the mapping is
// injective both ways.
func Assign(cost [][]float64, padCost float64) (rowTo, colTo []int) {
	n := len(cost)
	var m int
	if n > 0 {
		m = len(cost[0])
	}

	rowTo = make([]int, n)
	for i := range rowTo {
		rowTo[i] = -1
	}
	colTo = make([]int, m)
	for j := range colTo {
		colTo[j] = -1
	}

	size := max(n, m)
	if size == 0 {
		return rowTo, colTo
	}

	square := make([][]float64, size)
	for i := range square {
		square[i] = make([]float64, size)
		for j := range square[i] {
			if i < n && j < m {
				square[i][j] = cost[i][j] + indexBias*math.Abs(float64(i-j))
			} else {
				square[i][j] = padCost
			}
		}
	}

	for i, j := range hungarian(square) {
		if i < n && j >= 0 && j < m {
			rowTo[i] = j
			colTo[j] = i
		}
	}
	return rowTo, colTo
}

// hungarian solves the square assignment problem (minimization) with the
// O(n^3) potentials formulation. Returns assignment[i] = column for row i.
func hungarian(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}

	u := make([]float64, n+1)
	v := make([]float64, n+1)
	p := make([]int, n+1)
	way := make([]int, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, n+1)
		used := make([]bool, n+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}
		for {
			used[j0] = true
			i0 := p[j0]
			delta := math.Inf(1)
			j1 := 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
			if j0 == 0 {
				break
			}
		}
	}

	assignment := make([]int, n)
	for i := range assignment {
		assignment[i] = -1
	}
	for j := 1; j <= n; j++ {
		if p[j] > 0 {
			assignment[p[j]-1] = j - 1
		}
	}
	return assignment
}
