package geo

import (
	"math"
	"sort"

	"github.com/banshee-data/mushmap/internal/mapimg"
)

// DefaultScoreThreshold is the composite score at which a cell counts
// toward a region: the weighted-mean tier must reach TierHigh.
const DefaultScoreThreshold = float64(mapimg.TierHigh)

// Region is a contiguous patch of high-scoring composite cells.
type Region struct {
	ID        int
	Cells     int
	MeanScore float64
	MaxScore  float64

	// Pixel-space centroid and bounding box.
	CentroidX float64
	CentroidY float64
	MinX      int
	MinY      int
	MaxX      int
	MaxY      int
}

// cell is one flagged composite cell feeding the clustering.
type cell struct {
	x, y  int
	score float64
}

// RegionParams tunes region extraction.
type RegionParams struct {
	// ScoreThreshold selects which composite cells participate.
	ScoreThreshold float64
	// Eps is the DBSCAN neighborhood radius in pixels.
	Eps float64
	// MinCells is the minimum cluster size; smaller clusters are dropped.
	MinCells int
}

// dbscanMinPts is the DBSCAN core-point neighborhood threshold. It is
// deliberately small and independent of RegionParams.MinCells: with a
// typical eps of a few pixels the neighborhood holds at most a dozen
// cells, so the cluster-size minimum is enforced after clustering instead.
const dbscanMinPts = 4

// ExtractRegions clusters composite cells at or above the score threshold
// into regions. Output is deterministic: regions are sorted by centroid
// (X, then Y) and re-numbered in that order.
func ExtractRegions(g *mapimg.CompositeGrid, params RegionParams) []Region {
	var cells []cell
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			c := g.At(x, y)
			if c.NoData || c.Score < params.ScoreThreshold {
				continue
			}
			cells = append(cells, cell{x: x, y: y, score: c.Score})
		}
	}
	if len(cells) == 0 {
		return nil
	}

	labels := dbscan(cells, params.Eps, dbscanMinPts)

	byLabel := make(map[int][]cell)
	for i, label := range labels {
		if label > 0 {
			byLabel[label] = append(byLabel[label], cells[i])
		}
	}

	regions := make([]Region, 0, len(byLabel))
	for _, members := range byLabel {
		if len(members) < params.MinCells {
			continue
		}
		regions = append(regions, summarize(members))
	}

	sort.Slice(regions, func(i, j int) bool {
		if regions[i].CentroidX != regions[j].CentroidX {
			return regions[i].CentroidX < regions[j].CentroidX
		}
		return regions[i].CentroidY < regions[j].CentroidY
	})
	for i := range regions {
		regions[i].ID = i + 1
	}
	return regions
}

func summarize(members []cell) Region {
	r := Region{
		Cells: len(members),
		MinX:  members[0].x,
		MinY:  members[0].y,
		MaxX:  members[0].x,
		MaxY:  members[0].y,
	}
	var sumX, sumY, sumScore float64
	for _, c := range members {
		sumX += float64(c.x)
		sumY += float64(c.y)
		sumScore += c.score
		if c.score > r.MaxScore {
			r.MaxScore = c.score
		}
		if c.x < r.MinX {
			r.MinX = c.x
		}
		if c.x > r.MaxX {
			r.MaxX = c.x
		}
		if c.y < r.MinY {
			r.MinY = c.y
		}
		if c.y > r.MaxY {
			r.MaxY = c.y
		}
	}
	n := float64(len(members))
	r.CentroidX = sumX / n
	r.CentroidY = sumY / n
	r.MeanScore = sumScore / n
	return r
}

// dbscan labels cells: 0=unvisited, -1=noise, >0=cluster ID. A regular-grid
// spatial index keeps neighborhood queries cheap.
func dbscan(cells []cell, eps float64, minPts int) []int {
	n := len(cells)
	labels := make([]int, n)
	clusterID := 0

	index := buildIndex(cells, eps)

	for i := 0; i < n; i++ {
		if labels[i] != 0 {
			continue
		}

		neighbors := index.query(cells, i, eps)
		if len(neighbors) < minPts {
			labels[i] = -1
			continue
		}

		clusterID++
		expand(cells, index, labels, i, neighbors, clusterID, eps, minPts)
	}

	return labels
}

// expand grows a cluster from a core cell using a queue of neighbors.
func expand(cells []cell, index *gridIndex, labels []int,
	seedIdx int, neighbors []int, clusterID int, eps float64, minPts int) {

	labels[seedIdx] = clusterID

	for j := 0; j < len(neighbors); j++ {
		idx := neighbors[j]

		if labels[idx] == -1 {
			labels[idx] = clusterID // noise becomes a border cell
		}
		if labels[idx] != 0 {
			continue
		}

		labels[idx] = clusterID
		next := index.query(cells, idx, eps)
		if len(next) >= minPts {
			neighbors = append(neighbors, next...)
		}
	}
}

// gridIndex buckets cells into eps-sized bins for neighborhood queries.
type gridIndex struct {
	cellSize float64
	bins     map[[2]int][]int
}

func buildIndex(cells []cell, eps float64) *gridIndex {
	gi := &gridIndex{cellSize: eps, bins: make(map[[2]int][]int)}
	for i, c := range cells {
		key := gi.binOf(float64(c.x), float64(c.y))
		gi.bins[key] = append(gi.bins[key], i)
	}
	return gi
}

func (gi *gridIndex) binOf(x, y float64) [2]int {
	return [2]int{int(math.Floor(x / gi.cellSize)), int(math.Floor(y / gi.cellSize))}
}

// query returns indices of all cells within eps of cells[idx].
func (gi *gridIndex) query(cells []cell, idx int, eps float64) []int {
	p := cells[idx]
	eps2 := eps * eps
	base := gi.binOf(float64(p.x), float64(p.y))

	var neighbors []int
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			key := [2]int{base[0] + dx, base[1] + dy}
			for _, candidateIdx := range gi.bins[key] {
				c := cells[candidateIdx]
				ddx := float64(c.x - p.x)
				ddy := float64(c.y - p.y)
				if ddx*ddx+ddy*ddy <= eps2 {
					neighbors = append(neighbors, candidateIdx)
				}
			}
		}
	}
	return neighbors
}
