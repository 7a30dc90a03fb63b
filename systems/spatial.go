// Package systems holds the per-tick simulation logic shared by both
// engine backends: spatial indexing, resource lifecycle, agent behavior
// and the environment field.
package systems

// Neighbor holds a nearby entity index with precomputed spatial data.
// This avoids recomputing toroidal delta and distance in the behavior hot path.
type Neighbor struct {
	Idx    int32
	DX, DY float64 // toroidal delta from query origin
	DistSq float64 // squared distance (avoid sqrt in hot path)
}

// SpatialGrid provides O(1) neighbor lookups using a cell-based grid over a
// toroidal world. It stores slice indices rather than entity handles so the
// same grid serves both engine backends.
type SpatialGrid struct {
	cellSize float64
	cols     int
	rows     int
	width    float64
	height   float64
	cells    [][]gridEntry
}

type gridEntry struct {
	idx  int32
	x, y float64
}

// NewSpatialGrid creates a spatial grid covering the given world size.
func NewSpatialGrid(width, height, cellSize float64) *SpatialGrid {
	cols := int(width/cellSize) + 1
	rows := int(height/cellSize) + 1

	cells := make([][]gridEntry, cols*rows)
	for i := range cells {
		cells[i] = make([]gridEntry, 0, 8) // pre-allocate small capacity
	}

	return &SpatialGrid{
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		width:    width,
		height:   height,
		cells:    cells,
	}
}

// Clear removes all entries from the grid.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Insert adds an entity index to the grid at the given position.
func (g *SpatialGrid) Insert(idx int32, x, y float64) {
	ci := g.cellIndex(x, y)
	g.cells[ci] = append(g.cells[ci], gridEntry{idx: idx, x: x, y: y})
}

// QueryRadiusInto appends every entry within radius to dst and returns the
// updated slice. Reuse dst across calls to avoid allocations. Results are
// exhaustive; callers that need "the best" neighbor scan all of them.
func (g *SpatialGrid) QueryRadiusInto(dst []Neighbor, x, y, radius float64, exclude int32) []Neighbor {
	cellRadius := int(radius/g.cellSize) + 1

	centerCol := int(x / g.cellSize)
	centerRow := int(y / g.cellSize)

	// When the query window spans the whole grid axis, wrapping would visit
	// cells twice. Clamp the window so every cell is scanned at most once.
	colLo, colHi := -cellRadius, cellRadius
	if 2*cellRadius+1 >= g.cols {
		colLo, colHi = 0, g.cols-1
		centerCol = 0
	}
	rowLo, rowHi := -cellRadius, cellRadius
	if 2*cellRadius+1 >= g.rows {
		rowLo, rowHi = 0, g.rows-1
		centerRow = 0
	}

	radiusSq := radius * radius

	for dc := colLo; dc <= colHi; dc++ {
		for dr := rowLo; dr <= rowHi; dr++ {
			col := ((centerCol+dc)%g.cols + g.cols) % g.cols
			row := ((centerRow+dr)%g.rows + g.rows) % g.rows
			idx := row*g.cols + col

			for _, e := range g.cells[idx] {
				if e.idx == exclude {
					continue
				}

				dx, dy := ToroidalDelta(x, y, e.x, e.y, g.width, g.height)
				distSq := dx*dx + dy*dy

				if distSq <= radiusSq {
					dst = append(dst, Neighbor{Idx: e.idx, DX: dx, DY: dy, DistSq: distSq})
				}
			}
		}
	}

	return dst
}

// cellIndex returns the flat index for a world position.
func (g *SpatialGrid) cellIndex(x, y float64) int {
	col := int(x / g.cellSize)
	row := int(y / g.cellSize)

	// Clamp to valid range
	if col < 0 {
		col = 0
	} else if col >= g.cols {
		col = g.cols - 1
	}
	if row < 0 {
		row = 0
	} else if row >= g.rows {
		row = g.rows - 1
	}

	return row*g.cols + col
}

// ToroidalDelta returns the shortest path delta from (x1,y1) to (x2,y2).
func ToroidalDelta(x1, y1, x2, y2, w, h float64) (dx, dy float64) {
	dx = x2 - x1
	dy = y2 - y1

	if dx > w/2 {
		dx -= w
	} else if dx < -w/2 {
		dx += w
	}
	if dy > h/2 {
		dy -= h
	} else if dy < -h/2 {
		dy += h
	}

	return dx, dy
}

// WrapPosition maps a coordinate pair back into [0,w) x [0,h).
func WrapPosition(x, y, w, h float64) (float64, float64) {
	for x < 0 {
		x += w
	}
	for x >= w {
		x -= w
	}
	for y < 0 {
		y += h
	}
	for y >= h {
		y -= h
	}
	return x, y
}
