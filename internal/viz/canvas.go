package viz

import (
	"strings"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const brailleBlank = 0x2800

// Canvas is a grid of Braille cells, (Width*2) x (Height*4) dots.
type Canvas struct {
	Width, Height int
	Grid          [][]rune

	// world window mapped onto the dots, y up
	minX, minY, maxX, maxY float64
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
		maxX:   1,
		maxY:   1,
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// SetWindow sets the world rectangle shown on the canvas.
func (c *Canvas) SetWindow(minX, minY, maxX, maxY float64) {
	if maxX <= minX {
		maxX = minX + 1
	}
	if maxY <= minY {
		maxY = minY + 1
	}
	c.minX, c.minY, c.maxX, c.maxY = minX, minY, maxX, maxY
}

// Project maps world coordinates to dot coordinates.
func (c *Canvas) Project(x, y float64) (int, int) {
	w, h := float64(c.Width*2-1), float64(c.Height*4-1)
	px := (x - c.minX) / (c.maxX - c.minX) * w
	py := (1 - (y-c.minY)/(c.maxY-c.minY)) * h
	return int(px + 0.5), int(py + 0.5)
}

// Set turns on the dot at (x, y); dots outside the canvas are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

// Point sets the dot nearest to a world point.
func (c *Canvas) Point(x, y float64) {
	c.Set(c.Project(x, y))
}

// Segment draws a line between two world points.
func (c *Canvas) Segment(x0, y0, x1, y1 float64) {
	a, b := c.Project(x0, y0)
	p, q := c.Project(x1, y1)
	c.DrawLine(a, b, p, q)
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = brailleBlank
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
