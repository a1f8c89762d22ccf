package vnc

import (
	"sync"

	"vnc-viewer/pkg/rfb"
)

// Framebuffer is the client-side copy of the server's screen. The session
// is the only writer; renderers read through Snapshot. Rectangle blits are
// applied whole under the lock, so a reader never observes a half-written
// rectangle.
type Framebuffer struct {
	mu     sync.RWMutex
	width  int
	height int
	pixels []rfb.RGBA
}

// NewFramebuffer allocates a framebuffer of the given dimensions
func NewFramebuffer(width, height int) *Framebuffer {
	return &Framebuffer{
		width:  width,
		height: height,
		pixels: make([]rfb.RGBA, width*height),
	}
}

// Size returns the framebuffer dimensions
func (f *Framebuffer) Size() (width, height int) {
	return f.width, f.height
}

// Apply blits a decoded rectangle into the framebuffer. Regions outside
// the framebuffer bounds are clipped; a server that sends out-of-bounds
// rectangles is misbehaving but must not corrupt memory.
func (f *Framebuffer) Apply(rect rfb.Rectangle) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for row := 0; row < int(rect.Height); row++ {
		y := int(rect.Y) + row
		if y >= f.height {
			break
		}
		for col := 0; col < int(rect.Width); col++ {
			x := int(rect.X) + col
			if x >= f.width {
				break
			}
			f.pixels[y*f.width+x] = rect.Pixels[row*int(rect.Width)+col]
		}
	}
}

// Snapshot returns a copy of the current pixel contents in row-major order
func (f *Framebuffer) Snapshot() []rfb.RGBA {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]rfb.RGBA, len(f.pixels))
	copy(out, f.pixels)
	return out
}

// At returns the pixel at (x, y); the zero value outside bounds
func (f *Framebuffer) At(x, y int) rfb.RGBA {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if x < 0 || y < 0 || x >= f.width || y >= f.height {
		return rfb.RGBA{}
	}
	return f.pixels[y*f.width+x]
}
