package video

// Display resolution.
const (
	FramebufferWidth  = 160
	FramebufferHeight = 144
)

// Shade is a final 2-bit pixel value after palette application:
// 0 is white, 3 is black.
type Shade uint8

// FrameBuffer holds one rendered frame, one shade per pixel.
type FrameBuffer struct {
	pixels [FramebufferWidth * FramebufferHeight]Shade
}

func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

func (fb *FrameBuffer) At(x, y int) Shade {
	return fb.pixels[y*FramebufferWidth+x]
}

func (fb *FrameBuffer) Set(x, y int, s Shade) {
	fb.pixels[y*FramebufferWidth+x] = s
}

// Clear fills the whole frame with one shade.
func (fb *FrameBuffer) Clear(s Shade) {
	for i := range fb.pixels {
		fb.pixels[i] = s
	}
}

// Pixels returns the backing slice, row major.
func (fb *FrameBuffer) Pixels() []Shade {
	return fb.pixels[:]
}
