package imagegen

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/yungbote/draftline-backend/internal/platform/envutil"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
)

// LocalRenderer draws placeholder artwork without calling any provider.
// Used when GEMINI_API_KEY is unset or IMAGEGEN_PROVIDER=local, so the
// pipeline stays runnable end to end in development.
type LocalRenderer struct {
	log  *logger.Logger
	face font.Face
}

func NewLocalRenderer(baseLog *logger.Logger) *LocalRenderer {
	r := &LocalRenderer{
		log:  baseLog.With("service", "LocalImageRenderer"),
		face: basicfont.Face7x13,
	}
	if path := envutil.Str("IMAGE_FONT_PATH", ""); path != "" {
		if raw, err := os.ReadFile(path); err == nil {
			if parsed, err := truetype.Parse(raw); err == nil {
				r.face = truetype.NewFace(parsed, &truetype.Options{Size: 28})
			} else {
				r.log.Warn("bad font file, using builtin face", "path", path, "error", err)
			}
		}
	}
	return r
}

func (r *LocalRenderer) ModelName() string { return "local-renderer" }

func (r *LocalRenderer) Generate(_ context.Context, spec Spec) ([]byte, error) {
	w, h := 1024, 1024
	if spec.Featured {
		w, h = 2048, 1152
	}
	dc := gg.NewContext(w, h)

	// Prompt-seeded gradient so distinct images are telling-apart-able.
	sum := sha256.Sum256([]byte(spec.Prompt))
	top := [3]float64{float64(sum[0]) / 512, float64(sum[1]) / 512, float64(sum[2]) / 512}
	bottom := [3]float64{float64(sum[3])/512 + 0.3, float64(sum[4])/512 + 0.3, float64(sum[5])/512 + 0.3}
	grad := gg.NewLinearGradient(0, 0, float64(w), float64(h))
	grad.AddColorStop(0, colorOf(top))
	grad.AddColorStop(1, colorOf(bottom))
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, float64(w), float64(h))
	dc.Fill()

	dc.SetFontFace(r.face)
	dc.SetRGB(0.95, 0.95, 0.95)
	caption := spec.Prompt
	if len(caption) > 240 {
		caption = caption[:240]
	}
	dc.DrawStringWrapped(caption, float64(w)/2, float64(h)/2, 0.5, 0.5, float64(w)*0.8, 1.5, gg.AlignCenter)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode placeholder png: %w", err)
	}
	return buf.Bytes(), nil
}

type rgb struct{ r, g, b float64 }

func (c rgb) RGBA() (uint32, uint32, uint32, uint32) {
	return uint32(c.r * 0xffff), uint32(c.g * 0xffff), uint32(c.b * 0xffff), 0xffff
}

func colorOf(v [3]float64) rgb {
	clamp := func(f float64) float64 {
		if f < 0 {
			return 0
		}
		if f > 1 {
			return 1
		}
		return f
	}
	return rgb{clamp(v[0]), clamp(v[1]), clamp(v[2])}
}
