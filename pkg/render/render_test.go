package render

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"testing"
)

// encodeFITS builds a minimal 16-bit FITS file around the specified samples.
func encodeFITS(t *testing.T, width, height int, samples []uint16) []byte {
	t.Helper()

	var buffer bytes.Buffer
	writeCard := func(card string) {
		buffer.WriteString(card)
		for i := len(card); i < fitsCardSize; i++ {
			buffer.WriteByte(' ')
		}
	}
	writeCard("SIMPLE  =                    T")
	writeCard("BITPIX  =                   16")
	writeCard("NAXIS   =                    2")
	writeCard(fmt.Sprintf("NAXIS1  = %20d", width))
	writeCard(fmt.Sprintf("NAXIS2  = %20d", height))
	writeCard("BZERO   =                32768")
	writeCard("INSTRUME= 'TestCam'")
	writeCard("END")
	for buffer.Len()%fitsBlockSize != 0 {
		buffer.WriteByte(' ')
	}

	for _, sample := range samples {
		// Stored value is sample - BZERO as a signed 16-bit integer.
		var raw [2]byte
		binary.BigEndian.PutUint16(raw[:], uint16(int32(sample)-32768))
		buffer.Write(raw[:])
	}
	for buffer.Len()%fitsBlockSize != 0 {
		buffer.WriteByte(0)
	}
	return buffer.Bytes()
}

// syntheticStarField builds an image with a flat background, mild noise-free
// texture, and Gaussian stars at the specified positions.
func syntheticStarField(width, height int, positions [][2]int) []uint16 {
	samples := make([]uint16, width*height)
	for i := range samples {
		// Background with a deterministic ripple so the MAD is nonzero.
		samples[i] = uint16(1000 + (i%7)*3)
	}
	for _, position := range positions {
		for dy := -6; dy <= 6; dy++ {
			for dx := -6; dx <= 6; dx++ {
				x, y := position[0]+dx, position[1]+dy
				if x < 0 || y < 0 || x >= width || y >= height {
					continue
				}
				distance := float64(dx*dx + dy*dy)
				value := 20000 * math.Exp(-distance/(2*2.25))
				index := y*width + x
				total := uint32(samples[index]) + uint32(value)
				if total > 65535 {
					total = 65535
				}
				samples[index] = uint16(total)
			}
		}
	}
	return samples
}

func TestDecodeFITS(t *testing.T) {
	samples := syntheticStarField(64, 64, [][2]int{{32, 32}})
	data := encodeFITS(t, 64, 64, samples)

	fits, err := DecodeFITS(data)
	if err != nil {
		t.Fatal("unable to decode FITS:", err)
	}
	if fits.Width != 64 || fits.Height != 64 {
		t.Error("unexpected dimensions:", fits.Width, fits.Height)
	}
	if value := fits.At(0, 0); value != float64(samples[0]) {
		t.Error("BZERO rescaling wrong:", value)
	}
	if instrument, ok := fits.Header("INSTRUME"); !ok || instrument != "TestCam" {
		t.Error("header extraction failed:", instrument)
	}
}

func TestDecodeFITSRejectsGarbage(t *testing.T) {
	if _, err := DecodeFITS([]byte("not a fits file")); err == nil {
		t.Error("garbage accepted")
	}
}

func TestStretchBounds(t *testing.T) {
	samples := syntheticStarField(32, 32, [][2]int{{16, 16}})
	fits, err := DecodeFITS(encodeFITS(t, 32, 32, samples))
	if err != nil {
		t.Fatal(err)
	}

	stretched := Stretch(fits, StretchOptions{Midtone: 0.2, Shadow: -2.8})
	if len(stretched) != 32*32 {
		t.Fatal("unexpected stretched length")
	}

	// The star peak must map brighter than the background.
	peak := stretched[16*32+16]
	background := stretched[0]
	if peak <= background {
		t.Error("stretch did not separate star from background:", peak, background)
	}

	// Linear mode also produces full-range output.
	linear := Stretch(fits, StretchOptions{Linear: true})
	if linear[16*32+16] <= linear[0] {
		t.Error("linear mapping did not separate star from background")
	}
}

func TestDetectStars(t *testing.T) {
	positions := [][2]int{{16, 16}, {48, 16}, {32, 48}}
	samples := syntheticStarField(64, 64, positions)
	fits, err := DecodeFITS(encodeFITS(t, 64, 64, samples))
	if err != nil {
		t.Fatal(err)
	}

	stars := DetectStars(fits, 10)
	if len(stars) != len(positions) {
		t.Fatal("unexpected star count:", len(stars))
	}
	for _, star := range stars {
		if star.HFR <= 0 {
			t.Error("nonpositive HFR")
		}
		if star.Brightness <= 0 {
			t.Error("nonpositive brightness")
		}
		// Round stars have low eccentricity.
		if star.Eccentricity > 0.5 {
			t.Error("synthetic round star measured elongated:", star.Eccentricity)
		}
	}

	// The cap is honored.
	if capped := DetectStars(fits, 2); len(capped) != 2 {
		t.Error("star cap not honored:", len(capped))
	}
}

func TestFitPSF(t *testing.T) {
	samples := syntheticStarField(64, 64, [][2]int{{32, 32}})
	fits, err := DecodeFITS(encodeFITS(t, 64, 64, samples))
	if err != nil {
		t.Fatal(err)
	}
	stars := DetectStars(fits, 1)
	if len(stars) != 1 {
		t.Fatal("star not detected")
	}

	fit := FitPSF(fits, stars[0], "gaussian", 10)
	if fit.R2 <= 0.5 {
		t.Error("poor Gaussian fit to Gaussian star:", fit.R2)
	}
	if fit.SigmaX <= 0 || fit.SigmaY <= 0 {
		t.Error("nonpositive model widths")
	}
	if fit.Eccentricity > 0.5 {
		t.Error("round star fitted elongated:", fit.Eccentricity)
	}

	moffat := FitPSF(fits, stars[0], "moffat", 10)
	if moffat.Type != "moffat" {
		t.Error("model type not preserved")
	}
}

func TestRenderPreviewProducesPNG(t *testing.T) {
	samples := syntheticStarField(64, 64, [][2]int{{32, 32}})
	fits, err := DecodeFITS(encodeFITS(t, 64, 64, samples))
	if err != nil {
		t.Fatal(err)
	}

	data, err := RenderPreview(fits, StretchOptions{Midtone: 0.2, Shadow: -2.8}, 0)
	if err != nil {
		t.Fatal("unable to render preview:", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("preview is not a PNG")
	}

	// Bounded rendering resizes.
	bounded, err := RenderPreview(fits, StretchOptions{Midtone: 0.2, Shadow: -2.8}, 32)
	if err != nil {
		t.Fatal("unable to render bounded preview:", err)
	}
	if len(bounded) == 0 {
		t.Error("empty bounded preview")
	}
}

func TestComputeStatistics(t *testing.T) {
	samples := syntheticStarField(64, 64, [][2]int{{16, 16}, {48, 48}})
	fits, err := DecodeFITS(encodeFITS(t, 64, 64, samples))
	if err != nil {
		t.Fatal(err)
	}

	statistics := ComputeStatistics(fits)
	if statistics.StarCount != 2 {
		t.Error("unexpected star count:", statistics.StarCount)
	}
	if statistics.Min >= statistics.Max {
		t.Error("degenerate sample range")
	}
	if statistics.Median <= 0 || statistics.MeanHFR <= 0 {
		t.Error("statistics not computed")
	}
}

func TestPoolRecoversPanics(t *testing.T) {
	pool := NewPool(2)

	if _, err := pool.Do(context.Background(), func() ([]byte, error) {
		panic("render exploded")
	}); err == nil {
		t.Error("panic not converted to error")
	}

	// The pool remains usable afterwards.
	data, err := pool.Do(context.Background(), func() ([]byte, error) {
		return []byte("ok"), nil
	})
	if err != nil || string(data) != "ok" {
		t.Error("pool unusable after panic")
	}

	// Errors pass through.
	sentinel := errors.New("sentinel")
	if _, err := pool.Do(context.Background(), func() ([]byte, error) {
		return nil, sentinel
	}); err != sentinel {
		t.Error("error not passed through")
	}
}
