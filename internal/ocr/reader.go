// Package ocr reads short numeric labels (such as the distance under a
// quest marker) from small screen crops.
package ocr

import (
	"errors"
	"image"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/image/draw"
)

// ErrUnavailable is returned by readers whose engine was not compiled in.
var ErrUnavailable = errors.New("ocr engine unavailable")

// TextReader turns an image into text. Implementations need not be safe
// for concurrent use.
type TextReader interface {
	ReadText(img *image.RGBA) (string, error)
	Close() error
}

// ParseDistance extracts the first run of digits in s, ignoring unit
// suffixes and surrounding noise ("123m", "Dist: 45"). ok is false when s
// holds no digits.
func ParseDistance(s string) (int, bool) {
	start := strings.IndexFunc(s, unicode.IsDigit)
	if start < 0 {
		return 0, false
	}
	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	// Anything longer than six digits is misread noise, not a distance.
	if end-start > 6 {
		return 0, false
	}
	n, err := strconv.Atoi(s[start:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Prepare converts a crop into what line OCR reads best: upscaled by
// factor, grayscale, and binarized so the brighter text is black on white.
func Prepare(img *image.RGBA, factor int) *image.Gray {
	if factor < 1 {
		factor = 1
	}
	b := img.Bounds()
	scaled := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, b, draw.Src, nil)

	gray := image.NewGray(scaled.Bounds())
	var sum int
	for i := 0; i < len(gray.Pix); i++ {
		p := scaled.Pix[i*4 : i*4+3]
		l := (int(p[0])*299 + int(p[1])*587 + int(p[2])*114) / 1000
		gray.Pix[i] = uint8(l)
		sum += l
	}
	if len(gray.Pix) == 0 {
		return gray
	}

	mean := sum / len(gray.Pix)
	for i, l := range gray.Pix {
		if int(l) > mean {
			gray.Pix[i] = 0
		} else {
			gray.Pix[i] = 255
		}
	}
	return gray
}

// Static returns fixed answers in order and then repeats the last one.
// It backs offline runs where no OCR engine is installed.
type Static struct {
	Answers []string
	Err     error
	next    int
}

func (s *Static) ReadText(*image.RGBA) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	if len(s.Answers) == 0 {
		return "", nil
	}
	a := s.Answers[min(s.next, len(s.Answers)-1)]
	s.next++
	return a, nil
}

func (s *Static) Close() error { return nil }
