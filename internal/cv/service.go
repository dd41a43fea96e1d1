package cv

import (
	"fmt"
	"image"
	"sync"
	"time"
)

// DefaultCacheDuration lets units ticking at nearly the same moment share
// one grab.
const DefaultCacheDuration = 40 * time.Millisecond

// Service wraps a Capturer with a short-lived frame cache and carries the
// Matcher the controllers detect with. Frames handed out are shared and
// must be treated as read-only.
type Service struct {
	capturer Capturer
	matcher  *Matcher

	cachedFrame     *Frame
	cachedFrameTime time.Time
	cacheDuration   time.Duration

	grabs int64
	mu    sync.Mutex
}

// NewService creates a new CV service
func NewService(capturer Capturer, matcher *Matcher) *Service {
	return NewServiceWithCache(capturer, matcher, DefaultCacheDuration)
}

// NewServiceWithCache creates a CV service with custom cache duration
func NewServiceWithCache(capturer Capturer, matcher *Matcher, cacheDuration time.Duration) *Service {
	if matcher == nil {
		matcher = NewMatcher(nil)
	}
	return &Service{
		capturer:      capturer,
		matcher:       matcher,
		cacheDuration: cacheDuration,
	}
}

// Matcher returns the detection front end
func (s *Service) Matcher() *Matcher {
	return s.matcher
}

// CaptureFrame returns the cached frame if it is fresh enough, otherwise grabs.
func (s *Service) CaptureFrame() (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cachedFrame != nil && time.Since(s.cachedFrameTime) < s.cacheDuration {
		return s.cachedFrame, nil
	}

	frame, err := s.capturer.CaptureFrame()
	if err != nil {
		return nil, fmt.Errorf("failed to capture frame: %w", err)
	}
	if frame == nil || frame.Image == nil {
		return nil, ErrInvalidImage
	}
	s.grabs++
	s.cachedFrame = frame
	s.cachedFrameTime = time.Now()
	return frame, nil
}

// CaptureRegion grabs a screen rectangle, bypassing the cache.
func (s *Service) CaptureRegion(r image.Rectangle) (*Frame, error) {
	frame, err := s.capturer.CaptureRegion(r)
	if err != nil {
		return nil, fmt.Errorf("failed to capture region %v: %w", r, err)
	}
	return frame, nil
}

// InvalidateCache forces next capture to get fresh frame
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cachedFrame = nil
}

// Grabs counts frames fetched from the capturer, excluding cache hits.
func (s *Service) Grabs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grabs
}
