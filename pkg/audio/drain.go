package audio

// Drain reads from ch until the channel is closed, discarding all values.
// Speech output uses it to release a synthesis goroutine after playback was
// cancelled.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
