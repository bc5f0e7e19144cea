package processor

import "time"

const (
	// averageWindow is how much trade history each symbol ring retains.
	averageWindow = 15 * time.Second

	// averageCadence is how often running-average rows are emitted.
	averageCadence = 5 * time.Second
)

type sample struct {
	price  float64
	volume float64
	at     time.Time
}

// windowSet keeps one rolling sample ring per symbol. It is only touched
// from the consumer callback, so it needs no lock.
type windowSet struct {
	window  time.Duration
	samples map[string][]sample
}

func newWindowSet(window time.Duration) *windowSet {
	return &windowSet{window: window, samples: make(map[string][]sample)}
}

// Add records one trade and prunes the symbol's ring against now.
func (w *windowSet) Add(symbol string, price, volume float64, at, now time.Time) {
	ring := append(w.samples[symbol], sample{price: price, volume: volume, at: at})
	w.samples[symbol] = w.prune(ring, now)
}

func (w *windowSet) prune(ring []sample, now time.Time) []sample {
	kept := ring[:0]
	for _, s := range ring {
		if now.Sub(s.at) <= w.window {
			kept = append(kept, s)
		}
	}
	return kept
}

// Means returns mean(price*volume) per symbol over the retained samples.
// Symbols whose ring pruned to empty are skipped.
func (w *windowSet) Means(now time.Time) map[string]float64 {
	means := make(map[string]float64, len(w.samples))
	for symbol, ring := range w.samples {
		ring = w.prune(ring, now)
		w.samples[symbol] = ring
		if len(ring) == 0 {
			continue
		}
		var sum float64
		for _, s := range ring {
			sum += s.price * s.volume
		}
		means[symbol] = sum / float64(len(ring))
	}
	return means
}
