package cluster

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// Kind names the type of work a request asks a server to simulate.
type Kind string

const (
	KindCalculation     Kind = "calculation"
	KindDBQuery         Kind = "db_query"
	KindImageProcessing Kind = "image_processing"
)

// Kinds lists the request kinds with a dedicated processing profile.
var Kinds = []Kind{KindCalculation, KindDBQuery, KindImageProcessing}

// processingRange is the base processing time range, in seconds, before the
// cpu-load multiplier is applied.
type processingRange struct {
	min, max float64
}

var processingRanges = map[Kind]processingRange{
	KindCalculation:     {0.5, 3.0},
	KindDBQuery:         {0.2, 1.5},
	KindImageProcessing: {1.0, 5.0},
}

var genericRange = processingRange{0.1, 0.5}

func rangeFor(kind Kind) processingRange {
	if r, ok := processingRanges[kind]; ok {
		return r
	}
	return genericRange
}

var (
	dbTables     = []string{"users", "products", "sales", "inventory", "customers"}
	dbOperations = []string{"SELECT", "INSERT", "UPDATE", "DELETE", "JOIN"}

	imageSizes   = [][2]int{{800, 600}, {1024, 768}, {1920, 1080}, {3840, 2160}}
	imageFilters = []string{"blur", "sharpen", "grayscale", "resize", "rotate"}
)

// work is the synthetic result of a request together with any extra time
// the payload needs on top of the processing profile.
type work struct {
	result string
	extra  time.Duration
}

// synthesize builds the kind-specific result. rng must be owned by the caller.
func synthesize(kind Kind, payload any, rng *rand.Rand) work {
	switch kind {
	case KindCalculation:
		return work{result: calculate(payload, rng)}
	case KindDBQuery:
		return queryDB(payload, rng)
	case KindImageProcessing:
		return processImage(rng)
	default:
		return work{result: "generic request processed"}
	}
}

// calculate integrates the standard normal density over [-5, 5] with the
// trapezoid rule on value/100 points.
func calculate(payload any, rng *rand.Rand) string {
	var value float64
	switch v := payload.(type) {
	case int:
		value = float64(v)
	case int64:
		value = float64(v)
	case float64:
		value = v
	}
	if value <= 0 {
		value = float64(1000 + rng.Intn(9001))
	}

	points := max(int(value/100), 2)
	step := 10.0 / float64(points-1)
	density := func(x float64) float64 {
		return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
	}

	area := 0.0
	for i := 0; i < points-1; i++ {
		x0 := -5 + float64(i)*step
		area += (density(x0) + density(x0+step)) * step / 2
	}
	return fmt.Sprintf("calculation result: %.6f", area)
}

func queryDB(payload any, rng *rand.Rand) work {
	query, _ := payload.(string)
	if query == "" {
		query = fmt.Sprintf("%s on table %s",
			dbOperations[rng.Intn(len(dbOperations))],
			dbTables[rng.Intn(len(dbTables))])
	}

	var extra time.Duration
	if strings.Contains(query, "JOIN") {
		extra = seconds(uniform(rng, 0.2, 0.8))
	}

	records := 5 + rng.Intn(496)
	return work{
		result: fmt.Sprintf("query %q completed, %d records processed", query, records),
		extra:  extra,
	}
}

func processImage(rng *rand.Rand) work {
	size := imageSizes[rng.Intn(len(imageSizes))]
	filter := imageFilters[rng.Intn(len(imageFilters))]

	// larger images take proportionally longer than an 800x600 baseline
	factor := float64(size[0]*size[1]) / (800 * 600)
	return work{
		result: fmt.Sprintf("image %dx%d processed with filter %s", size[0], size[1], filter),
		extra:  seconds(uniform(rng, 0.1, 0.3) * factor),
	}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
