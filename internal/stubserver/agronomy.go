package stubserver

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"cropadvisor/internal/types"
)

// topCropCount is the length of the ranked crop list in a recommendation.
const topCropCount = 3

// topFactorCount is the number of best-matching features reported.
const topFactorCount = 3

// featureScale is the tolerated spread of each feature, in NumericFields
// order. A sample one scale away from a crop's mean counts as one unit of
// distance.
var featureScale = [6]float64{40, 30, 30, 1, 5, 60}

type cropProfile struct {
	name     string
	advisory string
	// mean holds the ideal nitrogen, phosphorus, potassium, pH, temperature
	// and rainfall.
	mean [6]float64
}

var cropProfiles = []cropProfile{
	{"Rice", "Suitable for warm climate with sufficient rainfall.", [6]float64{80, 48, 40, 6.4, 23.7, 236}},
	{"Maize", "Plant after the first rains; keep soil well drained.", [6]float64{78, 48, 20, 6.2, 22.4, 84}},
	{"Chickpea", "Prefers cool, dry conditions and neutral to slightly alkaline soil.", [6]float64{40, 68, 80, 7.3, 18.9, 80}},
	{"Cotton", "Needs a long frost-free season; avoid waterlogging.", [6]float64{118, 46, 20, 6.9, 24, 80}},
	{"Coffee", "Grow under partial shade with steady moisture.", [6]float64{101, 29, 30, 6.8, 25.5, 158}},
	{"Banana", "Mulch heavily and irrigate during dry spells.", [6]float64{100, 82, 50, 6.0, 27.4, 105}},
	{"Mango", "Tolerates heat; reduce watering before flowering.", [6]float64{20, 27, 30, 5.8, 31.2, 95}},
	{"Jute", "Thrives in humid lowlands with high rainfall.", [6]float64{78, 47, 40, 6.7, 25, 175}},
}

// Recommend ranks the known crops for sample. Probabilities are a softmax
// over the scaled squared distance to each crop's ideal conditions.
func Recommend(sample types.SoilSample) types.Recommendation {
	x := features(sample)

	dist := make([]float64, len(cropProfiles))
	minDist := math.Inf(1)
	for i, p := range cropProfiles {
		dist[i] = distance(x, p.mean)
		minDist = math.Min(minDist, dist[i])
	}

	// Shift by the minimum so the best crop scores exp(0) and nothing
	// underflows to an all-zero total.
	ranked := make([]types.CropProbability, len(cropProfiles))
	var total float64
	for i, p := range cropProfiles {
		w := math.Exp(-(dist[i] - minDist) / 2)
		ranked[i] = types.CropProbability{Crop: p.name, Probability: w}
		total += w
	}
	for i := range ranked {
		ranked[i].Probability /= total
	}
	slices.SortStableFunc(ranked, func(a, b types.CropProbability) int {
		return cmp.Compare(b.Probability, a.Probability)
	})

	best := profileByName(ranked[0].Crop)
	confidence := round2(ranked[0].Probability)

	top := make([]types.CropProbability, 0, topCropCount)
	for _, c := range ranked[:topCropCount] {
		top = append(top, types.CropProbability{Crop: c.Crop, Probability: round2(c.Probability)})
	}

	return types.Recommendation{
		Crop:       best.name,
		Advisory:   best.advisory,
		Confidence: &confidence,
		TopFactors: closestFactors(x, best.mean),
		TopCrops:   top,
	}
}

func features(s types.SoilSample) [6]float64 {
	return [6]float64{s.Nitrogen, s.Phosphorus, s.Potassium, s.PH, s.Temperature, s.Rainfall}
}

func distance(x, mean [6]float64) float64 {
	var d float64
	for i := range x {
		z := (x[i] - mean[i]) / featureScale[i]
		d += z * z
	}
	return d
}

// closestFactors names the features where x sits nearest the crop's ideal.
func closestFactors(x, mean [6]float64) []string {
	idx := []int{0, 1, 2, 3, 4, 5}
	slices.SortStableFunc(idx, func(a, b int) int {
		za := math.Abs(x[a]-mean[a]) / featureScale[a]
		zb := math.Abs(x[b]-mean[b]) / featureScale[b]
		return cmp.Compare(za, zb)
	})
	out := make([]string, 0, topFactorCount)
	for _, i := range idx[:topFactorCount] {
		out = append(out, types.NumericFields[i])
	}
	return out
}

func profileByName(name string) cropProfile {
	for _, p := range cropProfiles {
		if p.name == name {
			return p
		}
	}
	return cropProfiles[0]
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// weatherTable is the fixed set of cities the stub knows, keyed by the
// lower-cased name.
var weatherTable = map[string]types.WeatherSnapshot{
	"mumbai":    {Temperature: 31, Humidity: 70, Description: "haze", City: "Mumbai", Icon: "50d"},
	"delhi":     {Temperature: 34, Humidity: 40, Description: "clear sky", City: "Delhi", Icon: "01d"},
	"pune":      {Temperature: 27, Humidity: 60, Description: "scattered clouds", City: "Pune", Icon: "03d"},
	"bengaluru": {Temperature: 24, Humidity: 65, Description: "light rain", City: "Bengaluru", Icon: "10d"},
	"chennai":   {Temperature: 33, Humidity: 74, Description: "few clouds", City: "Chennai", Icon: "02d"},
	"kolkata":   {Temperature: 30, Humidity: 80, Description: "thunderstorm", City: "Kolkata", Icon: "11d"},
	"hyderabad": {Temperature: 29, Humidity: 55, Description: "broken clouds", City: "Hyderabad", Icon: "04d"},
	"são paulo": {Temperature: 22, Humidity: 78, Description: "overcast clouds", City: "São Paulo", Icon: "04d"},
}

// LookupWeather returns the current weather for city, ignoring case and
// surrounding whitespace.
func LookupWeather(city string) (types.WeatherSnapshot, bool) {
	w, ok := weatherTable[strings.ToLower(strings.TrimSpace(city))]
	return w, ok
}
