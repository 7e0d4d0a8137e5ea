package main

import (
	"fmt"
	"io"
	"strings"

	"cropadvisor/internal/session"
	"cropadvisor/internal/types"
)

// formFields is the display order of the form.
var formFields = append(append([]string{}, types.NumericFields...), types.FieldCity)

// render writes the form, the weather card and the recommendation card.
func render(w io.Writer, fields map[string]string, v session.View) {
	var b strings.Builder

	b.WriteString("── Soil form ──\n")
	for _, f := range formFields {
		fmt.Fprintf(&b, "  %-12s %s", f, fields[f])
		if msg, ok := v.FieldErrors[f]; ok {
			fmt.Fprintf(&b, "   ! %s", msg)
		}
		b.WriteByte('\n')
	}

	b.WriteString("── Weather ──\n")
	switch wc := v.Weather; {
	case wc.Loading:
		b.WriteString("  loading...\n")
	case wc.Error != "":
		fmt.Fprintf(&b, "  %s\n", wc.Error)
	case wc.Weather != nil:
		fmt.Fprintf(&b, "  %s: %.1f°C, %.0f%% humidity, %s\n",
			wc.Weather.City, wc.Weather.Temperature, wc.Weather.Humidity, wc.Weather.Description)
	default:
		fmt.Fprintf(&b, "  %s\n", wc.Empty)
	}

	rc := v.Recommendation
	switch {
	case rc.Loading:
		b.WriteString("── Recommendation ──\n  analyzing...\n")
	case rc.Error != "":
		fmt.Fprintf(&b, "── Recommendation ──\n  %s\n", rc.Error)
	case rc.Result != nil:
		fmt.Fprintf(&b, "── %s ──\n", rc.Notice)
		fmt.Fprintf(&b, "  Crop: %s", rc.Result.Crop)
		if rc.ConfidencePercent != nil {
			fmt.Fprintf(&b, " (%d%% confidence)", *rc.ConfidencePercent)
		}
		b.WriteByte('\n')
		fmt.Fprintf(&b, "  %s\n", rc.Result.Advisory)
		if len(rc.Result.TopFactors) > 0 {
			fmt.Fprintf(&b, "  Top factors: %s\n", strings.Join(rc.Result.TopFactors, ", "))
		}
		if len(rc.Result.TopCrops) > 0 {
			parts := make([]string, 0, len(rc.Result.TopCrops))
			for _, c := range rc.Result.TopCrops {
				parts = append(parts, fmt.Sprintf("%s %.0f%%", c.Crop, c.Probability*100))
			}
			fmt.Fprintf(&b, "  Alternatives: %s\n", strings.Join(parts, ", "))
		}
	}

	_, _ = io.WriteString(w, b.String())
}
