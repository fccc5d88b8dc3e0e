package service

import (
	"strings"
	"time"

	"parcelbridge/shipping"
)

func defaultValue(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

var timestampFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, format := range timestampFormats {
		if parsed, err := time.Parse(format, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func parseLabelFormat(value string) shipping.LabelFormat {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	normalized = strings.TrimPrefix(normalized, "IMAGE/")
	normalized = strings.TrimPrefix(normalized, "APPLICATION/")
	switch normalized {
	case "PNG":
		return shipping.LabelFormatPNG
	case "ZPL":
		return shipping.LabelFormatZPL
	default:
		return shipping.LabelFormatPDF
	}
}

// selectRate picks the rate a label request asked for: the exact caller-given
// rate, an exact (carrier, service) match, or the cheapest when nothing was
// specified. It never silently falls back past an explicit selector.
func selectRate(rates []shipping.Rate, req shipping.LabelRequest) (shipping.Rate, error) {
	if req.Rate != nil {
		for _, rate := range rates {
			if rate.ID != "" && rate.ID == req.Rate.ID {
				return rate, nil
			}
		}
		for _, rate := range rates {
			if sameService(rate, req.Rate.Carrier, req.Rate.Service) {
				return rate, nil
			}
		}
		return shipping.Rate{}, &shipping.NotFoundError{
			Resource: "rate",
			Selector: req.Rate.Carrier + "/" + req.Rate.Service,
		}
	}

	if req.Carrier != "" || req.Service != "" {
		for _, rate := range rates {
			if sameService(rate, req.Carrier, req.Service) {
				return rate, nil
			}
		}
		return shipping.Rate{}, &shipping.NotFoundError{
			Resource: "rate",
			Selector: req.Carrier + "/" + req.Service,
		}
	}

	var cheapest *shipping.Rate
	for i := range rates {
		if cheapest == nil || rates[i].Cost.LessThan(cheapest.Cost) {
			cheapest = &rates[i]
		}
	}
	if cheapest == nil {
		return shipping.Rate{}, &shipping.NotFoundError{Resource: "rate"}
	}
	return *cheapest, nil
}

func sameService(rate shipping.Rate, carrier, service string) bool {
	return strings.EqualFold(strings.TrimSpace(rate.Carrier), strings.TrimSpace(carrier)) &&
		strings.EqualFold(strings.TrimSpace(rate.Service), strings.TrimSpace(service))
}
