package service

import (
	"regexp"
	"strings"
	"unicode"
)

// Intent is what the user is asking for
type Intent string

const (
	IntentWeather  Intent = "weather"
	IntentGreeting Intent = "greeting"
	IntentUnknown  Intent = "unknown"
)

var weatherKeywords = []string{
	"weather", "forecast", "temperature", "temp", "rain", "raining", "snow", "sunny", "cloud",
	"wind", "hot", "cold", "warm", "humid", "umbrella", "degrees", "celsius",
	// es / fr / de / id
	"tiempo", "clima", "lluvia", "temperatura", "météo", "meteo", "pluie",
	"wetter", "regen", "cuaca", "hujan", "suhu",
}

var greetingKeywords = []string{
	"hi", "hello", "hey", "hola", "bonjour", "hallo", "halo", "thanks", "thank you", "ok", "okay",
}

// placePattern captures the phrase after a locative preposition
var placePattern = regexp.MustCompile(`(?i)(?:^|[\s,¿¡])(?:in|for|at|about|en|à|über|di)\s+([\p{L}][\p{L}'.\- ]*)`)

var prepositions = map[string]bool{
	"in": true, "for": true, "at": true, "about": true, "en": true, "à": true, "über": true, "di": true,
}

var fillerWords = map[string]bool{
	"yes": true, "no": true, "sure": true, "maybe": true, "what": true, "why": true, "how": true,
	"help": true, "nothing": true, "nope": true, "yep": true,
}

var stopWords = map[string]bool{
	"today": true, "tomorrow": true, "tonight": true, "now": true, "right": true, "please": true,
	"currently": true, "this": true, "the": true, "like": true, "hoy": true, "mañana": true,
	"aujourd'hui": true, "heute": true, "hari": true, "ini": true,
}

var unitWords = map[string]bool{
	"celsius": true, "fahrenheit": true, "metric": true, "kelvin": true, "general": true,
}

// RoutingResult contains the classified intent and any extracted place
type RoutingResult struct {
	Intent       Intent
	City         string
	Confidence   float64
	WeatherScore int
	Reasoning    string
}

// IntentRouter classifies free-form utterances and pulls out a place name
type IntentRouter struct{}

func NewIntentRouter() *IntentRouter {
	return &IntentRouter{}
}

// Route analyses the prompt and returns the intent and city, if any
func (r *IntentRouter) Route(prompt string) RoutingResult {
	text := strings.TrimSpace(prompt)
	lower := strings.ToLower(text)
	words := tokenize(lower)

	weatherScore := 0
	for _, kw := range weatherKeywords {
		if containsWord(words, lower, kw) {
			weatherScore++
		}
	}

	city := ExtractCity(text)

	switch {
	case weatherScore > 0 && city != "":
		return RoutingResult{
			Intent:       IntentWeather,
			City:         city,
			Confidence:   1.0,
			WeatherScore: weatherScore,
			Reasoning:    "weather keywords with a place name",
		}
	case weatherScore > 0:
		return RoutingResult{
			Intent:       IntentWeather,
			Confidence:   0.7,
			WeatherScore: weatherScore,
			Reasoning:    "weather keywords without a place name",
		}
	case city != "":
		return RoutingResult{
			Intent:     IntentWeather,
			City:       city,
			Confidence: 0.6,
			Reasoning:  "bare place name",
		}
	}

	for _, kw := range greetingKeywords {
		if containsWord(words, lower, kw) {
			return RoutingResult{Intent: IntentGreeting, Confidence: 0.8, Reasoning: "greeting or acknowledgement"}
		}
	}
	return RoutingResult{Intent: IntentUnknown, Confidence: 0.5, Reasoning: "no weather keywords or place name"}
}

// ExtractCity returns the place named in text, or "" if none is found.
// A short utterance with no keywords ("Paris", "New York") is taken as the place itself.
func ExtractCity(text string) string {
	matches := placePattern.FindAllStringSubmatch(text, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		segments := splitOnPrepositions(matches[i][1])
		for j := len(segments) - 1; j >= 0; j-- {
			if c := trimPlace(segments[j]); c != "" {
				return c
			}
		}
	}

	bare := strings.TrimFunc(text, func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSpace(r) })
	fields := strings.Fields(bare)
	if len(fields) == 0 || len(fields) > 3 {
		return ""
	}
	lower := strings.ToLower(bare)
	words := tokenize(lower)
	for _, kw := range weatherKeywords {
		if containsWord(words, lower, kw) {
			return ""
		}
	}
	for _, kw := range greetingKeywords {
		if containsWord(words, lower, kw) {
			return ""
		}
	}
	for _, f := range fields {
		for _, r := range f {
			if !unicode.IsLetter(r) && r != '-' && r != '\'' && r != '.' {
				return ""
			}
		}
		lf := strings.ToLower(f)
		if stopWords[lf] || fillerWords[lf] || prepositions[lf] {
			return ""
		}
	}
	return bare
}

// splitOnPrepositions breaks "celsius in Tokyo" into ["celsius", "Tokyo"]
func splitOnPrepositions(phrase string) []string {
	var (
		segments []string
		current  []string
	)
	for _, w := range strings.Fields(phrase) {
		if prepositions[strings.ToLower(w)] {
			segments = append(segments, strings.Join(current, " "))
			current = nil
			continue
		}
		current = append(current, w)
	}
	return append(segments, strings.Join(current, " "))
}

// trimPlace cuts a phrase at the first stop word and strips punctuation
func trimPlace(phrase string) string {
	var kept []string
	for _, w := range strings.Fields(phrase) {
		clean := strings.TrimFunc(w, unicode.IsPunct)
		lw := strings.ToLower(clean)
		if clean == "" || stopWords[lw] {
			break
		}
		kept = append(kept, clean)
		if strings.IndexFunc(w, func(r rune) bool { return r == '?' || r == '!' || r == ',' }) >= 0 {
			break
		}
	}
	if len(kept) == 0 {
		return ""
	}
	if len(kept) == 1 && unitWords[strings.ToLower(kept[0])] {
		return ""
	}
	return strings.Join(kept, " ")
}

func tokenize(lower string) []string {
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}

// containsWord matches single-word keywords on word boundaries and phrases by substring
func containsWord(words []string, lower, kw string) bool {
	if strings.Contains(kw, " ") {
		return strings.Contains(lower, kw)
	}
	for _, w := range words {
		if w == kw {
			return true
		}
	}
	return false
}
