// Package templates holds the curated prompt catalog offered to users who
// want inspiration for their video prompts.
package templates

import (
	"sort"
	"strconv"
	"strings"
)

// Template is one curated prompt suggestion.
type Template struct {
	Name        string
	Description string
	Prompt      string
	Category    string
}

var catalog = []Template{
	// Lifestyle & travel
	{
		Name:        "Dancing in Tokyo",
		Description: "Dynamic dance movement in a futuristic city",
		Prompt:      "A person dancing energetically in the streets of Tokyo at night, neon lights reflecting off wet pavement, cherry blossoms floating in the air, cinematic lighting, steady cam movement",
		Category:    "lifestyle",
	},
	{
		Name:        "Walking Through Paris",
		Description: "Romantic walk through Parisian streets",
		Prompt:      "A person walking leisurely through the streets of Paris, old stone buildings with wrought iron balconies, golden hour light streaming through clouds, café terraces visible in background, dreamy atmosphere",
		Category:    "lifestyle",
	},
	{
		Name:        "Yoga by the Ocean",
		Description: "Peaceful yoga session at sunrise",
		Prompt:      "A person practicing yoga on a beach at sunrise, golden light over calm ocean waves, gentle breeze moving their hair, peaceful and meditative mood, wide establishing shot",
		Category:    "lifestyle",
	},
	// Professional
	{
		Name:        "Presenting at Conference",
		Description: "Professional presentation in a conference hall",
		Prompt:      "A person confidently presenting at a modern conference hall, audience visible in background, large screen displaying charts, professional lighting, dynamic hand gestures",
		Category:    "professional",
	},
	{
		Name:        "Tech Startup Pitch",
		Description: "Pitching to investors",
		Prompt:      "A person sitting across from investors at a sleek conference table, startup office environment, whiteboard with diagrams visible, natural conversation, startup casual attire",
		Category:    "professional",
	},
	{
		Name:        "Teaching a Class",
		Description: "Engaging classroom environment",
		Prompt:      "A person teaching in a modern classroom, students engaged in background, smart board with educational content, warm and interactive atmosphere, natural lighting",
		Category:    "professional",
	},
	// Creative & fantasy
	{
		Name:        "Cyberpunk City",
		Description: "Futuristic cyberpunk aesthetic",
		Prompt:      "A person standing in a futuristic cyberpunk city, neon signs in multiple languages, flying vehicles in background, rain-slicked streets with reflections, dramatic volumetric lighting",
		Category:    "creative",
	},
	{
		Name:        "Fantasy Forest",
		Description: "Enchanted forest scene",
		Prompt:      "A person walking through an enchanted forest, magical glowing creatures visible between trees, rays of sunlight breaking through canopy, fairy tale atmosphere, ethereal lighting",
		Category:    "creative",
	},
	{
		Name:        "Space Station",
		Description: "Sci-fi space environment",
		Prompt:      "A person floating inside a space station, Earth visible through large window, zero gravity environment, sleek metallic corridors, cosmic background visible, documentary style",
		Category:    "creative",
	},
	// Fashion & style
	{
		Name:        "Fashion Shoot",
		Description: "Professional fashion photography style",
		Prompt:      "A person posing for a fashion photoshoot in an urban location, multiple outfit changes, professional camera equipment visible, magazine-quality lighting and composition",
		Category:    "fashion",
	},
	{
		Name:        "Street Style",
		Description: "Casual urban fashion",
		Prompt:      "A person walking confidently down a trendy urban street, street art background, natural candid photography style, vibrant city atmosphere",
		Category:    "fashion",
	},
	// Sports & action
	{
		Name:        "Mountain Hiking",
		Description: "Adventure sports activity",
		Prompt:      "A person hiking through mountain terrain, dramatic alpine scenery, snow-capped peaks in background, adventurous spirit, dynamic action shot",
		Category:    "sports",
	},
	{
		Name:        "Surfing at Sunset",
		Description: "Beach sports action",
		Prompt:      "A person surfing expert-level waves at golden hour, orange and pink sunset sky, tropical beach setting, dynamic action cinematography, spray of water",
		Category:    "sports",
	},
}

// All returns every template in catalog order.
func All() []Template {
	out := make([]Template, len(catalog))
	copy(out, catalog)
	return out
}

// ByCategory returns the templates in the given category.
func ByCategory(category string) []Template {
	var out []Template
	for _, t := range catalog {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// Categories returns the sorted set of known categories.
func Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range catalog {
		if _, ok := seen[t.Category]; ok {
			continue
		}
		seen[t.Category] = struct{}{}
		out = append(out, t.Category)
	}
	sort.Strings(out)
	return out
}

// ByName looks a template up by its name, case-insensitively.
func ByName(name string) (Template, bool) {
	for _, t := range catalog {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Template{}, false
}

// FormatList renders the full catalog grouped by category, Markdown-ready.
func FormatList() string {
	var b strings.Builder
	b.WriteString("🎬 *Available Prompt Templates*\n")
	for _, category := range Categories() {
		b.WriteString("\n📂 *" + titleWord(category) + "*\n")
		for _, t := range ByCategory(category) {
			b.WriteString("• *" + t.Name + "*\n")
			b.WriteString("  _" + t.Description + "_\n")
		}
	}
	return b.String()
}

// FormatQuick renders the first few templates as a short numbered list.
func FormatQuick() string {
	quick := catalog
	if len(quick) > 6 {
		quick = quick[:6]
	}
	var b strings.Builder
	b.WriteString("*Quick Templates:*\n")
	for i, t := range quick {
		b.WriteString("\n")
		b.WriteString(strconv.Itoa(i+1) + ". " + t.Name)
	}
	return b.String()
}

func titleWord(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
