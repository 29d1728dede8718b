// Package forecast projects a weather response into the hourly forecast card.
package forecast

import (
	"fmt"
	"html/template"
	"io"
	"math"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/icon"
	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// Title is the heading shown on the hourly card.
const Title = "Hourly Forecast (48 Hours)"

// Entry is one hour of the strip.
type Entry struct {
	Dt          int64  `json:"dt"`
	Time        string `json:"time"`
	IconURL     string `json:"iconUrl"`
	Description string `json:"description,omitempty"`
	TempF       int    `json:"tempF"`
	Temperature string `json:"temperature"`
}

// Card is the rendered view model of the hourly forecast.
type Card struct {
	Title    string  `json:"title"`
	Timezone string  `json:"timezone"`
	Entries  []Entry `json:"entries"`
}

// Builder turns weather responses into cards.
type Builder struct {
	Icons icon.Resolver
}

// Build projects w using the default icon set.
func Build(w models.WeatherResponse) Card {
	return Builder{}.Build(w)
}

// Build creates one entry per hourly record, in order. w is not modified.
func (b Builder) Build(w models.WeatherResponse) Card {
	loc := Location(w)
	card := Card{
		Title:    Title,
		Timezone: loc.String(),
		Entries:  make([]Entry, 0, len(w.Hourly)),
	}
	for _, h := range w.Hourly {
		e := Entry{
			Dt:    h.Dt,
			Time:  time.Unix(h.Dt, 0).In(loc).Format("3:04 PM"),
			TempF: Round(h.Temp),
		}
		e.Temperature = fmt.Sprintf("%d°F", e.TempF)
		if len(h.Weather) > 0 {
			e.IconURL = b.Icons.URL(h.Weather[0].Icon)
			e.Description = h.Weather[0].Description
		}
		card.Entries = append(card.Entries, e)
	}
	return card
}

// Location returns the response's IANA zone, falling back to its fixed UTC offset.
func Location(w models.WeatherResponse) *time.Location {
	if w.Timezone != "" {
		if loc, err := time.LoadLocation(w.Timezone); err == nil {
			return loc
		}
	}
	return time.FixedZone(fixedZoneName(w.TimezoneOffset), w.TimezoneOffset)
}

func fixedZoneName(offset int) string {
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	return fmt.Sprintf("UTC%s%02d:%02d", sign, offset/3600, (offset%3600)/60)
}

// Round rounds half up, so 72.5 becomes 73 and -0.5 becomes 0.
func Round(t float64) int {
	return int(math.Floor(t + 0.5))
}

var cardTemplate = template.Must(template.New("card").Parse(`<section class="card forecast-hourly">
  <h2>{{.Title}}</h2>
  <div class="hours">
{{- range .Entries}}
    <div class="hour" data-dt="{{.Dt}}">
      <p class="time">{{.Time}}</p>
      {{if .IconURL}}<img class="icon" src="{{.IconURL}}" alt="Weather Icon">{{end}}
      <p class="temp">{{.Temperature}}</p>
    </div>
{{- end}}
  </div>
</section>
`))

var errorTemplate = template.Must(template.New("error").Parse(`<section class="card forecast-hourly error">
  <h2>{{.Title}}</h2>
  <p class="message">{{.Message}}</p>
</section>
`))

// Render writes the card as an HTML fragment.
func Render(w io.Writer, c Card) error {
	return cardTemplate.Execute(w, c)
}

// RenderError writes the fallback fragment shown when the weather fetch failed.
func RenderError(w io.Writer, message string) error {
	return errorTemplate.Execute(w, struct {
		Title   string
		Message string
	}{Title: Title, Message: message})
}
