package telnet

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cory-johannsen/textcamp/internal/game/clock"
	"github.com/cory-johannsen/textcamp/internal/game/update"
)

// healthBarWidth is the number of cells in the rendered health bar.
const healthBarWidth = 20

// Render formats an update as colored Telnet text terminated by \r\n.
// It satisfies delivery.Encoder.
//
// Postcondition: every line of the result ends in \r\n.
func Render(u update.Update) ([]byte, error) {
	body := u.Payload.Body
	var out string
	switch u.Payload.Type {
	case update.KindInfo:
		out = Colorize(BrightWhite, u.Text())
	case update.KindError:
		out = Colorize(BrightRed, u.Text())
	case update.KindCombat:
		out = Colorize(Red, u.Text())
	case update.KindExits:
		out = Colorf(Cyan, "Exits: %s", joinOr(asStrings(body), "none"))
	case update.KindPopulation:
		out = Colorf(Green, "Here: %s", joinOr(asStrings(body), "nobody"))
	case update.KindInventory:
		out = Colorf(Yellow, "You carry: %s", joinOr(asStrings(body), "nothing"))
	case update.KindSpace, update.KindCharacter, update.KindItem:
		m, ok := body.(update.Markup)
		if !ok {
			return nil, fmt.Errorf("rendering %s: unexpected body %T", u.Payload.Type, body)
		}
		out = renderMarkup(m)
	case update.KindTime:
		dt, ok := body.(clock.DateTime)
		if !ok {
			return nil, fmt.Errorf("rendering time: unexpected body %T", body)
		}
		out = Colorize(Blue, dt.String())
	case update.KindHealth:
		pct, ok := body.(int)
		if !ok {
			return nil, fmt.Errorf("rendering health: unexpected body %T", body)
		}
		out = renderHealth(pct)
	default:
		return nil, fmt.Errorf("rendering: unknown update kind %q", u.Payload.Type)
	}
	return []byte(crlf(out) + "\r\n"), nil
}

func renderMarkup(m update.Markup) string {
	var b strings.Builder
	b.WriteString(Colorize(BrightYellow, strings.TrimRight(m.Text, "\n")))
	if len(m.Clicks) > 0 {
		labels := make([]string, 0, len(m.Clicks))
		for label := range m.Clicks {
			labels = append(labels, label)
		}
		slices.Sort(labels)
		for _, label := range labels {
			b.WriteString("\n")
			b.WriteString(Colorf(Dim, "  [%s] %s", label, strings.ToLower(m.Clicks[label])))
		}
	}
	return b.String()
}

func renderHealth(pct int) string {
	filled := pct * healthBarWidth / 100
	color := BrightGreen
	switch {
	case pct <= 25:
		color = BrightRed
	case pct <= 60:
		color = BrightYellow
	}
	bar := strings.Repeat("#", filled) + strings.Repeat(".", healthBarWidth-filled)
	return fmt.Sprintf("Health [%s] %d%%", Colorize(color, bar), pct)
}

func asStrings(body any) []string {
	s, _ := body.([]string)
	return s
}

func joinOr(s []string, empty string) string {
	if len(s) == 0 {
		return empty
	}
	return strings.Join(s, ", ")
}

// crlf normalizes line endings to \r\n.
func crlf(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}
